package shopify

import (
	"fmt"
	"strings"
)

const gidPrefix = "gid://shopify/"

// GID builds a global id, passing through values that already are one.
func GID(resource, id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, gidPrefix) {
		return id
	}
	return fmt.Sprintf("%s%s/%s", gidPrefix, resource, id)
}

func OrderGID(id string) string    { return GID("Order", id) }
func CustomerGID(id string) string { return GID("Customer", id) }

// NumericID returns the trailing id of a GID, dropping any query suffix
// (gid://shopify/MailingAddress/1?model_name=CustomerAddress -> 1).
func NumericID(gid string) string {
	if i := strings.Index(gid, "?"); i >= 0 {
		gid = gid[:i]
	}
	if i := strings.LastIndex(gid, "/"); i >= 0 {
		return gid[i+1:]
	}
	return gid
}

// IsGID reports whether s is a global id for resource.
func IsGID(s, resource string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), gidPrefix+resource+"/")
}
