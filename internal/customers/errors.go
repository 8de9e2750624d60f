package customers

import (
	"strings"

	"voicero/internal/shopify"
)

var friendly = []struct {
	field    string
	fragment string
	message  string
}{
	{"email", "taken", "That email address is already used by another account."},
	{"email", "invalid", msgEmailInvalid},
	{"phone", "taken", "That phone number is already used by another account."},
	{"phone", "invalid", "Please enter a valid phone number, including the country code."},
	{"zip", "", "The ZIP/postal code doesn't match the selected country or state."},
	{"province", "", "Please choose a valid state or province for this country."},
	{"country", "", "Please choose a valid country."},
	{"address1", "", msgStreetRequired},
	{"city", "", "Please enter a valid city."},
}

// FriendlyErrors maps Admin API userErrors to customer-facing text.
// Unmapped errors read "Field: message".
func FriendlyErrors(errs []shopify.UserError) []string {
	out := make([]string, 0, len(errs))
	seen := map[string]bool{}
	for _, e := range errs {
		msg := friendlyMessage(e)
		if !seen[msg] {
			seen[msg] = true
			out = append(out, msg)
		}
	}
	return out
}

func friendlyMessage(e shopify.UserError) string {
	raw := ""
	if len(e.Field) > 0 {
		raw = e.Field[len(e.Field)-1]
	}
	field := strings.ToLower(raw)
	lower := strings.ToLower(e.Message)

	for _, f := range friendly {
		if !strings.Contains(field, f.field) && !strings.HasPrefix(lower, f.field) {
			continue
		}
		if f.fragment == "" || strings.Contains(lower, f.fragment) {
			return f.message
		}
	}

	if raw == "" {
		return e.Message
	}
	return strings.ToUpper(raw[:1]) + raw[1:] + ": " + e.Message
}
