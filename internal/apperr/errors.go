package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// NotFound is returned when a Shopify resource or stored record does not exist.
type NotFound struct {
	Resource string
	ID       string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// Unauthorized covers missing shop sessions and bad webhook or proxy signatures.
type Unauthorized struct {
	Message string
}

func (e *Unauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// Validation carries user-facing messages. It is reported as success:false, never thrown to the client.
type Validation struct {
	Messages []string
}

func (e *Validation) Error() string {
	if len(e.Messages) == 0 {
		return "validation failed"
	}
	return e.Messages[0]
}

// Conflict is returned when a conditional write loses to a concurrent one.
type Conflict struct {
	Message string
}

func (e *Conflict) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "conflict"
}

// Status maps an error to the HTTP status used at the route boundary.
func Status(err error) int {
	var (
		nf   *NotFound
		un   *Unauthorized
		val  *Validation
		conf *Conflict
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &un):
		return http.StatusUnauthorized
	case errors.As(err, &val):
		return http.StatusOK
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &conf):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
