package keycloak

import (
	"fmt"
	"strings"
)

// Error describes a failed admin API operation.
type Error struct {
	Op         string // CreateClientRole, AssignRoleToUser, ...
	Role       string
	User       string
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("keycloak ")
	b.WriteString(e.Op)
	if e.Role != "" {
		fmt.Fprintf(&b, " role=%q", e.Role)
	}
	if e.User != "" {
		fmt.Fprintf(&b, " user=%q", e.User)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " status=%d", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// statusError is returned by response checks for unexpected status codes.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("unexpected status %d", e.status)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}
