// Package domain contains core concepts of the session gateway.
// A tenant is one independently managed protocol session, identified
// by its normalized phone number.
package domain

import (
	"strings"
	"unicode"

	"mini-base/errors"
)

// TenantID is a normalized numeric identifier.
// Non-digit characters are stripped at construction and the value
// is immutable afterwards. It is the unique key across all maps.
type TenantID string

// NewTenantID derives a TenantID from raw user input such as
// "+33 6 12 34 56 78" or "33612345678@s.whatsapp.net".
func NewTenantID(raw string) (TenantID, error) {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "", errors.ErrInvalidTenantID
	}
	return TenantID(b.String()), nil
}

func (t TenantID) String() string {
	return string(t)
}

// JID returns the tenant's own protocol address.
func (t TenantID) JID() string {
	return string(t) + "@s.whatsapp.net"
}
