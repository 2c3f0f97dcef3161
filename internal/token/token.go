// Package token issues unsubscribe credentials.
package token

import (
	"fmt"

	"github.com/google/uuid"
)

// Issuer generates a fresh unsubscribe token for a new subscriber.
type Issuer interface {
	Issue() (string, error)
}

// UUIDIssuer issues random version 4 UUIDs (122 bits of entropy).
type UUIDIssuer struct{}

func NewUUIDIssuer() UUIDIssuer {
	return UUIDIssuer{}
}

func (UUIDIssuer) Issue() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate unsubscribe token: %w", err)
	}
	return id.String(), nil
}

// IssuerFunc adapts a plain function to Issuer.
type IssuerFunc func() (string, error)

func (f IssuerFunc) Issue() (string, error) {
	return f()
}
