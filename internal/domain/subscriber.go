package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

const MaxEmailLength = 320

// Subscriber is a newsletter audience member. IsActive is the only field
// that changes after creation.
type Subscriber struct {
	ID               string
	Email            string
	FirstName        *string
	LastName         *string
	UnsubscribeToken string
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DisplayName returns "First Last" from whichever parts are present.
func (s Subscriber) DisplayName() string {
	parts := make([]string, 0, 2)
	if s.FirstName != nil && strings.TrimSpace(*s.FirstName) != "" {
		parts = append(parts, strings.TrimSpace(*s.FirstName))
	}
	if s.LastName != nil && strings.TrimSpace(*s.LastName) != "" {
		parts = append(parts, strings.TrimSpace(*s.LastName))
	}
	return strings.Join(parts, " ")
}

// NormalizeEmail trims surrounding whitespace and lowercases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks an already normalized address.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if len(email) > MaxEmailLength {
		return fmt.Errorf("%w: email exceeds %d characters", ErrValidation, MaxEmailLength)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return fmt.Errorf("%w: email %q is not a valid address", ErrValidation, email)
	}
	return nil
}

// NormalizeOptionalString trims v and maps blank values to nil.
func NormalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (s *Subscriber) Validate() error {
	if err := ValidateEmail(s.Email); err != nil {
		return err
	}
	if strings.TrimSpace(s.UnsubscribeToken) == "" {
		return fmt.Errorf("%w: unsubscribe token is required", ErrValidation)
	}
	return nil
}
