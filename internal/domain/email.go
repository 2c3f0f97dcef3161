package domain

import (
	"fmt"
	"strings"
)

// Email is a single outbound message handed to the delivery provider.
type Email struct {
	From    string
	To      []string
	ReplyTo string
	Subject string
	HTML    string
}

func (e Email) Validate() error {
	if strings.TrimSpace(e.From) == "" {
		return fmt.Errorf("%w: from is required", ErrValidation)
	}
	if len(e.To) == 0 {
		return fmt.Errorf("%w: at least one recipient is required", ErrValidation)
	}
	for _, to := range e.To {
		if strings.TrimSpace(to) == "" {
			return fmt.Errorf("%w: recipient is required", ErrValidation)
		}
	}
	if strings.TrimSpace(e.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrValidation)
	}
	if strings.TrimSpace(e.HTML) == "" {
		return fmt.Errorf("%w: html body is required", ErrValidation)
	}
	return nil
}
