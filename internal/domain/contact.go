package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultProjectType = "General"
	MaxContactMessage  = 10000
)

// ContactSubmission is a message left through the site's contact form.
type ContactSubmission struct {
	ID          string
	FirstName   string
	LastName    string
	Email       string
	Company     *string
	Website     *string
	ProjectType string
	Message     string
	AIQuestion  *string
	AIQuestion1 *string
	AIQuestion2 *string
	AIQuestion3 *string
	AIQuestion4 *string
	CreatedAt   time.Time
}

func (c *ContactSubmission) Normalize() {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = NormalizeEmail(c.Email)
	c.Company = NormalizeOptionalString(c.Company)
	c.Website = NormalizeOptionalString(c.Website)
	c.ProjectType = strings.TrimSpace(c.ProjectType)
	if c.ProjectType == "" {
		c.ProjectType = DefaultProjectType
	}
	c.Message = strings.TrimSpace(c.Message)
	c.AIQuestion = NormalizeOptionalString(c.AIQuestion)
	c.AIQuestion1 = NormalizeOptionalString(c.AIQuestion1)
	c.AIQuestion2 = NormalizeOptionalString(c.AIQuestion2)
	c.AIQuestion3 = NormalizeOptionalString(c.AIQuestion3)
	c.AIQuestion4 = NormalizeOptionalString(c.AIQuestion4)
}

func (c *ContactSubmission) Validate() error {
	if c.FirstName == "" {
		return fmt.Errorf("%w: firstName is required", ErrValidation)
	}
	if c.LastName == "" {
		return fmt.Errorf("%w: lastName is required", ErrValidation)
	}
	if err := ValidateEmail(c.Email); err != nil {
		return err
	}
	if c.Message == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	if n := len([]rune(c.Message)); n > MaxContactMessage {
		return fmt.Errorf("%w: message exceeds %d characters (got %d)", ErrValidation, MaxContactMessage, n)
	}
	return nil
}

// FullName joins first and last name.
func (c ContactSubmission) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}
