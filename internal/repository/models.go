package repository

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"gorm.io/gorm"
)

// SubscriberModel is the persistence model for newsletter_subscribers.
type SubscriberModel struct {
	ID               string  `gorm:"type:uuid;primaryKey"`
	Email            string  `gorm:"type:varchar(320);not null;uniqueIndex:idx_subscribers_email"`
	FirstName        *string `gorm:"type:varchar(255)"`
	LastName         *string `gorm:"type:varchar(255)"`
	UnsubscribeToken string  `gorm:"type:varchar(64);not null;uniqueIndex:idx_subscribers_unsubscribe_token"`
	IsActive         bool    `gorm:"not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (SubscriberModel) TableName() string {
	return "newsletter_subscribers"
}

func (m *SubscriberModel) BeforeCreate(*gorm.DB) error {
	if strings.TrimSpace(m.ID) == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// DeliveryAttemptModel is the persistence model for delivery_attempts.
// Rows are append-only snapshots and carry no foreign key to subscribers.
type DeliveryAttemptModel struct {
	ID                 string  `gorm:"type:uuid;primaryKey"`
	CampaignSlug       string  `gorm:"type:varchar(255);not null"`
	RecipientEmail     string  `gorm:"type:varchar(320);not null"`
	RecipientFirstName *string `gorm:"type:varchar(255)"`
	RecipientLastName  *string `gorm:"type:varchar(255)"`
	UnsubscribeToken   string  `gorm:"type:varchar(64);not null"`
	Success            bool    `gorm:"not null"`
	ProviderMessageID  *string `gorm:"type:varchar(255)"`
	Error              *string `gorm:"type:text"`
	CreatedAt          time.Time
}

func (DeliveryAttemptModel) TableName() string {
	return "delivery_attempts"
}

func (m *DeliveryAttemptModel) BeforeCreate(*gorm.DB) error {
	if strings.TrimSpace(m.ID) == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// ContactSubmissionModel is the persistence model for contact_submissions.
type ContactSubmissionModel struct {
	ID          string  `gorm:"type:uuid;primaryKey"`
	FirstName   string  `gorm:"type:varchar(255);not null"`
	LastName    string  `gorm:"type:varchar(255);not null"`
	Email       string  `gorm:"type:varchar(320);not null"`
	Company     *string `gorm:"type:varchar(255)"`
	Website     *string `gorm:"type:varchar(512)"`
	ProjectType string  `gorm:"type:varchar(100);not null"`
	Message     string  `gorm:"type:text;not null"`
	AIQuestion  *string `gorm:"column:ai_question;type:text"`
	AIQuestion1 *string `gorm:"column:ai_question1;type:text"`
	AIQuestion2 *string `gorm:"column:ai_question2;type:text"`
	AIQuestion3 *string `gorm:"column:ai_question3;type:text"`
	AIQuestion4 *string `gorm:"column:ai_question4;type:text"`
	CreatedAt   time.Time
}

func (ContactSubmissionModel) TableName() string {
	return "contact_submissions"
}

func (m *ContactSubmissionModel) BeforeCreate(*gorm.DB) error {
	if strings.TrimSpace(m.ID) == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

func subscriberModelFromDomain(s *domain.Subscriber) *SubscriberModel {
	if s == nil {
		return nil
	}

	return &SubscriberModel{
		ID:               s.ID,
		Email:            s.Email,
		FirstName:        s.FirstName,
		LastName:         s.LastName,
		UnsubscribeToken: s.UnsubscribeToken,
		IsActive:         s.IsActive,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func subscriberModelToDomain(m *SubscriberModel) *domain.Subscriber {
	if m == nil {
		return nil
	}

	return &domain.Subscriber{
		ID:               m.ID,
		Email:            m.Email,
		FirstName:        m.FirstName,
		LastName:         m.LastName,
		UnsubscribeToken: m.UnsubscribeToken,
		IsActive:         m.IsActive,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func attemptModelFromDomain(a domain.DeliveryAttempt) DeliveryAttemptModel {
	return DeliveryAttemptModel{
		ID:                 a.ID,
		CampaignSlug:       a.CampaignSlug,
		RecipientEmail:     a.RecipientEmail,
		RecipientFirstName: a.RecipientFirstName,
		RecipientLastName:  a.RecipientLastName,
		UnsubscribeToken:   a.UnsubscribeToken,
		Success:            a.Success,
		ProviderMessageID:  a.ProviderMessageID,
		Error:              a.Error,
		CreatedAt:          a.CreatedAt,
	}
}

func attemptModelToDomain(m DeliveryAttemptModel) domain.DeliveryAttempt {
	return domain.DeliveryAttempt{
		ID:                 m.ID,
		CampaignSlug:       m.CampaignSlug,
		RecipientEmail:     m.RecipientEmail,
		RecipientFirstName: m.RecipientFirstName,
		RecipientLastName:  m.RecipientLastName,
		UnsubscribeToken:   m.UnsubscribeToken,
		Success:            m.Success,
		ProviderMessageID:  m.ProviderMessageID,
		Error:              m.Error,
		CreatedAt:          m.CreatedAt,
	}
}

func contactModelFromDomain(c *domain.ContactSubmission) *ContactSubmissionModel {
	if c == nil {
		return nil
	}

	return &ContactSubmissionModel{
		ID:          c.ID,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Email:       c.Email,
		Company:     c.Company,
		Website:     c.Website,
		ProjectType: c.ProjectType,
		Message:     c.Message,
		AIQuestion:  c.AIQuestion,
		AIQuestion1: c.AIQuestion1,
		AIQuestion2: c.AIQuestion2,
		AIQuestion3: c.AIQuestion3,
		AIQuestion4: c.AIQuestion4,
		CreatedAt:   c.CreatedAt,
	}
}
