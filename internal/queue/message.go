package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/ecodeclub/ekit/slice"
	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
)

// DeliveryResultMessage is one chunk of campaign outcomes on the wire.
type DeliveryResultMessage struct {
	ChunkID       string           `json:"chunkId"`
	CorrelationID string           `json:"correlationId,omitempty"`
	CampaignSlug  string           `json:"campaignSlug"`
	Attempts      []AttemptPayload `json:"attempts"`
}

type AttemptPayload struct {
	ID                 string    `json:"id"`
	RecipientEmail     string    `json:"recipientEmail"`
	RecipientFirstName *string   `json:"recipientFirstName,omitempty"`
	RecipientLastName  *string   `json:"recipientLastName,omitempty"`
	UnsubscribeToken   string    `json:"unsubscribeToken"`
	Success            bool      `json:"success"`
	ProviderMessageID  *string   `json:"providerMessageId,omitempty"`
	Error              *string   `json:"error,omitempty"`
	AttemptedAt        time.Time `json:"attemptedAt"`
}

// NewDeliveryResultMessage packs attempts of a single campaign.
func NewDeliveryResultMessage(chunkID, correlationID, campaignSlug string, attempts []domain.DeliveryAttempt) DeliveryResultMessage {
	return DeliveryResultMessage{
		ChunkID:       chunkID,
		CorrelationID: correlationID,
		CampaignSlug:  campaignSlug,
		Attempts: slice.Map(attempts, func(idx int, a domain.DeliveryAttempt) AttemptPayload {
			return AttemptPayload{
				ID:                 a.ID,
				RecipientEmail:     a.RecipientEmail,
				RecipientFirstName: a.RecipientFirstName,
				RecipientLastName:  a.RecipientLastName,
				UnsubscribeToken:   a.UnsubscribeToken,
				Success:            a.Success,
				ProviderMessageID:  a.ProviderMessageID,
				Error:              a.Error,
				AttemptedAt:        a.CreatedAt,
			}
		}),
	}
}

// DomainAttempts unpacks the chunk back into delivery attempts.
func (m DeliveryResultMessage) DomainAttempts() []domain.DeliveryAttempt {
	return slice.Map(m.Attempts, func(idx int, p AttemptPayload) domain.DeliveryAttempt {
		return domain.DeliveryAttempt{
			ID:                 p.ID,
			CampaignSlug:       m.CampaignSlug,
			RecipientEmail:     p.RecipientEmail,
			RecipientFirstName: p.RecipientFirstName,
			RecipientLastName:  p.RecipientLastName,
			UnsubscribeToken:   p.UnsubscribeToken,
			Success:            p.Success,
			ProviderMessageID:  p.ProviderMessageID,
			Error:              p.Error,
			CreatedAt:          p.AttemptedAt,
		}
	})
}

func (m DeliveryResultMessage) Validate() error {
	if strings.TrimSpace(m.ChunkID) == "" {
		return fmt.Errorf("chunkId is required")
	}
	if strings.TrimSpace(m.CampaignSlug) == "" {
		return fmt.Errorf("campaignSlug is required")
	}
	if len(m.Attempts) == 0 {
		return fmt.Errorf("attempts must not be empty")
	}
	for i, a := range m.Attempts {
		if strings.TrimSpace(a.RecipientEmail) == "" {
			return fmt.Errorf("attempts[%d].recipientEmail is required", i)
		}
	}
	return nil
}
