package domain

import "time"

// DeliveryAttempt records the outcome of one campaign send to one recipient.
// Recipient fields are a snapshot taken at send time, so history stays
// readable after the subscriber changes or unsubscribes.
type DeliveryAttempt struct {
	ID                 string
	CampaignSlug       string
	RecipientEmail     string
	RecipientFirstName *string
	RecipientLastName  *string
	UnsubscribeToken   string
	Success            bool
	ProviderMessageID  *string
	Error              *string
	CreatedAt          time.Time
}

// NewDeliveryAttempt snapshots subscriber into an attempt for campaignSlug.
func NewDeliveryAttempt(campaignSlug string, subscriber Subscriber, messageID string, sendErr error) DeliveryAttempt {
	attempt := DeliveryAttempt{
		CampaignSlug:       campaignSlug,
		RecipientEmail:     subscriber.Email,
		RecipientFirstName: subscriber.FirstName,
		RecipientLastName:  subscriber.LastName,
		UnsubscribeToken:   subscriber.UnsubscribeToken,
		Success:            sendErr == nil,
	}
	if sendErr != nil {
		msg := sendErr.Error()
		attempt.Error = &msg
		return attempt
	}
	if messageID != "" {
		id := messageID
		attempt.ProviderMessageID = &id
	}
	return attempt
}
