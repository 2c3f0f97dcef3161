package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ecodeclub/ekit/slice"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
)

type CampaignDispatcher interface {
	Dispatch(ctx context.Context, campaign domain.Campaign) (domain.DispatchSummary, error)
}

type AttemptLister interface {
	ListByCampaign(ctx context.Context, campaignSlug string) ([]domain.DeliveryAttempt, error)
}

type CampaignHandler struct {
	dispatcher CampaignDispatcher
	attempts   AttemptLister
}

func NewCampaignHandler(dispatcher CampaignDispatcher, attempts AttemptLister) (*CampaignHandler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("campaign dispatcher is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt lister is required")
	}
	return &CampaignHandler{dispatcher: dispatcher, attempts: attempts}, nil
}

// RegisterCampaignRoutes mounts the campaign routes behind a bearer admin key.
func RegisterCampaignRoutes(router fiber.Router, dispatcher CampaignDispatcher, attempts AttemptLister, adminAPIKey string) error {
	h, err := NewCampaignHandler(dispatcher, attempts)
	if err != nil {
		return err
	}
	if strings.TrimSpace(adminAPIKey) == "" {
		return fmt.Errorf("admin api key is required")
	}

	campaigns := router.Group("/v1/campaigns", AdminAuth(adminAPIKey))
	campaigns.Post("/send", h.SendCampaign)
	campaigns.Get("/:slug/attempts", h.ListAttempts)

	return nil
}

// AdminAuth rejects requests whose "Authorization: Bearer" key does not match.
func AdminAuth(adminAPIKey string) fiber.Handler {
	expected := []byte(adminAPIKey)
	return keyauth.New(keyauth.Config{
		KeyLookup:  "header:" + fiber.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(_ *fiber.Ctx, key string) (bool, error) {
			if subtle.ConstantTimeCompare([]byte(key), expected) != 1 {
				return false, keyauth.ErrMissingOrMalformedAPIKey
			}
			return true, nil
		},
		ErrorHandler: func(_ *fiber.Ctx, _ error) error {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		},
	})
}

type campaignPayload struct {
	Title   string `json:"title"`
	Slug    string `json:"slug"`
	Excerpt string `json:"excerpt"`
	Content string `json:"content"`
}

// sendCampaignRequest accepts the content under either key; blogPost is what
// the site's publishing hook sends.
type sendCampaignRequest struct {
	BlogPost *campaignPayload `json:"blogPost"`
	Campaign *campaignPayload `json:"campaign"`
}

type dispatchSummaryResponse struct {
	Total   int    `json:"total"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

type attemptResponse struct {
	ID                string    `json:"id"`
	RecipientEmail    string    `json:"recipientEmail"`
	Success           bool      `json:"success"`
	ProviderMessageID *string   `json:"providerMessageId,omitempty"`
	Error             *string   `json:"error,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

type listAttemptsResponse struct {
	Data []attemptResponse `json:"data"`
	Meta attemptsMeta      `json:"meta"`
}

type attemptsMeta struct {
	CampaignSlug string `json:"campaignSlug"`
	Total        int    `json:"total"`
	Sent         int    `json:"sent"`
	Failed       int    `json:"failed"`
}

func (h *CampaignHandler) SendCampaign(c *fiber.Ctx) error {
	var req sendCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, invalidBodyMessage)
	}

	payload := req.BlogPost
	if payload == nil {
		payload = req.Campaign
	}
	if payload == nil {
		return toHTTPError(fmt.Errorf("%w: blogPost is required", domain.ErrValidation))
	}

	summary, err := h.dispatcher.Dispatch(c.UserContext(), domain.Campaign{
		Title:   payload.Title,
		Slug:    payload.Slug,
		Excerpt: payload.Excerpt,
		Content: payload.Content,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			resp := toDispatchSummaryResponse(summary)
			resp.Error = "campaign dispatch interrupted"
			return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
		}
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toDispatchSummaryResponse(summary))
}

func (h *CampaignHandler) ListAttempts(c *fiber.Ctx) error {
	slug := strings.TrimSpace(c.Params("slug"))
	if slug == "" {
		return toHTTPError(fmt.Errorf("%w: slug is required", domain.ErrValidation))
	}

	attempts, err := h.attempts.ListByCampaign(c.UserContext(), slug)
	if err != nil {
		return toHTTPError(err)
	}

	meta := attemptsMeta{CampaignSlug: slug, Total: len(attempts)}
	for _, a := range attempts {
		if a.Success {
			meta.Sent++
		} else {
			meta.Failed++
		}
	}

	return c.Status(fiber.StatusOK).JSON(listAttemptsResponse{
		Data: slice.Map(attempts, func(idx int, src domain.DeliveryAttempt) attemptResponse {
			return attemptResponse{
				ID:                src.ID,
				RecipientEmail:    src.RecipientEmail,
				Success:           src.Success,
				ProviderMessageID: src.ProviderMessageID,
				Error:             src.Error,
				CreatedAt:         src.CreatedAt,
			}
		}),
		Meta: meta,
	})
}

func toDispatchSummaryResponse(s domain.DispatchSummary) dispatchSummaryResponse {
	return dispatchSummaryResponse{
		Total:   s.Total,
		Sent:    s.Sent,
		Failed:  s.Failed,
		Skipped: s.Skipped,
	}
}
