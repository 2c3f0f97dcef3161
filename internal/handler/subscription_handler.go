package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"github.com/kursadbilgin/newsletter-dispatch/internal/service"
)

type SubscriptionService interface {
	Subscribe(ctx context.Context, req service.SubscribeRequest) (*domain.Subscriber, error)
	Unsubscribe(ctx context.Context, token string) (string, error)
	SendWelcome(ctx context.Context, req service.WelcomeRequest) (string, error)
}

type SubscriptionHandler struct {
	service SubscriptionService
}

func NewSubscriptionHandler(service SubscriptionService) (*SubscriptionHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("subscription service is required")
	}
	return &SubscriptionHandler{service: service}, nil
}

func RegisterSubscriptionRoutes(router fiber.Router, service SubscriptionService) error {
	h, err := NewSubscriptionHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/subscriptions", h.Subscribe)
	v1.Post("/unsubscribe", h.Unsubscribe)
	v1.Post("/welcome", h.SendWelcome)

	return nil
}

type subscribeRequest struct {
	Email     string  `json:"email"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

type unsubscribeRequest struct {
	Token string `json:"token"`
}

type welcomeRequest struct {
	Email     string  `json:"email"`
	FirstName *string `json:"firstName"`
	Token     string  `json:"token"`
}

func (h *SubscriptionHandler) Subscribe(c *fiber.Ctx) error {
	var req subscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, invalidBodyMessage)
	}

	_, err := h.service.Subscribe(c.UserContext(), service.SubscribeRequest{
		Email:     req.Email,
		FirstName: trimOptional(req.FirstName),
		LastName:  trimOptional(req.LastName),
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return fiber.NewError(fiber.StatusConflict, "already subscribed")
		}
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
	})
}

func (h *SubscriptionHandler) Unsubscribe(c *fiber.Ctx) error {
	var req unsubscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, invalidBodyMessage)
	}

	email, err := h.service.Unsubscribe(c.UserContext(), req.Token)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"email": email,
	})
}

func (h *SubscriptionHandler) SendWelcome(c *fiber.Ctx) error {
	var req welcomeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, invalidBodyMessage)
	}

	messageID, err := h.service.SendWelcome(c.UserContext(), service.WelcomeRequest{
		Email:     req.Email,
		FirstName: trimOptional(req.FirstName),
		Token:     req.Token,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"messageId": messageID,
	})
}
