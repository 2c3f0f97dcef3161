package handler

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
)

type ContactService interface {
	Submit(ctx context.Context, submission domain.ContactSubmission) (int, error)
}

type ContactHandler struct {
	service ContactService
}

func NewContactHandler(service ContactService) (*ContactHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("contact service is required")
	}
	return &ContactHandler{service: service}, nil
}

func RegisterContactRoutes(router fiber.Router, service ContactService) error {
	h, err := NewContactHandler(service)
	if err != nil {
		return err
	}

	router.Group("/v1").Post("/contact", h.Submit)
	return nil
}

type contactRequest struct {
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	Email       string  `json:"email"`
	Company     *string `json:"company"`
	Website     *string `json:"website"`
	ProjectType string  `json:"projectType"`
	Message     string  `json:"message"`
	AIQuestion  *string `json:"aiQuestion"`
	AIQuestion1 *string `json:"aiQuestion1"`
	AIQuestion2 *string `json:"aiQuestion2"`
	AIQuestion3 *string `json:"aiQuestion3"`
	AIQuestion4 *string `json:"aiQuestion4"`
}

func (h *ContactHandler) Submit(c *fiber.Ctx) error {
	var req contactRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, invalidBodyMessage)
	}

	sent, err := h.service.Submit(c.UserContext(), domain.ContactSubmission{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Company:     req.Company,
		Website:     req.Website,
		ProjectType: req.ProjectType,
		Message:     req.Message,
		AIQuestion:  req.AIQuestion,
		AIQuestion1: req.AIQuestion1,
		AIQuestion2: req.AIQuestion2,
		AIQuestion3: req.AIQuestion3,
		AIQuestion4: req.AIQuestion4,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"sent": sent,
	})
}
