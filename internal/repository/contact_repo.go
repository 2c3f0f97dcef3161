package repository

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"gorm.io/gorm"
)

type ContactRepository interface {
	Create(ctx context.Context, c *domain.ContactSubmission) error
}

type GormContactRepo struct {
	db *gorm.DB
}

func NewGormContactRepo(db *gorm.DB) *GormContactRepo {
	return &GormContactRepo{db: db}
}

func (r *GormContactRepo) Create(ctx context.Context, c *domain.ContactSubmission) error {
	model := contactModelFromDomain(c)
	if model == nil {
		return fmt.Errorf("%w: contact submission is required", domain.ErrValidation)
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}

	c.ID = model.ID
	c.CreatedAt = model.CreatedAt
	return nil
}
