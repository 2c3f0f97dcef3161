package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecodeclub/ekit/slice"
	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"gorm.io/gorm"
)

type SubscriberRepository interface {
	Create(ctx context.Context, s *domain.Subscriber) error
	ListActive(ctx context.Context) ([]domain.Subscriber, error)
	GetByToken(ctx context.Context, token string) (*domain.Subscriber, error)
	// GetByEmail expects an already normalized address.
	GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error)
	// DeactivateByToken marks the matching subscriber inactive and returns
	// its email. Deactivating an inactive subscriber is not an error.
	DeactivateByToken(ctx context.Context, token string) (string, error)
	Ping(ctx context.Context) error
}

type GormSubscriberRepo struct {
	db *gorm.DB
}

func NewGormSubscriberRepo(db *gorm.DB) *GormSubscriberRepo {
	return &GormSubscriberRepo{db: db}
}

func (r *GormSubscriberRepo) Create(ctx context.Context, s *domain.Subscriber) error {
	model := subscriberModelFromDomain(s)
	if model == nil {
		return fmt.Errorf("%w: subscriber is required", domain.ErrValidation)
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: already subscribed", domain.ErrConflict)
		}
		return err
	}

	*s = *subscriberModelToDomain(model)
	return nil
}

func (r *GormSubscriberRepo) ListActive(ctx context.Context) ([]domain.Subscriber, error) {
	var models []SubscriberModel
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	return slice.Map(models, func(idx int, src SubscriberModel) domain.Subscriber {
		return *subscriberModelToDomain(&src)
	}), nil
}

func (r *GormSubscriberRepo) GetByToken(ctx context.Context, token string) (*domain.Subscriber, error) {
	return r.first(ctx, "unsubscribe_token = ?", token)
}

func (r *GormSubscriberRepo) GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *GormSubscriberRepo) first(ctx context.Context, query string, arg any) (*domain.Subscriber, error) {
	var model SubscriberModel
	err := r.db.WithContext(ctx).
		Where(query, arg).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return subscriberModelToDomain(&model), nil
}

func (r *GormSubscriberRepo) DeactivateByToken(ctx context.Context, token string) (string, error) {
	subscriber, err := r.GetByToken(ctx, token)
	if err != nil {
		return "", err
	}

	err = r.db.WithContext(ctx).
		Model(&SubscriberModel{ID: subscriber.ID}).
		Updates(map[string]any{"is_active": false}).Error
	if err != nil {
		return "", err
	}

	return subscriber.Email, nil
}

func (r *GormSubscriberRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
