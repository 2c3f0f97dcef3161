package repository

import (
	"context"

	"github.com/ecodeclub/ekit/slice"
	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultInsertChunk = 100

type DeliveryAttemptRepository interface {
	CreateBatch(ctx context.Context, attempts []domain.DeliveryAttempt) error
	ListByCampaign(ctx context.Context, campaignSlug string) ([]domain.DeliveryAttempt, error)
}

type GormDeliveryAttemptRepo struct {
	db        *gorm.DB
	chunkSize int
}

func NewGormDeliveryAttemptRepo(db *gorm.DB, chunkSize int) *GormDeliveryAttemptRepo {
	if chunkSize <= 0 {
		chunkSize = defaultInsertChunk
	}
	return &GormDeliveryAttemptRepo{db: db, chunkSize: chunkSize}
}

// CreateBatch inserts all attempts in one transaction. Attempts whose ID
// already exists are skipped, so a redelivered chunk is not stored twice.
func (r *GormDeliveryAttemptRepo) CreateBatch(ctx context.Context, attempts []domain.DeliveryAttempt) error {
	if len(attempts) == 0 {
		return nil
	}

	models := slice.Map(attempts, func(idx int, src domain.DeliveryAttempt) DeliveryAttemptModel {
		return attemptModelFromDomain(src)
	})

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).CreateInBatches(&models, r.chunkSize).Error
	})
}

func (r *GormDeliveryAttemptRepo) ListByCampaign(ctx context.Context, campaignSlug string) ([]domain.DeliveryAttempt, error) {
	var models []DeliveryAttemptModel
	err := r.db.WithContext(ctx).
		Where("campaign_slug = ?", campaignSlug).
		Order("created_at ASC").
		Order("recipient_email ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	return slice.Map(models, func(idx int, src DeliveryAttemptModel) domain.DeliveryAttempt {
		return attemptModelToDomain(src)
	}), nil
}
