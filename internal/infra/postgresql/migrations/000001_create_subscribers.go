package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/newsletter-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createSubscribersTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_newsletter_subscribers",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.SubscriberModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`ALTER TABLE newsletter_subscribers ALTER COLUMN is_active SET DEFAULT true`,
				`CREATE INDEX IF NOT EXISTS idx_subscribers_active ON newsletter_subscribers (created_at) WHERE is_active`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.SubscriberModel{})
		},
	}
}
