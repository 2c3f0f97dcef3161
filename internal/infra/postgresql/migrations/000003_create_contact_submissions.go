package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/newsletter-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createContactSubmissionsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_contact_submissions",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ContactSubmissionModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_contact_submissions_created ON contact_submissions (created_at DESC)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ContactSubmissionModel{})
		},
	}
}
