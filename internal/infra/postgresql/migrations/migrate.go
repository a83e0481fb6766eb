package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/notifyhq/notify-engine/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createNotificationsTable(),
		createDeliveryChannelsTable(),
		createDeliveryAttemptsTable(),
	})

	return m.Migrate()
}

func createNotificationsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_notifications",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.NotificationModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_notifications_role_read ON notifications (role, is_read)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.NotificationModel{})
		},
	}
}

func createDeliveryChannelsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_delivery_channels",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DeliveryChannelModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_delivery_channels_active ON delivery_channels (active)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DeliveryChannelModel{})
		},
	}
}

func createDeliveryAttemptsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_delivery_attempts",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DeliveryAttemptModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_delivery_attempts_notification_id ON delivery_attempts (notification_id)`,
				`CREATE INDEX IF NOT EXISTS idx_delivery_attempts_retry ON delivery_attempts (updated_at) WHERE status = 'FAILED' AND attempt_count < max_attempts`,
				`CREATE INDEX IF NOT EXISTS idx_delivery_attempts_due ON delivery_attempts (next_retry_at) WHERE status = 'RETRIED'`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DeliveryAttemptModel{})
		},
	}
}
