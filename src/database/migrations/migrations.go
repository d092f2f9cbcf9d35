package migrations

import (
	"errors"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DataMigration is one row of the applied-migrations ledger.
type DataMigration struct {
	ID        string    `gorm:"primaryKey;size:200;column:id"`
	AppliedAt time.Time `gorm:"not null;column:applied_at"`
}

func (DataMigration) TableName() string { return "data_migrations" }

// Migration is a data fix that runs once per database, after AutoMigrate.
type Migration struct {
	ID string
	Up func(tx *gorm.DB) error
}

// All is the ordered list applied by Run. Append only; ids are stored forever.
var All = []Migration{
	{ID: "00001_backfill_closed_position_result", Up: backfillClosedPositionResult},
	{ID: "00002_seed_user_metrics_rows", Up: seedUserMetricsRows},
}

// Run applies every pending migration in order.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	if err := db.AutoMigrate(&DataMigration{}); err != nil {
		return fmt.Errorf("ensure data migrations table: %w", err)
	}
	for _, m := range All {
		if err := apply(db, m); err != nil {
			return err
		}
	}
	return nil
}

// apply runs m and records it in the same transaction, so a failed migration
// leaves no ledger row and is retried on the next start.
func apply(db *gorm.DB, m Migration) error {
	if m.ID == "" || m.Up == nil {
		return fmt.Errorf("migration %q is incomplete", m.ID)
	}
	log := logger.WithField("migration", m.ID)

	return db.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&DataMigration{}, "id = ?", m.ID).Error
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("check migration %q: %w", m.ID, err)
		}

		log.Info("Applying data migration")
		if err := m.Up(tx); err != nil {
			log.WithError(err).Error("Data migration failed")
			return fmt.Errorf("run migration %q: %w", m.ID, err)
		}

		if err := tx.Create(&DataMigration{ID: m.ID, AppliedAt: time.Now().UTC()}).Error; err != nil {
			return fmt.Errorf("record migration %q: %w", m.ID, err)
		}
		return nil
	})
}
