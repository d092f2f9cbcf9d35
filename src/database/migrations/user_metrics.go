package migrations

import (
	"fmt"
	"time"

	"copyinvest/src/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// seedUserMetricsRows creates a zeroed metrics row for every account that has
// positions but was never reconciled. The next reconciliation fills in real values.
func seedUserMetricsRows(db *gorm.DB) error {
	users := make(map[uuid.UUID]struct{})

	for _, table := range []interface{}{&model.OpenPosition{}, &model.ClosedPosition{}} {
		var ids []uuid.UUID
		if err := db.Model(table).Distinct().Pluck("user_id", &ids).Error; err != nil {
			return fmt.Errorf("collect user ids: %w", err)
		}
		for _, id := range ids {
			users[id] = struct{}{}
		}
	}

	var existing []uuid.UUID
	if err := db.Model(&model.UserMetrics{}).Pluck("user_id", &existing).Error; err != nil {
		return fmt.Errorf("collect existing metrics rows: %w", err)
	}
	for _, id := range existing {
		delete(users, id)
	}

	if len(users) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([]model.UserMetrics, 0, len(users))
	for id := range users {
		rows = append(rows, model.UserMetrics{
			UserID:          id,
			AccountBalance:  decimal.Zero,
			TotalOpenPnl:    decimal.Zero,
			Equity:          decimal.Zero,
			TodayPnlPercent: decimal.Zero,
			WinRate:         decimal.Zero,
			UpdatedAt:       now,
		})
	}

	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}
