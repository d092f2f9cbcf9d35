package repository

import (
	"context"
	"errors"

	"copyinvest/src/database"
	"copyinvest/src/model"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var userMetricsUpdateColumns = []string{
	"account_balance",
	"total_open_pnl",
	"equity",
	"today_pnl_percent",
	"open_positions",
	"win_rate",
	"max_drawdown",
	"profit_factor",
	"total_trades",
	"updated_at",
}

// UserMetricsRepository reads and writes the user_metrics projection.
type UserMetricsRepository struct {
	db *gorm.DB
}

func NewUserMetricsRepository() *UserMetricsRepository {
	logger.WithField("component", "UserMetricsRepository").
		Info("Creating new UserMetricsRepository with MainDB")

	return &UserMetricsRepository{
		db: database.MainDB,
	}
}

func (r *UserMetricsRepository) WithDB(db *gorm.DB) *UserMetricsRepository {
	return &UserMetricsRepository{db: db}
}

// UserMetrics returns the stored row of the user, or nil when none exists yet.
func (r *UserMetricsRepository) UserMetrics(
	ctx context.Context,
	userID uuid.UUID,
) (*model.UserMetrics, error) {

	fields := map[string]interface{}{
		"repo":    "UserMetricsRepository",
		"op":      "UserMetrics",
		"user_id": userID,
	}

	var m model.UserMetrics
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&m).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(fields).Debug("No user metrics row yet")
			return nil, nil
		}

		logger.WithFields(fields).WithError(err).Error("Failed to fetch user metrics")
		return nil, err
	}

	return &m, nil
}

// UpsertUserMetrics inserts the row or overwrites every column of the existing one.
func (r *UserMetricsRepository) UpsertUserMetrics(
	ctx context.Context,
	m *model.UserMetrics,
) error {

	fields := map[string]interface{}{
		"repo":    "UserMetricsRepository",
		"op":      "UpsertUserMetrics",
		"user_id": m.UserID,
	}
	logger.WithFields(fields).Debug("Upserting user metrics")

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns(userMetricsUpdateColumns),
		}).
		Create(m).Error

	if err != nil {
		logger.WithFields(fields).WithError(err).Error("Failed to upsert user metrics")
		return err
	}

	logger.WithFields(fields).Debug("User metrics upserted successfully")

	return nil
}
