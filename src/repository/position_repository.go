package repository

import (
	"context"
	"errors"

	"copyinvest/src/database"
	"copyinvest/src/model"
	"copyinvest/src/store"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PositionRepository handles read/write operations for open and closed positions.
type PositionRepository struct {
	db *gorm.DB
}

// NewPositionRepository creates a new repository instance using the main read/write database.
func NewPositionRepository() *PositionRepository {
	logger.WithField("component", "PositionRepository").
		Info("Creating new PositionRepository with MainDB")

	return &PositionRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *PositionRepository) WithDB(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// OpenPositions returns every open position of the user, newest first.
func (r *PositionRepository) OpenPositions(
	ctx context.Context,
	userID uuid.UUID,
) ([]model.OpenPosition, error) {

	fields := map[string]interface{}{
		"repo":    "PositionRepository",
		"op":      "OpenPositions",
		"user_id": userID,
	}
	logger.WithFields(fields).Debug("Fetching open positions")

	var rows []model.OpenPosition
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("open_time DESC").
		Find(&rows).Error

	if err != nil {
		logger.WithFields(fields).WithError(err).Error("Failed to fetch open positions")
		return nil, err
	}

	logger.WithFields(fields).WithField("count", len(rows)).Debug("Open positions fetched successfully")

	return rows, nil
}

// ClosedPositions returns the full closed history of the user, most recently closed first.
func (r *PositionRepository) ClosedPositions(
	ctx context.Context,
	userID uuid.UUID,
) ([]model.ClosedPosition, error) {

	fields := map[string]interface{}{
		"repo":    "PositionRepository",
		"op":      "ClosedPositions",
		"user_id": userID,
	}
	logger.WithFields(fields).Debug("Fetching closed positions")

	var rows []model.ClosedPosition
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("close_time DESC").
		Find(&rows).Error

	if err != nil {
		logger.WithFields(fields).WithError(err).Error("Failed to fetch closed positions")
		return nil, err
	}

	logger.WithFields(fields).WithField("count", len(rows)).Debug("Closed positions fetched successfully")

	return rows, nil
}

// OpenPosition fetches a single open position by ID.
func (r *PositionRepository) OpenPosition(
	ctx context.Context,
	id uuid.UUID,
) (*model.OpenPosition, error) {

	fields := map[string]interface{}{
		"repo": "PositionRepository",
		"op":   "OpenPosition",
		"id":   id,
	}

	var p model.OpenPosition
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&p).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(fields).Info("Open position not found")
			return nil, store.ErrNotFound
		}

		logger.WithFields(fields).WithError(err).Error("Failed to fetch open position")
		return nil, err
	}

	return &p, nil
}

// InsertOpenPosition persists a new open position.
func (r *PositionRepository) InsertOpenPosition(
	ctx context.Context,
	p *model.OpenPosition,
) error {

	fields := map[string]interface{}{
		"repo":    "PositionRepository",
		"op":      "InsertOpenPosition",
		"user_id": p.UserID,
		"pair":    p.Pair,
		"type":    p.Type,
	}
	logger.WithFields(fields).Debug("Creating open position")

	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		logger.WithFields(fields).WithError(err).Error("Failed to create open position")
		return err
	}

	logger.WithFields(fields).WithField("id", p.ID).Info("Open position created successfully")

	return nil
}

// UpdateOpenPosition writes every mutable column of an existing open position.
func (r *PositionRepository) UpdateOpenPosition(
	ctx context.Context,
	p *model.OpenPosition,
) error {

	fields := map[string]interface{}{
		"repo": "PositionRepository",
		"op":   "UpdateOpenPosition",
		"id":   p.ID,
	}
	logger.WithFields(fields).Debug("Updating open position")

	res := r.db.WithContext(ctx).
		Model(p).
		Select("*").
		Omit("id", "user_id").
		Updates(p)

	if res.Error != nil {
		logger.WithFields(fields).WithError(res.Error).Error("Failed to update open position")
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}

	logger.WithFields(fields).Info("Open position updated successfully")

	return nil
}

// DeleteOpenPosition removes an open position by ID.
func (r *PositionRepository) DeleteOpenPosition(
	ctx context.Context,
	id uuid.UUID,
) error {

	fields := map[string]interface{}{
		"repo": "PositionRepository",
		"op":   "DeleteOpenPosition",
		"id":   id,
	}

	res := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model.OpenPosition{})

	if res.Error != nil {
		logger.WithFields(fields).WithError(res.Error).Error("Failed to delete open position")
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}

	logger.WithFields(fields).Info("Open position deleted successfully")

	return nil
}

// InsertClosedPosition appends a row to the closed history.
func (r *PositionRepository) InsertClosedPosition(
	ctx context.Context,
	p *model.ClosedPosition,
) error {

	fields := map[string]interface{}{
		"repo":    "PositionRepository",
		"op":      "InsertClosedPosition",
		"user_id": p.UserID,
		"id":      p.ID,
	}

	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		logger.WithFields(fields).WithError(err).Error("Failed to create closed position")
		return err
	}

	logger.WithFields(fields).Info("Closed position created successfully")

	return nil
}

// DeleteClosedPosition removes a closed history row owned by userID.
func (r *PositionRepository) DeleteClosedPosition(
	ctx context.Context,
	userID uuid.UUID,
	id uuid.UUID,
) error {

	fields := map[string]interface{}{
		"repo":    "PositionRepository",
		"op":      "DeleteClosedPosition",
		"user_id": userID,
		"id":      id,
	}

	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.ClosedPosition{})

	if res.Error != nil {
		logger.WithFields(fields).WithError(res.Error).Error("Failed to delete closed position")
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}

	logger.WithFields(fields).Info("Closed position deleted successfully")

	return nil
}
