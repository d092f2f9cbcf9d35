package repository

import (
	"context"
	"fmt"
	"time"

	"copyinvest/src/database"
	"copyinvest/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultExceptionLimit = 50

// ExceptionRepository handles persistence of failed back-office actions.
type ExceptionRepository struct {
	db *gorm.DB
}

// NewExceptionRepository creates a new repository instance.
func NewExceptionRepository() *ExceptionRepository {
	return &ExceptionRepository{
		db: database.MainDB,
	}
}

func (r *ExceptionRepository) WithDB(db *gorm.DB) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

// Create stores a failure record. CreatedAt defaults to now.
func (r *ExceptionRepository) Create(ctx context.Context, exc *model.Exception) error {
	if exc.CreatedAt.IsZero() {
		exc.CreatedAt = time.Now().UTC()
	}

	log := logger.WithFields(map[string]interface{}{
		"repo":    "ExceptionRepository",
		"op":      "Create",
		"module":  exc.Module,
		"method":  exc.Method,
		"kind":    exc.Kind,
		"user_id": exc.UserID,
	})
	log.Warn("Persisting back-office exception")

	if err := r.db.WithContext(ctx).Create(exc).Error; err != nil {
		log.WithError(err).Error("Failed to persist exception")
		return fmt.Errorf("create exception: %w", err)
	}
	return nil
}

// FindRecent returns the newest exceptions first. A limit <= 0 uses the default.
func (r *ExceptionRepository) FindRecent(
	ctx context.Context,
	limit int,
) ([]model.Exception, error) {

	if limit <= 0 {
		limit = defaultExceptionLimit
	}

	var out []model.Exception
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error

	if err != nil {
		logger.WithField("repo", "ExceptionRepository").WithError(err).Error("Failed to fetch exceptions")
		return nil, err
	}

	return out, nil
}
