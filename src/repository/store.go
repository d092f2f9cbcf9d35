package repository

import (
	"copyinvest/src/store"

	"gorm.io/gorm"
)

// GormStore serves the whole store.Store contract from one database.
type GormStore struct {
	*PositionRepository
	*UserMetricsRepository
}

var _ store.Store = (*GormStore)(nil)

// NewGormStore wires the repositories to database.MainDB.
func NewGormStore() *GormStore {
	return &GormStore{
		PositionRepository:    NewPositionRepository(),
		UserMetricsRepository: NewUserMetricsRepository(),
	}
}

func NewGormStoreWithDB(db *gorm.DB) *GormStore {
	return &GormStore{
		PositionRepository:    &PositionRepository{db: db},
		UserMetricsRepository: &UserMetricsRepository{db: db},
	}
}
