package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ExceptionLevelWarn  = "warn"
	ExceptionLevelError = "error"
)

// Exception records a failed back-office action so an operator can find and retry it.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id,omitempty"`

	Service string `gorm:"size:100;index" json:"service"` // e.g. "admin_api"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "reconcile"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "ClosePosition"

	// Affected account, when known
	UserID   *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Operator string     `gorm:"size:100" json:"operator,omitempty"`

	Message string `gorm:"type:text" json:"message"`
	Kind    string `gorm:"size:50" json:"kind,omitempty"` // fetch_failure | upsert_failure
	Level   string `gorm:"size:20;index" json:"level"`

	Context string `gorm:"type:text" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (Exception) TableName() string {
	return "exceptions"
}
