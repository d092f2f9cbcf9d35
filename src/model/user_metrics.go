package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserMetrics is the per-user trading summary shown on the dashboard. It is a cached
// projection of open_positions and closed_positions, not a source of truth.
//
// WinRate, MaxDrawdown, ProfitFactor and TotalTrades are maintained by back-office
// staff and pass through reconciliation untouched.
type UserMetrics struct {
	UserID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"user_id"`
	AccountBalance  decimal.Decimal `gorm:"type:numeric;not null" json:"account_balance"`
	TotalOpenPnl    decimal.Decimal `gorm:"type:numeric;not null" json:"total_open_pnl"`
	Equity          decimal.Decimal `gorm:"type:numeric;not null" json:"equity"`
	TodayPnlPercent decimal.Decimal `gorm:"type:numeric;not null" json:"today_pnl_percent"`
	OpenPositions   int             `gorm:"not null" json:"open_positions"`

	WinRate      decimal.Decimal     `gorm:"type:numeric;not null" json:"win_rate"`
	MaxDrawdown  decimal.NullDecimal `gorm:"type:numeric" json:"max_drawdown"`
	ProfitFactor decimal.NullDecimal `gorm:"type:numeric" json:"profit_factor"`
	TotalTrades  *int                `json:"total_trades"`

	UpdatedAt time.Time `json:"updated_at"`
}

func (UserMetrics) TableName() string {
	return "user_metrics"
}

// Equal compares every stored field except UpdatedAt.
func (m UserMetrics) Equal(o UserMetrics) bool {
	if m.UserID != o.UserID ||
		!m.AccountBalance.Equal(o.AccountBalance) ||
		!m.TotalOpenPnl.Equal(o.TotalOpenPnl) ||
		!m.Equity.Equal(o.Equity) ||
		!m.TodayPnlPercent.Equal(o.TodayPnlPercent) ||
		m.OpenPositions != o.OpenPositions ||
		!m.WinRate.Equal(o.WinRate) {
		return false
	}
	if !nullEqual(m.MaxDrawdown, o.MaxDrawdown) || !nullEqual(m.ProfitFactor, o.ProfitFactor) {
		return false
	}
	switch {
	case m.TotalTrades == nil && o.TotalTrades == nil:
		return true
	case m.TotalTrades == nil || o.TotalTrades == nil:
		return false
	default:
		return *m.TotalTrades == *o.TotalTrades
	}
}

func nullEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}
