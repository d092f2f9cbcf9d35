package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PositionType string

const (
	PositionTypeBuy  PositionType = "BUY"
	PositionTypeSell PositionType = "SELL"
)

func (t PositionType) Valid() bool {
	return t == PositionTypeBuy || t == PositionTypeSell
}

const (
	PositionResultWin  = "win"
	PositionResultLoss = "loss"
)

// OpenPosition is an active trade. Pnl is the last known unrealized P&L and may be
// NULL for rows created before a price tick arrived.
type OpenPosition struct {
	ID           uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID           `gorm:"type:uuid;index;not null" json:"user_id"`
	Pair         string              `gorm:"size:20;not null" json:"pair"`
	Type         PositionType        `gorm:"size:4;not null" json:"type"`
	Size         decimal.Decimal     `gorm:"type:numeric" json:"size"`
	OpenPrice    decimal.Decimal     `gorm:"type:numeric" json:"open_price"`
	CurrentPrice decimal.Decimal     `gorm:"type:numeric" json:"current_price"`
	StopLoss     decimal.NullDecimal `gorm:"type:numeric" json:"stop_loss"`
	TakeProfit   decimal.NullDecimal `gorm:"type:numeric" json:"take_profit"`
	Pnl          decimal.NullDecimal `gorm:"type:numeric" json:"pnl"`
	PnlPercent   decimal.NullDecimal `gorm:"type:numeric" json:"pnl_percent"`
	Swap         decimal.NullDecimal `gorm:"type:numeric" json:"swap"`
	Commission   decimal.NullDecimal `gorm:"type:numeric" json:"commission"`
	OpenTime     time.Time           `gorm:"not null" json:"open_time"`
}

func (OpenPosition) TableName() string {
	return "open_positions"
}

// ClosedPosition is a finalized trade. Rows are append-only history.
type ClosedPosition struct {
	ID         uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID           `gorm:"type:uuid;index;not null" json:"user_id"`
	Pair       string              `gorm:"size:20;not null" json:"pair"`
	Type       PositionType        `gorm:"size:4;not null" json:"type"`
	Size       decimal.Decimal     `gorm:"type:numeric" json:"size"`
	OpenPrice  decimal.Decimal     `gorm:"type:numeric" json:"open_price"`
	ClosePrice decimal.Decimal     `gorm:"type:numeric" json:"close_price"`
	StopLoss   decimal.NullDecimal `gorm:"type:numeric" json:"stop_loss"`
	TakeProfit decimal.NullDecimal `gorm:"type:numeric" json:"take_profit"`
	Pnl        decimal.NullDecimal `gorm:"type:numeric" json:"pnl"`
	PnlPercent decimal.NullDecimal `gorm:"type:numeric" json:"pnl_percent"`
	Swap       decimal.NullDecimal `gorm:"type:numeric" json:"swap"`
	Commission decimal.NullDecimal `gorm:"type:numeric" json:"commission"`
	OpenTime   time.Time           `json:"open_time"`
	CloseTime  time.Time           `gorm:"index" json:"close_time"`
	Duration   string              `gorm:"size:50" json:"duration"`
	Result     string              `gorm:"size:10" json:"result"`
}

func (ClosedPosition) TableName() string {
	return "closed_positions"
}
