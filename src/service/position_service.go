// Package service runs back-office position mutations and re-derives the owner's
// user_metrics row after each one.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"copyinvest/src/model"
	"copyinvest/src/store"
	"copyinvest/src/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// MetricsReconciler is the part of reconcile.Reconciler the service needs.
type MetricsReconciler interface {
	Reconcile(ctx context.Context, userID uuid.UUID) (*model.UserMetrics, error)
}

type OpenInput struct {
	Pair         string             `json:"pair"`
	Type         model.PositionType `json:"type"`
	Size         decimal.Decimal    `json:"size"`
	OpenPrice    decimal.Decimal    `json:"open_price"`
	CurrentPrice *decimal.Decimal   `json:"current_price,omitempty"`
	StopLoss     *decimal.Decimal   `json:"stop_loss,omitempty"`
	TakeProfit   *decimal.Decimal   `json:"take_profit,omitempty"`
	Pnl          *decimal.Decimal   `json:"pnl,omitempty"`
	OpenTime     *time.Time         `json:"open_time,omitempty"`
}

// EditInput changes only the fields that are set.
type EditInput struct {
	CurrentPrice *decimal.Decimal `json:"current_price,omitempty"`
	StopLoss     *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit   *decimal.Decimal `json:"take_profit,omitempty"`
	Pnl          *decimal.Decimal `json:"pnl,omitempty"`
	PnlPercent   *decimal.Decimal `json:"pnl_percent,omitempty"`
	Swap         *decimal.Decimal `json:"swap,omitempty"`
	Commission   *decimal.Decimal `json:"commission,omitempty"`
}

func (in EditInput) empty() bool {
	return in.CurrentPrice == nil && in.StopLoss == nil && in.TakeProfit == nil &&
		in.Pnl == nil && in.PnlPercent == nil && in.Swap == nil && in.Commission == nil
}

type CloseInput struct {
	ClosePrice decimal.Decimal  `json:"close_price"`
	CloseTime  *time.Time       `json:"close_time,omitempty"`
	Pnl        *decimal.Decimal `json:"pnl,omitempty"`
}

type PositionService struct {
	store      store.Store
	reconciler MetricsReconciler
	now        func() time.Time
}

func NewPositionService(st store.Store, reconciler MetricsReconciler) *PositionService {
	return &PositionService{store: st, reconciler: reconciler, now: time.Now}
}

// WithClock overrides the clock used for default open and close times.
func (s *PositionService) WithClock(now func() time.Time) *PositionService {
	s.now = now
	return s
}

func nullable(v *decimal.Decimal) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*v)
}

func (s *PositionService) Open(ctx context.Context, userID uuid.UUID, in OpenInput) (*model.OpenPosition, *model.UserMetrics, error) {
	log := logger.WithFields(map[string]interface{}{
		"service": "positions",
		"op":      "Open",
		"user_id": userID,
	})

	if userID == uuid.Nil {
		return nil, nil, invalid("user_id", "required")
	}
	pair := strings.ToUpper(strings.TrimSpace(in.Pair))
	if pair == "" {
		return nil, nil, invalid("pair", "required")
	}
	if !in.Type.Valid() {
		return nil, nil, invalid("type", "must be BUY or SELL")
	}
	if !in.Size.IsPositive() {
		return nil, nil, invalid("size", "must be greater than zero")
	}
	if !in.OpenPrice.IsPositive() {
		return nil, nil, invalid("open_price", "must be greater than zero")
	}

	p := &model.OpenPosition{
		ID:           uuid.New(),
		UserID:       userID,
		Pair:         pair,
		Type:         in.Type,
		Size:         in.Size,
		OpenPrice:    in.OpenPrice,
		CurrentPrice: in.OpenPrice,
		StopLoss:     nullable(in.StopLoss),
		TakeProfit:   nullable(in.TakeProfit),
		Pnl:          nullable(in.Pnl),
		OpenTime:     s.now().UTC(),
	}
	if in.CurrentPrice != nil {
		p.CurrentPrice = *in.CurrentPrice
	}
	if in.OpenTime != nil {
		p.OpenTime = in.OpenTime.UTC()
	}

	log.Debug("Inserting open position")
	if err := s.store.InsertOpenPosition(ctx, p); err != nil {
		log.WithError(err).Error("Failed to insert open position")
		return nil, nil, err
	}
	log.WithField("position_id", p.ID).Info("Opened position")

	m, err := s.reconciler.Reconcile(ctx, userID)
	return p, m, err
}

func (s *PositionService) Edit(ctx context.Context, id uuid.UUID, in EditInput) (*model.OpenPosition, *model.UserMetrics, error) {
	log := logger.WithFields(map[string]interface{}{
		"service":     "positions",
		"op":          "Edit",
		"position_id": id,
	})

	if in.empty() {
		return nil, nil, invalid("body", "no fields to update")
	}
	if in.CurrentPrice != nil && !in.CurrentPrice.IsPositive() {
		return nil, nil, invalid("current_price", "must be greater than zero")
	}

	p, err := s.store.OpenPosition(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to load open position")
		return nil, nil, err
	}

	if in.CurrentPrice != nil {
		p.CurrentPrice = *in.CurrentPrice
	}
	if in.StopLoss != nil {
		p.StopLoss = nullable(in.StopLoss)
	}
	if in.TakeProfit != nil {
		p.TakeProfit = nullable(in.TakeProfit)
	}
	if in.Pnl != nil {
		p.Pnl = nullable(in.Pnl)
	}
	if in.PnlPercent != nil {
		p.PnlPercent = nullable(in.PnlPercent)
	}
	if in.Swap != nil {
		p.Swap = nullable(in.Swap)
	}
	if in.Commission != nil {
		p.Commission = nullable(in.Commission)
	}

	if err := s.store.UpdateOpenPosition(ctx, p); err != nil {
		log.WithError(err).Error("Failed to update open position")
		return nil, nil, err
	}
	log.Info("Updated open position")

	m, err := s.reconciler.Reconcile(ctx, p.UserID)
	return p, m, err
}

// Close moves an open position into the closed history. The insert and the delete
// are separate writes; a failure between them leaves both rows until retried.
func (s *PositionService) Close(ctx context.Context, id uuid.UUID, in CloseInput) (*model.ClosedPosition, *model.UserMetrics, error) {
	log := logger.WithFields(map[string]interface{}{
		"service":     "positions",
		"op":          "Close",
		"position_id": id,
	})

	if !in.ClosePrice.IsPositive() {
		return nil, nil, invalid("close_price", "must be greater than zero")
	}

	open, err := s.store.OpenPosition(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to load open position")
		return nil, nil, err
	}

	closeTime := s.now().UTC()
	if in.CloseTime != nil {
		closeTime = in.CloseTime.UTC()
	}
	if closeTime.Before(open.OpenTime) {
		return nil, nil, invalid("close_time", "before open_time")
	}

	pnl := open.Pnl
	if in.Pnl != nil {
		pnl = decimal.NewNullDecimal(*in.Pnl)
	}
	result := model.PositionResultLoss
	if pnl.Valid && pnl.Decimal.IsPositive() {
		result = model.PositionResultWin
	}

	closed := &model.ClosedPosition{
		ID:         open.ID,
		UserID:     open.UserID,
		Pair:       open.Pair,
		Type:       open.Type,
		Size:       open.Size,
		OpenPrice:  open.OpenPrice,
		ClosePrice: in.ClosePrice,
		StopLoss:   open.StopLoss,
		TakeProfit: open.TakeProfit,
		Pnl:        pnl,
		PnlPercent: open.PnlPercent,
		Swap:       open.Swap,
		Commission: open.Commission,
		OpenTime:   open.OpenTime,
		CloseTime:  closeTime,
		Duration:   utils.HoldDuration(open.OpenTime, closeTime),
		Result:     result,
	}

	if err := s.store.InsertClosedPosition(ctx, closed); err != nil {
		log.WithError(err).Error("Failed to insert closed position")
		return nil, nil, err
	}
	if err := s.store.DeleteOpenPosition(ctx, open.ID); err != nil {
		log.WithError(err).Error("Closed row written but open row not deleted")
		return nil, nil, err
	}
	log.WithFields(map[string]interface{}{
		"user_id": open.UserID,
		"result":  result,
	}).Info("Closed position")

	m, err := s.reconciler.Reconcile(ctx, open.UserID)
	return closed, m, err
}

func (s *PositionService) Delete(ctx context.Context, id uuid.UUID) (*model.UserMetrics, error) {
	log := logger.WithFields(map[string]interface{}{
		"service":     "positions",
		"op":          "Delete",
		"position_id": id,
	})

	p, err := s.store.OpenPosition(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to load open position")
		return nil, err
	}
	if err := s.store.DeleteOpenPosition(ctx, id); err != nil {
		log.WithError(err).Error("Failed to delete open position")
		return nil, err
	}
	log.Info("Deleted open position")

	return s.reconciler.Reconcile(ctx, p.UserID)
}

func (s *PositionService) DeleteClosed(ctx context.Context, userID, id uuid.UUID) (*model.UserMetrics, error) {
	log := logger.WithFields(map[string]interface{}{
		"service":     "positions",
		"op":          "DeleteClosed",
		"user_id":     userID,
		"position_id": id,
	})

	if err := s.store.DeleteClosedPosition(ctx, userID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("Closed position not found")
		} else {
			log.WithError(err).Error("Failed to delete closed position")
		}
		return nil, err
	}
	log.Info("Deleted closed position")

	return s.reconciler.Reconcile(ctx, userID)
}

// Positions lists both position tables for a user.
func (s *PositionService) Positions(ctx context.Context, userID uuid.UUID) ([]model.OpenPosition, []model.ClosedPosition, error) {
	open, err := s.store.OpenPositions(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list open positions: %w", err)
	}
	closed, err := s.store.ClosedPositions(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list closed positions: %w", err)
	}
	return open, closed, nil
}
