// Package reconcile recomputes the user_metrics summary of an account from its
// open and closed positions.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"copyinvest/src/model"
	"copyinvest/src/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const dateLayout = "2006-01-02"

var hundred = decimal.NewFromInt(100)

// Observer is notified after every reconciliation attempt.
type Observer interface {
	Reconciled(m *model.UserMetrics, took time.Duration)
	Failed(userID uuid.UUID, err *Error, took time.Duration)
}

// Reconciler performs a full recompute of user_metrics on every call. It takes no
// lock: two concurrent calls for one user both read-then-write and the later upsert
// wins, even when it was computed from older position data.
type Reconciler struct {
	positions store.PositionReader
	metrics   store.MetricsStore
	now       func() time.Time
	loc       *time.Location
	observers []Observer
}

type Option func(*Reconciler)

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithLocation sets the time zone used to decide whether a close_time is today.
func WithLocation(loc *time.Location) Option {
	return func(r *Reconciler) { r.loc = loc }
}

func WithObserver(o Observer) Option {
	return func(r *Reconciler) { r.observers = append(r.observers, o) }
}

func New(positions store.PositionReader, metrics store.MetricsStore, opts ...Option) *Reconciler {
	r := &Reconciler{
		positions: positions,
		metrics:   metrics,
		now:       time.Now,
		loc:       time.UTC,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewFromConfig builds a Reconciler over a single backend using RECONCILE_TIMEZONE.
func NewFromConfig(st store.Store, opts ...Option) (*Reconciler, error) {
	config := GetConfig()
	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load reconcile timezone %q: %w", config.Timezone, err)
	}
	return New(st, st, append([]Option{WithLocation(loc)}, opts...)...), nil
}

// Reconcile rebuilds and stores the metrics row of userID. Every error is an *Error.
func (r *Reconciler) Reconcile(ctx context.Context, userID uuid.UUID) (*model.UserMetrics, error) {
	started := r.now()
	log := logger.WithFields(map[string]interface{}{
		"component": "Reconciler",
		"user_id":   userID,
	})
	log.Debug("Reconciling user metrics")

	m, rerr := r.reconcile(ctx, userID)
	took := r.now().Sub(started)
	if rerr != nil {
		log.WithError(rerr.Err).WithField("kind", rerr.Kind).Error("Failed to reconcile user metrics")
		for _, o := range r.observers {
			o.Failed(userID, rerr, took)
		}
		return nil, rerr
	}

	log.WithFields(map[string]interface{}{
		"account_balance": m.AccountBalance.String(),
		"equity":          m.Equity.String(),
		"open_positions":  m.OpenPositions,
	}).Info("User metrics reconciled")
	for _, o := range r.observers {
		o.Reconciled(m, took)
	}
	return m, nil
}

func (r *Reconciler) reconcile(ctx context.Context, userID uuid.UUID) (*model.UserMetrics, *Error) {
	var (
		open   []model.OpenPosition
		closed []model.ClosedPosition
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.positions.OpenPositions(gctx, userID)
		if err != nil {
			return fetchFailure(userID, "fetch open positions", err)
		}
		open = rows
		return nil
	})
	g.Go(func() error {
		rows, err := r.positions.ClosedPositions(gctx, userID)
		if err != nil {
			return fetchFailure(userID, "fetch closed positions", err)
		}
		closed = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		var rerr *Error
		if errors.As(err, &rerr) {
			return nil, rerr
		}
		return nil, fetchFailure(userID, "fetch positions", err)
	}

	prior, err := r.metrics.UserMetrics(ctx, userID)
	if err != nil {
		return nil, fetchFailure(userID, "fetch prior metrics", err)
	}

	now := r.now()
	m := compute(userID, normalize(open, closed, r.loc), prior, now.In(r.loc).Format(dateLayout))
	m.UpdatedAt = now

	if err := r.metrics.UpsertUserMetrics(ctx, &m); err != nil {
		return nil, upsertFailure(userID, err)
	}
	return &m, nil
}

// ReconcileAll reconciles each user in turn. A failure does not stop the batch;
// the returned error joins every per-user failure.
func (r *Reconciler) ReconcileAll(ctx context.Context, userIDs []uuid.UUID) ([]*model.UserMetrics, error) {
	out := make([]*model.UserMetrics, 0, len(userIDs))
	var errs []error
	for _, id := range userIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		m, err := r.Reconcile(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, m)
	}
	return out, errors.Join(errs...)
}

type closedEntry struct {
	pnl       decimal.Decimal
	closeDate string
}

type ledger struct {
	open   []decimal.Decimal
	closed []closedEntry
}

// normalize is the only place row defaults are applied: a NULL pnl counts as zero
// and close_time is reduced to its calendar date in loc.
func normalize(open []model.OpenPosition, closed []model.ClosedPosition, loc *time.Location) ledger {
	l := ledger{
		open:   make([]decimal.Decimal, 0, len(open)),
		closed: make([]closedEntry, 0, len(closed)),
	}
	for _, p := range open {
		l.open = append(l.open, pnlOrZero(p.Pnl))
	}
	for _, p := range closed {
		entry := closedEntry{pnl: pnlOrZero(p.Pnl)}
		if !p.CloseTime.IsZero() {
			entry.closeDate = p.CloseTime.In(loc).Format(dateLayout)
		}
		l.closed = append(l.closed, entry)
	}
	return l
}

func pnlOrZero(v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}

func compute(userID uuid.UUID, l ledger, prior *model.UserMetrics, today string) model.UserMetrics {
	balance := decimal.Zero
	todaySum := decimal.Zero
	for _, c := range l.closed {
		balance = balance.Add(c.pnl)
		if c.closeDate == today {
			todaySum = todaySum.Add(c.pnl)
		}
	}

	openPnl := decimal.Zero
	for _, pnl := range l.open {
		openPnl = openPnl.Add(pnl)
	}

	m := model.UserMetrics{
		UserID:          userID,
		AccountBalance:  balance,
		TotalOpenPnl:    openPnl,
		Equity:          balance.Add(openPnl),
		OpenPositions:   len(l.open),
		TodayPnlPercent: decimal.Zero,
		WinRate:         decimal.Zero,
	}

	if prior != nil {
		m.WinRate = prior.WinRate
		m.MaxDrawdown = prior.MaxDrawdown
		m.ProfitFactor = prior.ProfitFactor
		if prior.TotalTrades != nil {
			total := *prior.TotalTrades
			m.TotalTrades = &total
		}
		m.TodayPnlPercent = prior.TodayPnlPercent
	}

	if !balance.IsZero() {
		m.TodayPnlPercent = todaySum.Div(balance).Mul(hundred).Round(2)
	}

	return m
}
