package reconcile

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"copyinvest/src/model"
	"copyinvest/src/store/memstore"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testUser = uuid.MustParse("5b0e8a52-3f4f-4a4e-9c1c-1f2d3e4a5b6c")
	testNow  = time.Date(2025, time.March, 4, 15, 30, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nullDec(s string) decimal.NullDecimal { return decimal.NewNullDecimal(dec(s)) }

func closedAt(user uuid.UUID, pnl string, at time.Time) model.ClosedPosition {
	p := model.ClosedPosition{
		ID:         uuid.New(),
		UserID:     user,
		Pair:       "EUR/USD",
		Type:       model.PositionTypeBuy,
		Size:       dec("1"),
		OpenPrice:  dec("1.0850"),
		ClosePrice: dec("1.0900"),
		OpenTime:   at.Add(-2 * time.Hour),
		CloseTime:  at,
		Result:     model.PositionResultWin,
	}
	if pnl != "" {
		p.Pnl = nullDec(pnl)
	}
	return p
}

func openWith(user uuid.UUID, pnl string) model.OpenPosition {
	p := model.OpenPosition{
		ID:           uuid.New(),
		UserID:       user,
		Pair:         "GBP/USD",
		Type:         model.PositionTypeSell,
		Size:         dec("0.5"),
		OpenPrice:    dec("1.2700"),
		CurrentPrice: dec("1.2650"),
		OpenTime:     testNow.Add(-time.Hour),
	}
	if pnl != "" {
		p.Pnl = nullDec(pnl)
	}
	return p
}

func newTestReconciler(st *memstore.Store, opts ...Option) *Reconciler {
	return New(st, st, append([]Option{WithClock(func() time.Time { return testNow })}, opts...)...)
}

func yesterday() time.Time { return testNow.Add(-24 * time.Hour) }

func TestReconcile_ClosedOnlyBalance(t *testing.T) {
	st := memstore.New()
	st.Seed(nil, []model.ClosedPosition{
		closedAt(testUser, "450", yesterday()),
		closedAt(testUser, "-266.7", yesterday()),
		closedAt(testUser, "306", yesterday()),
	}, nil)

	m, err := newTestReconciler(st).Reconcile(context.Background(), testUser)
	require.NoError(t, err)

	assert.True(t, dec("489.3").Equal(m.AccountBalance), "account_balance=%s", m.AccountBalance)
	assert.True(t, m.TotalOpenPnl.IsZero())
	assert.True(t, dec("489.3").Equal(m.Equity))
	assert.Equal(t, 0, m.OpenPositions)
	assert.Equal(t, testNow, m.UpdatedAt)
}

func TestReconcile_OpenOnlyNoPriorRow(t *testing.T) {
	st := memstore.New()
	st.Seed([]model.OpenPosition{openWith(testUser, "230")}, nil, nil)

	m, err := newTestReconciler(st).Reconcile(context.Background(), testUser)
	require.NoError(t, err)

	assert.True(t, m.AccountBalance.IsZero())
	assert.True(t, dec("230").Equal(m.TotalOpenPnl))
	assert.True(t, dec("230").Equal(m.Equity))
	assert.Equal(t, 1, m.OpenPositions)
	assert.True(t, m.TodayPnlPercent.IsZero())
	assert.True(t, m.WinRate.IsZero())
	assert.False(t, m.MaxDrawdown.Valid)
	assert.False(t, m.ProfitFactor.Valid)
	assert.Nil(t, m.TotalTrades)
}

func TestReconcile_TodayPnlPercent(t *testing.T) {
	st := memstore.New()
	st.Seed(nil, []model.ClosedPosition{
		closedAt(testUser, "100", testNow.Add(-3*time.Hour)),
		closedAt(testUser, "50", yesterday()),
	}, nil)

	m, err := newTestReconciler(st).Reconcile(context.Background(), testUser)
	require.NoError(t, err)

	assert.True(t, dec("150").Equal(m.AccountBalance))
	assert.True(t, dec("66.67").Equal(m.TodayPnlPercent), "today_pnl_percent=%s", m.TodayPnlPercent)
}

func TestReconcile_TodayUsesConfiguredLocation(t *testing.T) {
	// 23:30 UTC on March 3rd is already March 4th in Tokyo.
	closeTime := time.Date(2025, time.March, 3, 23, 30, 0, 0, time.UTC)
	now := WithClock(func() time.Time { return time.Date(2025, time.March, 4, 10, 0, 0, 0, time.UTC) })
	st := memstore.New()
	st.Seed(nil, []model.ClosedPosition{
		closedAt(testUser, "40", closeTime),
		closedAt(testUser, "60", closeTime.Add(-48*time.Hour)),
	}, nil)

	m, err := newTestReconciler(st, now).Reconcile(context.Background(), testUser)
	require.NoError(t, err)
	assert.True(t, m.TodayPnlPercent.IsZero(), "UTC day should not include the position")

	tokyo := time.FixedZone("JST", 9*60*60)
	m, err = newTestReconciler(st, now, WithLocation(tokyo)).Reconcile(context.Background(), testUser)
	require.NoError(t, err)
	assert.True(t, dec("40").Equal(m.TodayPnlPercent), "today_pnl_percent=%s", m.TodayPnlPercent)
}

func TestReconcile_ZeroBalanceKeepsPreviousPercent(t *testing.T) {
	st := memstore.New()
	st.Seed(nil, []model.ClosedPosition{
		closedAt(testUser, "120", testNow.Add(-time.Hour)),
		closedAt(testUser, "-120", yesterday()),
	}, []model.UserMetrics{{UserID: testUser, TodayPnlPercent: dec("3.25")}})

	m, err := newTestReconciler(st).Reconcile(context.Background(), testUser)
	require.NoError(t, err)

	assert.True(t, m.AccountBalance.IsZero())
	assert.True(t, dec("3.25").Equal(m.TodayPnlPercent), "today_pnl_percent=%s", m.TodayPnlPercent)
}

func TestReconcile_PreservesManualFields(t *testing.T) {
	trades := 16
	prior := model.UserMetrics{
		UserID:       testUser,
		WinRate:      dec("62.5"),
		MaxDrawdown:  nullDec("12.4"),
		ProfitFactor: nullDec("1.8"),
		TotalTrades:  &trades,
		Equity:       dec("999"),
	}
	open := openWith(testUser, "10")
	st := memstore.New()
	st.Seed([]model.OpenPosition{open}, []model.ClosedPosition{closedAt(testUser, "200", yesterday())}, []model.UserMetrics{prior})

	// an unrelated edit: the open position price moves
	open.CurrentPrice = dec("1.2600")
	open.Pnl = nullDec("25")
	require.NoError(t, st.UpdateOpenPosition(context.Background(), &open))

	m, err := newTestReconciler(st).Reconcile(context.Background(), testUser)
	require.NoError(t, err)

	assert.True(t, dec("62.5").Equal(m.WinRate))
	assert.True(t, m.MaxDrawdown.Valid && dec("12.4").Equal(m.MaxDrawdown.Decimal))
	assert.True(t, m.ProfitFactor.Valid && dec("1.8").Equal(m.ProfitFactor.Decimal))
	require.NotNil(t, m.TotalTrades)
	assert.Equal(t, 16, *m.TotalTrades)
	assert.True(t, dec("225").Equal(m.Equity))
}

func TestReconcile_NullPnlCountsAsZero(t *testing.T) {
	st := memstore.New()
	st.Seed(
		[]model.OpenPosition{openWith(testUser, ""), openWith(testUser, "15.5")},
		[]model.ClosedPosition{closedAt(testUser, "", yesterday()), closedAt(testUser, "80", yesterday())},
		nil,
	)

	m, err := newTestReconciler(st).Reconcile(context.Background(), testUser)
	require.NoError(t, err)

	assert.True(t, dec("80").Equal(m.AccountBalance))
	assert.True(t, dec("15.5").Equal(m.TotalOpenPnl))
	assert.Equal(t, 2, m.OpenPositions)
}

func TestReconcile_IgnoresOtherUsers(t *testing.T) {
	other := uuid.New()
	st := memstore.New()
	st.Seed(
		[]model.OpenPosition{openWith(other, "500")},
		[]model.ClosedPosition{closedAt(other, "700", yesterday()), closedAt(testUser, "5", yesterday())},
		nil,
	)

	m, err := newTestReconciler(st).Reconcile(context.Background(), testUser)
	require.NoError(t, err)

	assert.True(t, dec("5").Equal(m.AccountBalance))
	assert.Equal(t, 0, m.OpenPositions)
}

func TestReconcile_Idempotent(t *testing.T) {
	st := memstore.New()
	st.Seed(
		[]model.OpenPosition{openWith(testUser, "12.3"), openWith(testUser, "-4")},
		[]model.ClosedPosition{closedAt(testUser, "100", testNow), closedAt(testUser, "-30.25", yesterday())},
		[]model.UserMetrics{{UserID: testUser, WinRate: dec("50")}},
	)
	r := newTestReconciler(st)

	first, err := r.Reconcile(context.Background(), testUser)
	require.NoError(t, err)
	second, err := r.Reconcile(context.Background(), testUser)
	require.NoError(t, err)

	assert.True(t, first.Equal(*second), "first=%+v second=%+v", first, second)

	stored, err := st.UserMetrics(context.Background(), testUser)
	require.NoError(t, err)
	assert.True(t, stored.Equal(*second))
}

func TestReconcile_SumAndEquityProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 25; run++ {
		st := memstore.New()
		wantBalance := decimal.Zero
		wantOpen := decimal.Zero

		var closed []model.ClosedPosition
		for i := rng.Intn(20); i > 0; i-- {
			v := decimal.New(rng.Int63n(2000000)-1000000, -2)
			wantBalance = wantBalance.Add(v)
			closed = append(closed, closedAt(testUser, v.String(), yesterday()))
		}
		var open []model.OpenPosition
		for i := rng.Intn(10); i > 0; i-- {
			v := decimal.New(rng.Int63n(200000)-100000, -2)
			wantOpen = wantOpen.Add(v)
			open = append(open, openWith(testUser, v.String()))
		}
		st.Seed(open, closed, nil)

		m, err := newTestReconciler(st).Reconcile(context.Background(), testUser)
		require.NoError(t, err)

		assert.True(t, wantBalance.Equal(m.AccountBalance), "run %d balance", run)
		assert.True(t, wantOpen.Equal(m.TotalOpenPnl), "run %d open pnl", run)
		assert.True(t, m.AccountBalance.Add(m.TotalOpenPnl).Equal(m.Equity), "run %d equity identity", run)
		assert.Equal(t, len(open), m.OpenPositions, "run %d open count", run)
	}
}

func TestReconcile_FetchFailures(t *testing.T) {
	boom := errors.New("connection reset")

	tests := []struct {
		name   string
		inject func(st *memstore.Store)
	}{
		{name: "open positions", inject: func(st *memstore.Store) { st.OpenErr = boom }},
		{name: "closed positions", inject: func(st *memstore.Store) { st.ClosedErr = boom }},
		{name: "prior metrics", inject: func(st *memstore.Store) { st.MetricsErr = boom }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := memstore.New()
			st.Seed([]model.OpenPosition{openWith(testUser, "1")}, nil, nil)
			tc.inject(st)

			m, err := newTestReconciler(st).Reconcile(context.Background(), testUser)
			require.Error(t, err)
			assert.Nil(t, m)

			var rerr *Error
			require.True(t, errors.As(err, &rerr))
			assert.Equal(t, KindFetch, rerr.Kind)
			assert.Equal(t, testUser, rerr.UserID)
			assert.ErrorIs(t, err, boom)
			assert.Empty(t, st.Writes())
		})
	}
}

func TestReconcile_UpsertFailureLeavesRowUnchanged(t *testing.T) {
	prior := model.UserMetrics{UserID: testUser, AccountBalance: dec("10"), Equity: dec("10")}
	st := memstore.New()
	st.Seed(nil, []model.ClosedPosition{closedAt(testUser, "99", yesterday())}, []model.UserMetrics{prior})
	st.UpsertErr = errors.New("permission denied for table user_metrics")

	_, err := newTestReconciler(st).Reconcile(context.Background(), testUser)

	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, KindUpsert, rerr.Kind)

	stored, err := st.UserMetrics(context.Background(), testUser)
	require.NoError(t, err)
	assert.True(t, stored.Equal(prior))
}

type ctxLabel struct{}

func TestReconcile_ConcurrentCallsLastWriteWins(t *testing.T) {
	st := memstore.New()
	st.Seed(nil, []model.ClosedPosition{closedAt(testUser, "100", yesterday())}, nil)

	bStored := make(chan struct{})
	st.BeforeUpsert = func(ctx context.Context, _ *model.UserMetrics) {
		if ctx.Value(ctxLabel{}) == "A" {
			<-bStored
		}
	}
	st.AfterUpsert = func(ctx context.Context, _ *model.UserMetrics) {
		if ctx.Value(ctxLabel{}) == "B" {
			close(bStored)
		}
	}

	r := newTestReconciler(st)
	var (
		wg   sync.WaitGroup
		aRes *model.UserMetrics
		aErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		aRes, aErr = r.Reconcile(context.WithValue(context.Background(), ctxLabel{}, "A"), testUser)
	}()

	bRes, err := r.Reconcile(context.WithValue(context.Background(), ctxLabel{}, "B"), testUser)
	require.NoError(t, err)
	wg.Wait()
	require.NoError(t, aErr)

	writes := st.Writes()
	require.Len(t, writes, 2)
	assert.True(t, writes[0].Equal(*bRes))
	assert.True(t, writes[1].Equal(*aRes))

	stored, err := st.UserMetrics(context.Background(), testUser)
	require.NoError(t, err)
	assert.True(t, stored.Equal(*aRes))
}

// Known gap: a reconciliation that read older positions can overwrite a fresher one.
func TestReconcile_ConcurrentCallsStaleOverwrite(t *testing.T) {
	st := memstore.New()
	st.Seed(nil, []model.ClosedPosition{closedAt(testUser, "100", yesterday())}, nil)

	aWaiting := make(chan struct{})
	bStored := make(chan struct{})
	st.BeforeUpsert = func(ctx context.Context, _ *model.UserMetrics) {
		if ctx.Value(ctxLabel{}) == "A" {
			close(aWaiting)
			<-bStored
		}
	}
	st.AfterUpsert = func(ctx context.Context, _ *model.UserMetrics) {
		if ctx.Value(ctxLabel{}) == "B" {
			close(bStored)
		}
	}

	r := newTestReconciler(st)
	done := make(chan *model.UserMetrics)
	go func() {
		m, err := r.Reconcile(context.WithValue(context.Background(), ctxLabel{}, "A"), testUser)
		if err != nil {
			t.Errorf("reconcile A: %v", err)
		}
		done <- m
	}()

	<-aWaiting
	st.Seed(nil, []model.ClosedPosition{closedAt(testUser, "50", yesterday())}, nil)

	bRes, err := r.Reconcile(context.WithValue(context.Background(), ctxLabel{}, "B"), testUser)
	require.NoError(t, err)
	aRes := <-done
	require.NotNil(t, aRes)

	assert.True(t, dec("150").Equal(bRes.AccountBalance))
	assert.True(t, dec("100").Equal(aRes.AccountBalance))

	stored, err := st.UserMetrics(context.Background(), testUser)
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(stored.AccountBalance), "stale write should win")
}

type recordingObserver struct {
	ok     []*model.UserMetrics
	failed []*Error
}

func (o *recordingObserver) Reconciled(m *model.UserMetrics, _ time.Duration) {
	o.ok = append(o.ok, m)
}

func (o *recordingObserver) Failed(_ uuid.UUID, err *Error, _ time.Duration) {
	o.failed = append(o.failed, err)
}

func TestReconcile_NotifiesObservers(t *testing.T) {
	obs := &recordingObserver{}
	st := memstore.New()
	r := newTestReconciler(st, WithObserver(obs))

	_, err := r.Reconcile(context.Background(), testUser)
	require.NoError(t, err)

	st.UpsertErr = errors.New("timeout")
	_, err = r.Reconcile(context.Background(), testUser)
	require.Error(t, err)

	require.Len(t, obs.ok, 1)
	require.Len(t, obs.failed, 1)
	assert.Equal(t, KindUpsert, obs.failed[0].Kind)
}

type flakyClosedStore struct {
	*memstore.Store
	failFor uuid.UUID
}

func (s *flakyClosedStore) ClosedPositions(ctx context.Context, userID uuid.UUID) ([]model.ClosedPosition, error) {
	if userID == s.failFor {
		return nil, errors.New("statement timeout")
	}
	return s.Store.ClosedPositions(ctx, userID)
}

func TestReconcileAll_CollectsFailures(t *testing.T) {
	bad := uuid.New()
	mem := memstore.New()
	mem.Seed(nil, []model.ClosedPosition{closedAt(testUser, "10", yesterday())}, nil)
	st := &flakyClosedStore{Store: mem, failFor: bad}

	r := New(st, st, WithClock(func() time.Time { return testNow }))
	out, err := r.ReconcileAll(context.Background(), []uuid.UUID{bad, testUser})

	require.Error(t, err)
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, bad, rerr.UserID)

	require.Len(t, out, 1)
	assert.Equal(t, testUser, out[0].UserID)
}

func TestNewFromConfig_InvalidTimezone(t *testing.T) {
	t.Setenv("RECONCILE_TIMEZONE", "Mars/Olympus_Mons")

	_, err := NewFromConfig(memstore.New())
	require.Error(t, err)
}

func TestNewFromConfig_LoadsTimezone(t *testing.T) {
	t.Setenv("RECONCILE_TIMEZONE", "UTC")

	r, err := NewFromConfig(memstore.New())
	require.NoError(t, err)
	assert.Equal(t, time.UTC, r.loc)
}
