package repository

import (
	"context"
	"testing"
	"time"

	"copyinvest/src/model"
	"copyinvest/src/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLiteStore(t *testing.T) (*GormStore, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.OpenPosition{}, &model.ClosedPosition{}, &model.UserMetrics{}, &model.Exception{}))

	return NewGormStoreWithDB(db), db
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestGormStore_OpenPositionLifecycle(t *testing.T) {
	st, _ := newSQLiteStore(t)
	ctx := context.Background()
	user := uuid.New()

	p := &model.OpenPosition{
		ID:           uuid.New(),
		UserID:       user,
		Pair:         "EUR/USD",
		Type:         model.PositionTypeBuy,
		Size:         d("1.5"),
		OpenPrice:    d("1.085"),
		CurrentPrice: d("1.087"),
		Pnl:          decimal.NewNullDecimal(d("30")),
		OpenTime:     time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, st.InsertOpenPosition(ctx, p))

	got, err := st.OpenPosition(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "EUR/USD", got.Pair)
	assert.True(t, d("30").Equal(got.Pnl.Decimal))
	assert.False(t, got.StopLoss.Valid)

	p.CurrentPrice = d("1.080")
	p.Pnl = decimal.NewNullDecimal(d("-75"))
	p.StopLoss = decimal.NewNullDecimal(d("1.070"))
	require.NoError(t, st.UpdateOpenPosition(ctx, p))

	rows, err := st.OpenPositions(ctx, user)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, d("-75").Equal(rows[0].Pnl.Decimal))
	assert.True(t, rows[0].StopLoss.Valid)

	require.NoError(t, st.DeleteOpenPosition(ctx, p.ID))
	_, err = st.OpenPosition(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, st.DeleteOpenPosition(ctx, p.ID), store.ErrNotFound)

	missing := *p
	missing.ID = uuid.New()
	assert.ErrorIs(t, st.UpdateOpenPosition(ctx, &missing), store.ErrNotFound)
}

func TestGormStore_ClosedPositions(t *testing.T) {
	st, _ := newSQLiteStore(t)
	ctx := context.Background()
	user := uuid.New()
	closedAt := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)

	older := &model.ClosedPosition{ID: uuid.New(), UserID: user, Pair: "AUD/USD", Type: model.PositionTypeSell, Pnl: decimal.NewNullDecimal(d("450")), CloseTime: closedAt.Add(-time.Hour), Result: model.PositionResultWin}
	newer := &model.ClosedPosition{ID: uuid.New(), UserID: user, Pair: "USD/CAD", Type: model.PositionTypeBuy, CloseTime: closedAt, Result: model.PositionResultLoss}
	require.NoError(t, st.InsertClosedPosition(ctx, older))
	require.NoError(t, st.InsertClosedPosition(ctx, newer))

	rows, err := st.ClosedPositions(ctx, user)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "USD/CAD", rows[0].Pair)
	assert.False(t, rows[0].Pnl.Valid)

	assert.ErrorIs(t, st.DeleteClosedPosition(ctx, uuid.New(), older.ID), store.ErrNotFound)
	require.NoError(t, st.DeleteClosedPosition(ctx, user, older.ID))

	rows, err = st.ClosedPositions(ctx, user)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestGormStore_UpsertUserMetrics(t *testing.T) {
	st, _ := newSQLiteStore(t)
	ctx := context.Background()
	user := uuid.New()

	m, err := st.UserMetrics(ctx, user)
	require.NoError(t, err)
	assert.Nil(t, m)

	trades := 12
	first := &model.UserMetrics{
		UserID:         user,
		AccountBalance: d("489.3"),
		TotalOpenPnl:   d("230"),
		Equity:         d("719.3"),
		OpenPositions:  3,
		WinRate:        d("62.5"),
		TotalTrades:    &trades,
		UpdatedAt:      time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, st.UpsertUserMetrics(ctx, first))

	// the second write drops every open position; zero values must still be written
	second := *first
	second.TotalOpenPnl = decimal.Zero
	second.Equity = d("489.3")
	second.OpenPositions = 0
	second.TodayPnlPercent = d("-1.25")
	second.UpdatedAt = first.UpdatedAt.Add(time.Minute)
	require.NoError(t, st.UpsertUserMetrics(ctx, &second))

	stored, err := st.UserMetrics(ctx, user)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Equal(second), "stored=%+v", stored)
	assert.Equal(t, 0, stored.OpenPositions)
}

func TestExceptionRepository_FindRecent(t *testing.T) {
	_, db := newSQLiteStore(t)
	repo := (&ExceptionRepository{}).WithDB(db)
	ctx := context.Background()

	base := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	for i, method := range []string{"OpenPosition", "ClosePosition", "Reconcile"} {
		require.NoError(t, repo.Create(ctx, &model.Exception{
			Service:   "admin_api",
			Module:    "reconcile",
			Method:    method,
			Message:   "upsert failed",
			Level:     model.ExceptionLevelError,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	out, err := repo.FindRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Reconcile", out[0].Method)
	assert.Equal(t, "ClosePosition", out[1].Method)
}
