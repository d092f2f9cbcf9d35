package migrations

import (
	"copyinvest/src/model"

	"gorm.io/gorm"
)

// backfillClosedPositionResult derives win/loss for history rows imported without a result.
func backfillClosedPositionResult(db *gorm.DB) error {
	return db.Model(&model.ClosedPosition{}).
		Where("result IS NULL OR result = ''").
		Update("result", gorm.Expr("CASE WHEN pnl > 0 THEN ? ELSE ? END", model.PositionResultWin, model.PositionResultLoss)).
		Error
}
