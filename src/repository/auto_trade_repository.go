package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradeexecutor/src/database"
	"tradeexecutor/src/model"
)

// AutoTradeRepository maintains the trade ledger.
type AutoTradeRepository struct {
	db *gorm.DB
}

func NewAutoTradeRepository() *AutoTradeRepository {
	return &AutoTradeRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *AutoTradeRepository) WithDB(db *gorm.DB) *AutoTradeRepository {
	return &AutoTradeRepository{db: db}
}

func (r *AutoTradeRepository) Create(ctx context.Context, trade *model.AutoTrade) error {
	if err := r.db.WithContext(ctx).Create(trade).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "AutoTradeRepository",
			"op":       "Create",
			"symbol":   trade.Symbol,
			"order_id": trade.OrderID,
		}).WithError(err).Error("Failed to create auto trade")
		return err
	}
	return nil
}

// FindOpen returns the newest trade without a close time.
// Returns (nil, nil) if none is open.
func (r *AutoTradeRepository) FindOpen(
	ctx context.Context,
	strategyID uint,
	symbol, side string,
) (*model.AutoTrade, error) {

	var trade model.AutoTrade

	err := r.db.WithContext(ctx).
		Where("strategy_id = ? AND symbol = ? AND side = ? AND close_time IS NULL", strategyID, symbol, side).
		Order("open_time DESC").
		First(&trade).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo":        "AutoTradeRepository",
			"op":          "FindOpen",
			"strategy_id": strategyID,
			"symbol":      symbol,
		}).WithError(err).Error("Failed to fetch open trade")
		return nil, err
	}

	return &trade, nil
}

// Close settles an open trade.
func (r *AutoTradeRepository) Close(
	ctx context.Context,
	id uint,
	pnl, fees decimal.Decimal,
	status string,
	closedAt time.Time,
) error {

	err := r.db.WithContext(ctx).
		Model(&model.AutoTrade{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"close_time": closedAt,
			"pnl":        pnl,
			"fees":       fees,
			"status":     status,
		}).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "AutoTradeRepository",
			"op":   "Close",
			"id":   id,
		}).WithError(err).Error("Failed to close trade")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo": "AutoTradeRepository",
		"op":   "Close",
		"id":   id,
		"pnl":  pnl.String(),
	}).Info("Trade closed")
	return nil
}
