package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradeexecutor/src/database"
	"tradeexecutor/src/externalmodel"
)

// StrategySignalRepository reads signals and updates their status.
type StrategySignalRepository struct {
	db *gorm.DB
}

func NewStrategySignalRepository() *StrategySignalRepository {
	logger.WithField("component", "StrategySignalRepository").
		Info("Creating new StrategySignalRepository with MainDB")

	return &StrategySignalRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *StrategySignalRepository) WithDB(db *gorm.DB) *StrategySignalRepository {
	return &StrategySignalRepository{db: db}
}

// FindByID fetches a single signal by its primary ID.
// Returns (nil, nil) if not found.
func (r *StrategySignalRepository) FindByID(
	ctx context.Context,
	id uint,
) (*externalmodel.StrategySignal, error) {

	var signal externalmodel.StrategySignal

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&signal).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo": "StrategySignalRepository",
				"op":   "FindByID",
				"id":   id,
			}).Info("Strategy signal not found")
			return nil, nil // not found is not an error
		}

		logger.WithFields(map[string]interface{}{
			"repo": "StrategySignalRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch strategy signal by ID")

		return nil, err
	}

	return &signal, nil
}

// UpdateStatus sets the status of one signal and reports whether a row changed.
func (r *StrategySignalRepository) UpdateStatus(
	ctx context.Context,
	id uint,
	status string,
) (bool, error) {

	res := r.db.WithContext(ctx).
		Model(&externalmodel.StrategySignal{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})

	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "StrategySignalRepository",
			"op":     "UpdateStatus",
			"id":     id,
			"status": status,
		}).WithError(res.Error).Error("Failed to update strategy signal status")

		return false, res.Error
	}

	logger.WithFields(map[string]interface{}{
		"repo":   "StrategySignalRepository",
		"op":     "UpdateStatus",
		"id":     id,
		"status": status,
		"rows":   res.RowsAffected,
	}).Info("Strategy signal status updated")

	return res.RowsAffected > 0, nil
}

// FindPendingInWindow lists PENDING signals of one strategy, symbol and type
// created within [from, to], ordered by creation time.
func (r *StrategySignalRepository) FindPendingInWindow(
	ctx context.Context,
	strategyID uint,
	symbol string,
	signalType string,
	from, to time.Time,
) ([]externalmodel.StrategySignal, error) {

	var signals []externalmodel.StrategySignal

	err := r.db.WithContext(ctx).
		Where("strategy_id = ? AND symbol = ? AND signal_type = ? AND status = ?",
			strategyID, symbol, signalType, externalmodel.SignalStatusPending).
		Where("created_at >= ? AND created_at <= ?", from, to).
		Order("created_at ASC, id ASC").
		Find(&signals).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":        "StrategySignalRepository",
			"op":          "FindPendingInWindow",
			"strategy_id": strategyID,
			"symbol":      symbol,
		}).WithError(err).Error("Failed to fetch pending signals")

		return nil, err
	}

	return signals, nil
}
