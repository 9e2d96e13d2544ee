package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradeexecutor/src/database"
	"tradeexecutor/src/model"
)

// StrategyInstanceRepository stores per-(strategy, symbol) lifecycle state.
type StrategyInstanceRepository struct {
	db *gorm.DB
}

func NewStrategyInstanceRepository() *StrategyInstanceRepository {
	return &StrategyInstanceRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *StrategyInstanceRepository) WithDB(db *gorm.DB) *StrategyInstanceRepository {
	return &StrategyInstanceRepository{db: db}
}

// GetState returns the stored state; found is false when no row exists.
func (r *StrategyInstanceRepository) GetState(
	ctx context.Context,
	strategyID uint,
	symbol string,
) (string, bool, error) {

	var inst model.StrategyInstance

	err := r.db.WithContext(ctx).
		Where("strategy_id = ? AND symbol = ?", strategyID, symbol).
		First(&inst).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo":        "StrategyInstanceRepository",
			"op":          "GetState",
			"strategy_id": strategyID,
			"symbol":      symbol,
		}).WithError(err).Error("Failed to fetch instance state")
		return "", false, err
	}

	return inst.CurrentState, true, nil
}

// SetState upserts on (strategy_id, symbol).
func (r *StrategyInstanceRepository) SetState(
	ctx context.Context,
	strategyID uint,
	symbol, state string,
	data map[string]interface{},
) error {

	inst := &model.StrategyInstance{
		StrategyID:   strategyID,
		Symbol:       symbol,
		CurrentState: state,
		LastUpdated:  time.Now(),
	}
	if len(data) > 0 {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		inst.Context = string(raw)
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "strategy_id"},
				{Name: "symbol"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"current_state",
				"context",
				"last_updated",
			}),
		}).
		Create(inst).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":        "StrategyInstanceRepository",
			"op":          "SetState",
			"strategy_id": strategyID,
			"symbol":      symbol,
			"state":       state,
		}).WithError(err).Error("Failed to upsert instance state")
	}
	return err
}

// ListByStrategy returns every instance of a strategy, most recently updated first.
func (r *StrategyInstanceRepository) ListByStrategy(
	ctx context.Context,
	strategyID uint,
) ([]model.StrategyInstance, error) {

	var out []model.StrategyInstance
	err := r.db.WithContext(ctx).
		Where("strategy_id = ?", strategyID).
		Order("last_updated DESC").
		Find(&out).Error
	return out, err
}
