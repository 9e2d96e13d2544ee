package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradeexecutor/src/database"
	"tradeexecutor/src/model"
)

// ExecutionOrderRepository handles execution orders and their status log.
type ExecutionOrderRepository struct {
	db *gorm.DB
}

// NewExecutionOrderRepository creates a new repository instance using the main read/write database.
func NewExecutionOrderRepository() *ExecutionOrderRepository {
	logger.WithField("component", "ExecutionOrderRepository").
		Info("Creating new ExecutionOrderRepository with MainDB")

	return &ExecutionOrderRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *ExecutionOrderRepository) WithDB(db *gorm.DB) *ExecutionOrderRepository {
	return &ExecutionOrderRepository{db: db}
}

// CreateWithAutoLog inserts the order and its first log row in one transaction.
func (r *ExecutionOrderRepository) CreateWithAutoLog(
	ctx context.Context,
	order *model.ExecutionOrder,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":     "ExecutionOrderRepository",
		"op":       "CreateWithAutoLog",
		"symbol":   order.Symbol,
		"side":     order.Side,
		"order_id": order.OrderID,
	}).Debug("Creating execution order with automatic log")

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if order.CurrentStatus == "" {
			order.CurrentStatus = model.ExecutionStatusSubmitted
		}
		if err := tx.Create(order).Error; err != nil {
			logger.WithError(err).Error("Failed to create execution order inside transaction")
			return err
		}

		logEntry := &model.ExecutionOrderLog{
			ExecutionOrderID: order.ID,
			OrderID:          order.OrderID,
			Symbol:           order.Symbol,
			Side:             order.Side,
			Status:           order.CurrentStatus,
			Reason:           "submitted",
			CreatedAt:        time.Now(),
		}
		if err := tx.Create(logEntry).Error; err != nil {
			logger.WithError(err).Error("Failed to create execution order log")
			return err
		}

		return nil
	})
}

// FindByOrderID fetches an execution order by broker order id.
// Returns (nil, nil) if the order is not found.
func (r *ExecutionOrderRepository) FindByOrderID(
	ctx context.Context,
	orderID string,
) (*model.ExecutionOrder, error) {

	var order model.ExecutionOrder

	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&order).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo":     "ExecutionOrderRepository",
				"op":       "FindByOrderID",
				"order_id": orderID,
			}).Info("Execution order not found")

			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":     "ExecutionOrderRepository",
			"op":       "FindByOrderID",
			"order_id": orderID,
		}).WithError(err).Error("Failed to fetch execution order")

		return nil, err
	}

	return &order, nil
}

// UpdateStatusWithAutoLog writes the new status and a log row. Writing the
// status the order already has is a no-op.
func (r *ExecutionOrderRepository) UpdateStatusWithAutoLog(
	ctx context.Context,
	orderID string,
	newStatus string,
	reason string,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":      "ExecutionOrderRepository",
		"op":        "UpdateStatusWithAutoLog",
		"order_id":  orderID,
		"newStatus": newStatus,
		"reason":    reason,
	}).Info("Updating execution order status with automatic log")

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.ExecutionOrder

		if err := tx.Where("order_id = ?", orderID).First(&order).Error; err != nil {
			logger.WithError(err).Error("Failed to load execution order inside transaction")
			return err
		}
		if order.CurrentStatus == newStatus {
			return nil
		}

		if err := tx.
			Model(&model.ExecutionOrder{}).
			Where("id = ?", order.ID).
			Updates(map[string]interface{}{
				"current_status": newStatus,
				"updated_at":     time.Now(),
			}).Error; err != nil {
			logger.WithError(err).Error("Failed to update execution order status inside transaction")
			return err
		}

		logEntry := &model.ExecutionOrderLog{
			ExecutionOrderID: order.ID,
			OrderID:          order.OrderID,
			Symbol:           order.Symbol,
			Side:             order.Side,
			Status:           newStatus,
			Reason:           reason,
			CreatedAt:        time.Now(),
		}
		if err := tx.Create(logEntry).Error; err != nil {
			logger.WithError(err).Error("Failed to create execution order log on status update")
			return err
		}

		return nil
	})
}

// SetSignalID backfills the signal reference of an order.
func (r *ExecutionOrderRepository) SetSignalID(
	ctx context.Context,
	orderID string,
	signalID uint,
) error {

	err := r.db.WithContext(ctx).
		Model(&model.ExecutionOrder{}).
		Where("order_id = ?", orderID).
		Update("signal_id", signalID).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":      "ExecutionOrderRepository",
			"op":        "SetSignalID",
			"order_id":  orderID,
			"signal_id": signalID,
		}).WithError(err).Error("Failed to backfill signal id")
	}
	return err
}

// FindUnsettled returns orders created since the given time whose status is
// not one of the settled statuses, oldest first.
func (r *ExecutionOrderRepository) FindUnsettled(
	ctx context.Context,
	since time.Time,
	settled []string,
	limit int,
) ([]model.ExecutionOrder, error) {

	if limit <= 0 {
		limit = 200
	}

	var orders []model.ExecutionOrder

	query := r.db.WithContext(ctx).Where("created_at >= ?", since)
	if len(settled) > 0 {
		query = query.Where("current_status NOT IN ?", settled)
	}

	err := query.Order("id ASC").Limit(limit).Find(&orders).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "ExecutionOrderRepository",
			"op":    "FindUnsettled",
			"since": since,
		}).WithError(err).Error("Failed to fetch unsettled execution orders")

		return nil, err
	}

	return orders, nil
}

// ExecutionOrderSearchOptions filters Search. Nil fields are ignored.
type ExecutionOrderSearchOptions struct {
	StrategyID    *uint
	Symbol        *string
	Status        *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// Search lists execution orders newest first.
func (r *ExecutionOrderRepository) Search(
	ctx context.Context,
	opts ExecutionOrderSearchOptions,
) ([]model.ExecutionOrder, error) {

	query := r.db.WithContext(ctx).Model(&model.ExecutionOrder{})

	if opts.StrategyID != nil {
		query = query.Where("strategy_id = ?", *opts.StrategyID)
	}
	if opts.Symbol != nil {
		query = query.Where("symbol = ?", *opts.Symbol)
	}
	if opts.Status != nil {
		query = query.Where("current_status = ?", *opts.Status)
	}
	if opts.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *opts.CreatedAfter)
	}
	if opts.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *opts.CreatedBefore)
	}

	query = query.Order("created_at DESC, id DESC")
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}

	var orders []model.ExecutionOrder
	if err := query.Find(&orders).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "ExecutionOrderRepository",
			"op":   "Search",
		}).WithError(err).Error("Failed to search execution orders")

		return nil, err
	}

	return orders, nil
}

// FindLogs returns the status history of an order, oldest first.
func (r *ExecutionOrderRepository) FindLogs(
	ctx context.Context,
	orderID string,
) ([]model.ExecutionOrderLog, error) {

	var logs []model.ExecutionOrderLog

	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&logs).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "ExecutionOrderRepository",
			"op":       "FindLogs",
			"order_id": orderID,
		}).WithError(err).Error("Failed to fetch execution order logs")

		return nil, err
	}

	return logs, nil
}
