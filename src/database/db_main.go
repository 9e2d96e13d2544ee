package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tradeexecutor/src/database/migrations"
	"tradeexecutor/src/externalmodel"
	"tradeexecutor/src/model"
)

// MainDB is the read/write connection used by the repositories.
var MainDB *gorm.DB

// Models lists every table this service writes. The schema is owned
// elsewhere; AutoMigrate only runs when AUTO_MIGRATE is set.
func Models() []interface{} {
	return []interface{}{
		&model.ExecutionOrder{},
		&model.ExecutionOrderLog{},
		&model.AutoTrade{},
		&model.StrategyInstance{},
		&model.Exception{},
		&externalmodel.StrategySignal{},
	}
}

// InitMainDB opens the main connection. Call once at startup.
func InitMainDB() error {
	config := GetConfig()
	db, err := gorm.Open(postgres.Open(config.DatabaseURLMain),
		&gorm.Config{
			TranslateError: true,
			Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
		},
	)
	if err != nil {
		return fmt.Errorf("connect main database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB from MainDB: %w", err)
	}
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("ping main database: %w", err)
	}

	MainDB = db
	logrus.Info("[database] MainDB connection established")

	if !config.AutoMigrate {
		return nil
	}
	return Migrate(MainDB)
}

// Migrate creates missing tables and runs pending data migrations.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(append(Models(), &migrations.DataMigration{})...); err != nil {
		return fmt.Errorf("failed to run migrations on MainDB: %w", err)
	}
	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("failed to run data migrations on MainDB: %w", err)
	}

	logrus.Info("[database] MainDB migrations completed")
	return nil
}
