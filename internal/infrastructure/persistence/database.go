package persistence

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/debtsettle/backend/internal/infrastructure/config"
	"github.com/debtsettle/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database wraps the GORM handle shared by the settlement repositories
type Database struct {
	DB  *gorm.DB
	sql *sql.DB
}

// NewDatabase opens the PostgreSQL pool described by cfg and verifies it
// answers a ping. SQL is logged through zapLogger at cfg.LogLevel.
func NewDatabase(cfg *config.DatabaseConfig, zapLogger *zap.Logger) (*Database, error) {
	gormLog := gormlogger.Default.LogMode(gormlogger.Silent)
	if zapLogger != nil {
		gormLog = logger.NewSQLLogger(zapLogger, logger.SQLLogConfig{
			Level:         logger.ParseSQLLevel(cfg.LogLevel),
			SlowThreshold: cfg.SlowThreshold,
		})
	}

	// Version checks and multi-row writes run in explicit transactions,
	// so GORM's implicit per-statement transaction is skipped.
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                 gormLog,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	d, err := wrapDatabase(db)
	if err != nil {
		return nil, err
	}
	d.sql.SetMaxOpenConns(cfg.MaxOpenConns)
	d.sql.SetMaxIdleConns(cfg.MaxIdleConns)
	d.sql.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	d.sql.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := d.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return d, nil
}

func wrapDatabase(db *gorm.DB) (*Database, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	return &Database{DB: db, sql: sqlDB}, nil
}

// Close releases the connection pool
func (d *Database) Close() error {
	return d.sql.Close()
}

// Ping checks the database is reachable; used by the health endpoint
func (d *Database) Ping() error {
	return d.sql.Ping()
}

// SQLDB exposes the pool for migrations
func (d *Database) SQLDB() *sql.DB {
	return d.sql
}

// ConnectionStats is a snapshot of the pool, logged at shutdown
type ConnectionStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
}

// Stats returns the current pool statistics
func (d *Database) Stats() ConnectionStats {
	s := d.sql.Stats()
	return ConnectionStats{
		MaxOpenConnections: s.MaxOpenConnections,
		OpenConnections:    s.OpenConnections,
		InUse:              s.InUse,
		Idle:               s.Idle,
		WaitCount:          s.WaitCount,
		WaitDuration:       s.WaitDuration,
	}
}
