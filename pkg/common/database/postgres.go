package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adpulse-ai/platform/pkg/common/config"
	"github.com/adpulse-ai/platform/pkg/common/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const pingTimeout = 5 * time.Second

// Conn owns a gorm handle and can replace it when the server drops the
// underlying connections. Report jobs sit idle for long stretches between
// polls, so callers ask for Ready before opening a transaction.
type Conn struct {
	mu  sync.Mutex
	dsn string
	db  *gorm.DB
}

// Handle hands out the current gorm handle. Repositories resolve it on every
// operation so a pool replaced by Ready reaches them. *Conn implements it.
type Handle interface {
	DB() *gorm.DB
}

func DSN(cfg *config.Config) string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.PostgresHost,
		cfg.PostgresUser,
		cfg.PostgresPassword,
		cfg.PostgresDB,
		cfg.PostgresPort,
		cfg.PostgresSSLMode,
	)
}

func GetPostgres(cfg *config.Config) (*Conn, error) {
	return Open(DSN(cfg))
}

func Open(dsn string) (*Conn, error) {
	db, err := openGorm(dsn)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to connect to PostgreSQL")
		return nil, err
	}
	logger.Log.Info("Connected to PostgreSQL")
	return &Conn{dsn: dsn, db: db}, nil
}

func openGorm(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// DB returns the current handle without checking it.
func (c *Conn) DB() *gorm.DB {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db
}

// Ready pings the database and reopens the pool once if the ping fails.
func (c *Conn) Ready(ctx context.Context) (*gorm.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pingErr := ping(ctx, c.db)
	if pingErr == nil {
		return c.db, nil
	}
	logger.Log.WithError(pingErr).Warn("postgres ping failed, reconnecting")

	db, err := openGorm(c.dsn)
	if err != nil {
		return nil, fmt.Errorf("reconnecting to postgres: %w", err)
	}
	if err := ping(ctx, db); err != nil {
		closeGorm(db)
		return nil, fmt.Errorf("postgres unavailable after reconnect: %w", err)
	}

	closeGorm(c.db)
	c.db = db
	logger.Log.Info("Reconnected to PostgreSQL")
	return c.db, nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ping(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("no database handle")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return sqlDB.PingContext(pingCtx)
}

func closeGorm(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
