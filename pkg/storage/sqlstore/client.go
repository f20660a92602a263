package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"cryptoetl/config"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("sqlstore: store is closed")

// Store persists canonical batches into the current-state and history tables.
type Store struct {
	DB *gorm.DB

	driver string
	logger *zap.Logger

	writeMu   sync.Mutex // one load transaction at a time per process
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New wraps an already opened gorm handle.
func New(db *gorm.DB, driver string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{DB: db, driver: driver, logger: logger}
}

// Open connects to the configured backend. For postgres it optionally creates the database first.
func Open(cfg config.StoreConfig, env string, logger *zap.Logger) (*Store, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case config.DriverPostgres:
		if cfg.CreateDatabase {
			if err := CreateDatabase(cfg.Postgres, env); err != nil {
				return nil, fmt.Errorf("failed to create database: %w", err)
			}
		}
		dialector = postgres.Open(cfg.Postgres.DSN(env))
	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		dialector = sqlite.Open(sqliteDSN(cfg.SQLitePath))
	default:
		return nil, fmt.Errorf("unsupported driver: %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Error),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	if cfg.Driver == config.DriverSQLite {
		// sqlite allows a single writer; one connection avoids SQLITE_BUSY between pool members
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
	}

	logger.Info("store connected", zap.String("driver", cfg.Driver))
	return New(db, cfg.Driver, logger), nil
}

func sqliteDSN(path string) string {
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// IsHealthy pings the underlying connection pool.
func (s *Store) IsHealthy(ctx context.Context) bool {
	if s.closed.Load() {
		return false
	}
	db, err := s.DB.DB()
	if err != nil {
		return false
	}
	return db.PingContext(ctx) == nil
}

// Close releases the connection pool. Calling it again returns the first result.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		db, err := s.DB.DB()
		if err != nil {
			s.closeErr = fmt.Errorf("failed to retrieve raw DB: %w", err)
			return
		}
		s.closeErr = db.Close()
	})
	return s.closeErr
}
