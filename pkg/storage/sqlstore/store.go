package sqlstore

import (
	"context"
	"fmt"

	"cryptoetl/config"
	"cryptoetl/internal/crypto/market"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// loadLockKey identifies the postgres advisory lock held by a load transaction.
const loadLockKey = 73102024

const (
	upsertBatchSize  = 100
	historyBatchSize = 500
)

// EnsureSchema creates the current-state and history tables when absent. Safe to call on every run.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := s.DB.WithContext(ctx).AutoMigrate(&CryptocurrencyRecord{}, &PriceHistoryRecord{}); err != nil {
		return fmt.Errorf("auto-migrate tables: %w", err)
	}
	return nil
}

// Load writes the batch into both tables inside one transaction.
// Either both the upsert and the history append commit or neither does.
func (s *Store) Load(ctx context.Context, batch market.Batch) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if batch.Len() == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockWriters(tx); err != nil {
			return err
		}
		if err := upsertCurrent(tx, batch); err != nil {
			return err
		}
		return appendHistory(tx, batch)
	})
	if err != nil {
		s.logger.Error("load transaction rolled back",
			zap.Int("records", batch.Len()),
			zap.Time("captured_at", batch.CapturedAt),
			zap.String("sqlstate", SQLState(err)),
			zap.Error(err),
		)
		return err
	}

	s.logger.Debug("load transaction committed",
		zap.Int("records", batch.Len()),
		zap.Time("captured_at", batch.CapturedAt),
	)
	return nil
}

// UpsertCurrent inserts or replaces the current-state row of every asset in the batch.
// Rows of assets absent from the batch are left untouched.
func (s *Store) UpsertCurrent(ctx context.Context, batch market.Batch) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if batch.Len() == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsertCurrent(tx, batch)
	})
}

// AppendHistory appends one history row per record in the batch.
func (s *Store) AppendHistory(ctx context.Context, batch market.Batch) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if batch.Len() == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return appendHistory(tx, batch)
	})
}

// lockWriters serializes load transactions across processes sharing a postgres database.
// sqlite already allows a single writer.
func (s *Store) lockWriters(tx *gorm.DB) error {
	if s.driver != config.DriverPostgres {
		return nil
	}
	if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", loadLockKey).Error; err != nil {
		return fmt.Errorf("acquire load lock: %w", err)
	}
	return nil
}

func upsertCurrent(tx *gorm.DB, batch market.Batch) error {
	rows := latestByID(batch.Records)

	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).CreateInBatches(rows, upsertBatchSize).Error
	if err != nil {
		return fmt.Errorf("upsert current state: %w", err)
	}
	return nil
}

func appendHistory(tx *gorm.DB, batch market.Batch) error {
	rows := make([]PriceHistoryRecord, 0, batch.Len())
	for _, r := range batch.Records {
		rows = append(rows, ToHistoryRecord(r, batch.CapturedAt))
	}

	if err := tx.CreateInBatches(rows, historyBatchSize).Error; err != nil {
		return fmt.Errorf("append price history: %w", err)
	}
	return nil
}

// latestByID keeps the last occurrence of every id, since one INSERT ... ON CONFLICT
// statement cannot touch the same row twice.
func latestByID(records []market.CanonicalRecord) []CryptocurrencyRecord {
	last := make(map[int64]int, len(records))
	for i, r := range records {
		last[r.ID] = i
	}

	rows := make([]CryptocurrencyRecord, 0, len(last))
	for i, r := range records {
		if last[r.ID] == i {
			rows = append(rows, ToCurrentRecord(r))
		}
	}
	return rows
}
