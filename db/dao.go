// Package db provides PostgreSQL persistence for duty results through GORM.
// The single table is upserted on the (mawb, broker_id, format_id) key so a
// re-run of the same MAWB under the same broker and format overwrites the
// prior snapshot instead of accumulating rows.
//
// Connection Management:
//
//	The package maintains one process-global connection handle. Transient
//	failures ("resource temporarily unavailable", connection resets, 5xx
//	surfaced by the driver) are attempted up to three times with exponential
//	backoff, and connection-class failures re-create the handle under a
//	mutex before the next attempt.
package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fteops/dutyrecon/common"
	"github.com/fteops/dutyrecon/models"
)

// ResultDAO persists duty results.
type ResultDAO struct {
	mu   sync.Mutex
	db   *gorm.DB
	open func() (*gorm.DB, error)
	log  logrus.FieldLogger
}

// NewResultDAO connects to PostgreSQL, migrates the results table, and
// returns the DAO.
func NewResultDAO(dsn string, log logrus.FieldLogger) (*ResultDAO, error) {
	open := func() (*gorm.DB, error) {
		gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access underlying connection: %w", err)
		}
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
		return gdb, nil
	}
	return newResultDAO(open, log)
}

// NewResultDAOWithDB wraps an existing gorm handle; reopen is used to
// re-create the handle after connection errors and may be nil when
// re-creation is not possible (tests).
func NewResultDAOWithDB(gdb *gorm.DB, reopen func() (*gorm.DB, error), log logrus.FieldLogger) (*ResultDAO, error) {
	if reopen == nil {
		reopen = func() (*gorm.DB, error) { return gdb, nil }
	}
	dao := &ResultDAO{db: gdb, open: reopen, log: ensureLogger(log)}
	if err := gdb.AutoMigrate(&models.Result{}); err != nil {
		return nil, fmt.Errorf("failed to migrate results table: %w", err)
	}
	return dao, nil
}

func newResultDAO(open func() (*gorm.DB, error), log logrus.FieldLogger) (*ResultDAO, error) {
	gdb, err := open()
	if err != nil {
		return nil, err
	}
	return NewResultDAOWithDB(gdb, open, log)
}

func ensureLogger(log logrus.FieldLogger) logrus.FieldLogger {
	if log == nil {
		return logrus.StandardLogger()
	}
	return log
}

// handle returns the current connection under the mutex.
func (d *ResultDAO) handle() *gorm.DB {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.db
}

// recreate replaces the connection handle after a connection error.
func (d *ResultDAO) recreate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	gdb, err := d.open()
	if err != nil {
		d.log.WithError(err).Error("failed to re-create database connection")
		return
	}
	d.db = gdb
	d.log.Warn("database connection re-created after connection error")
}

// Upsert inserts or overwrites the result row for the record's
// (mawb, broker_id, format_id) key.
func (d *ResultDAO) Upsert(ctx context.Context, rec *models.Result) error {
	return d.withRetry(ctx, "upsert result", func() error {
		return d.handle().WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "mawb"}, {Name: "broker_id"}, {Name: "format_id"},
			},
			UpdateAll: true,
		}).Create(rec).Error
	})
}

// Get fetches the result for a processing key, or nil when absent.
func (d *ResultDAO) Get(ctx context.Context, mawb string, brokerID, formatID uuid.UUID) (*models.Result, error) {
	var rec models.Result
	err := d.withRetry(ctx, "get result", func() error {
		res := d.handle().WithContext(ctx).
			Where("mawb = ? AND broker_id = ? AND format_id = ?", mawb, brokerID.String(), formatID.String()).
			Limit(1).Find(&rec)
		return res.Error
	})
	if err != nil {
		return nil, err
	}
	if rec.ID == 0 {
		return nil, nil
	}
	return &rec, nil
}

// List returns results newest first, optionally filtered by MAWB. A limit of
// zero returns everything.
func (d *ResultDAO) List(ctx context.Context, mawb string, limit int) ([]models.Result, error) {
	var recs []models.Result
	err := d.withRetry(ctx, "list results", func() error {
		q := d.handle().WithContext(ctx).Order("updated_at DESC")
		if mawb != "" {
			q = q.Where("mawb = ?", mawb)
		}
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q.Find(&recs).Error
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (d *ResultDAO) withRetry(ctx context.Context, op string, fn func() error) error {
	return common.Retry(ctx, common.RetryConfig{
		Attempts:  3,
		BaseDelay: 500 * time.Millisecond,
		Retryable: common.IsTransientError,
		OnRetry: func(attempt int, err error) {
			d.log.WithError(err).WithFields(logrus.Fields{
				"operation": op, "attempt": attempt,
			}).Warn("retrying database operation")
			if common.IsConnectionError(err) {
				d.recreate()
			}
		},
	}, fn)
}
