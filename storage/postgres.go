//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2026 The dataproc authors
//
// This file is part of dataproc.
//
// dataproc is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// dataproc is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with dataproc. If not, see https://www.gnu.org/licenses/.

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// PostgresError wraps PostgreSQL adapter failures with the operation that
// produced them.
type PostgresError struct {
	Op  string // The operation being performed (e.g., "connect", "insert_batch")
	Err error  // The underlying error
}

// Error returns the error string for PostgresError.
func (e *PostgresError) Error() string {
	return fmt.Sprintf("postgres store %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for PostgresError.
func (e *PostgresError) Unwrap() error {
	return e.Err
}

// PostgresOptions configures a PostgresStore.
type PostgresOptions struct {
	DSN             string        // PostgreSQL connection string
	Table           string        // Target table name
	KeyColumn       string        // Identity column for updates and exclude-ID lookups
	QueryTimeout    time.Duration // Timeout for individual statements
	ConnMaxLifetime time.Duration // Max connection lifetime
	ConnMaxIdleTime time.Duration // Max idle connection time
	MaxOpenConns    int           // Max open connections
	MaxIdleConns    int           // Max idle connections
}

// PostgresOption represents a configuration function for PostgresOptions.
type PostgresOption func(*PostgresOptions)

// WithPostgresDSN sets the connection string.
func WithPostgresDSN(dsn string) PostgresOption {
	return func(o *PostgresOptions) { o.DSN = dsn }
}

// WithPostgresTable sets the target table.
func WithPostgresTable(table string) PostgresOption {
	return func(o *PostgresOptions) { o.Table = table }
}

// WithPostgresKeyColumn sets the identity column used by UpdateBatch and the
// exclude-ID clause of Exists. Defaults to "id".
func WithPostgresKeyColumn(col string) PostgresOption {
	return func(o *PostgresOptions) { o.KeyColumn = col }
}

// WithPostgresQueryTimeout sets the per-statement timeout.
func WithPostgresQueryTimeout(d time.Duration) PostgresOption {
	return func(o *PostgresOptions) { o.QueryTimeout = d }
}

// WithPostgresPool sets connection pool limits.
func WithPostgresPool(maxOpen, maxIdle int) PostgresOption {
	return func(o *PostgresOptions) {
		o.MaxOpenConns = maxOpen
		o.MaxIdleConns = maxIdle
	}
}

// PostgresStore adapts a PostgreSQL table to the Transactional and
// ExistsChecker contracts. Pair it with a PostgresWriter for bulk writes.
type PostgresStore struct {
	db   *sql.DB
	opts PostgresOptions
}

// NewPostgresStore opens a connection pool and verifies connectivity.
func NewPostgresStore(ctx context.Context, options ...PostgresOption) (*PostgresStore, error) {
	opts := PostgresOptions{
		KeyColumn:       "id",
		QueryTimeout:    30 * time.Second,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: time.Minute,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
	}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.DSN == "" {
		return nil, &PostgresError{Op: "configure", Err: fmt.Errorf("DSN is required")}
	}
	if opts.Table == "" {
		return nil, &PostgresError{Op: "configure", Err: fmt.Errorf("table name is required")}
	}

	db, err := sql.Open("postgres", opts.DSN)
	if err != nil {
		return nil, &PostgresError{Op: "connect", Err: err}
	}
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)

	pingCtx, cancel := context.WithTimeout(ctx, opts.QueryTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, &PostgresError{Op: "connect", Err: err}
	}
	return &PostgresStore{db: db, opts: opts}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type sqlTx struct {
	tx *sql.Tx
}

func (t sqlTx) Commit() error   { return t.tx.Commit() }
func (t sqlTx) Rollback() error { return t.tx.Rollback() }

// Begin implements Transactional.
func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &PostgresError{Op: "begin", Err: err}
	}
	return sqlTx{tx: tx}, nil
}

// Exists implements ExistsChecker against the configured table.
func (s *PostgresStore) Exists(ctx context.Context, field string, value any, caseInsensitive bool, excludeID any) (bool, error) {
	queryCtx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	col := pq.QuoteIdentifier(field)
	var where string
	if caseInsensitive {
		where = fmt.Sprintf("lower(%s::text) = lower($1::text)", col)
	} else {
		where = fmt.Sprintf("%s = $1", col)
	}
	args := []any{value}
	if excludeID != nil {
		where += fmt.Sprintf(" AND %s <> $2", pq.QuoteIdentifier(s.opts.KeyColumn))
		args = append(args, excludeID)
	}
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s)", pq.QuoteIdentifier(s.opts.Table), where)

	var exists bool
	if err := s.db.QueryRowContext(queryCtx, query, args...).Scan(&exists); err != nil {
		return false, &PostgresError{Op: "exists", Err: err}
	}
	return exists, nil
}

// RowMapper projects an object onto column name/value pairs for persistence.
type RowMapper[T any] func(*T) map[string]any

// PostgresWriter is a BulkWriter that persists objects to a PostgresStore's
// table using multi-row INSERTs and transactional per-row UPDATEs.
type PostgresWriter[T any] struct {
	store   *PostgresStore
	columns []string
	mapRow  RowMapper[T]
}

// NewPostgresWriter constructs a PostgresWriter writing the given columns.
// mapRow must produce a value for every listed column.
func NewPostgresWriter[T any](store *PostgresStore, columns []string, mapRow RowMapper[T]) (*PostgresWriter[T], error) {
	if len(columns) == 0 {
		return nil, &PostgresError{Op: "configure", Err: fmt.Errorf("columns are required")}
	}
	if mapRow == nil {
		return nil, &PostgresError{Op: "configure", Err: fmt.Errorf("row mapper is required")}
	}
	return &PostgresWriter[T]{store: store, columns: columns, mapRow: mapRow}, nil
}

// InsertBatch implements BulkWriter with a single multi-row INSERT.
func (w *PostgresWriter[T]) InsertBatch(ctx context.Context, batch []*T) error {
	if len(batch) == 0 {
		return nil
	}
	queryCtx, cancel := context.WithTimeout(ctx, w.store.opts.QueryTimeout)
	defer cancel()

	quoted := make([]string, len(w.columns))
	for i, c := range w.columns {
		quoted[i] = pq.QuoteIdentifier(c)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ",
		pq.QuoteIdentifier(w.store.opts.Table), strings.Join(quoted, ", "))

	args := make([]any, 0, len(batch)*len(w.columns))
	for i, obj := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		row := w.mapRow(obj)
		sb.WriteByte('(')
		for j, col := range w.columns {
			if j > 0 {
				sb.WriteString(", ")
			}
			args = append(args, row[col])
			fmt.Fprintf(&sb, "$%d", len(args))
		}
		sb.WriteByte(')')
	}

	if _, err := w.store.db.ExecContext(queryCtx, sb.String(), args...); err != nil {
		return &PostgresError{Op: "insert_batch", Err: err}
	}
	return nil
}

// UpdateBatch implements BulkWriter: every object in the batch is updated in
// one transaction, writing only the named fields.
func (w *PostgresWriter[T]) UpdateBatch(ctx context.Context, batch []*T, fields []string) error {
	if len(batch) == 0 {
		return nil
	}
	if len(fields) == 0 {
		return &PostgresError{Op: "update_batch", Err: fmt.Errorf("update fields are required")}
	}
	queryCtx, cancel := context.WithTimeout(ctx, w.store.opts.QueryTimeout)
	defer cancel()

	tx, err := w.store.db.BeginTx(queryCtx, nil)
	if err != nil {
		return &PostgresError{Op: "update_batch", Err: err}
	}

	assigns := make([]string, len(fields))
	for i, f := range fields {
		assigns[i] = fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(f), i+1)
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		pq.QuoteIdentifier(w.store.opts.Table),
		strings.Join(assigns, ", "),
		pq.QuoteIdentifier(w.store.opts.KeyColumn),
		len(fields)+1)

	for _, obj := range batch {
		row := w.mapRow(obj)
		args := make([]any, 0, len(fields)+1)
		for _, f := range fields {
			args = append(args, row[f])
		}
		args = append(args, row[w.store.opts.KeyColumn])
		if _, err := tx.ExecContext(queryCtx, query, args...); err != nil {
			tx.Rollback()
			return &PostgresError{Op: "update_batch", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &PostgresError{Op: "update_batch", Err: err}
	}
	return nil
}
