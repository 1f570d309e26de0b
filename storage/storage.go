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

// Package storage defines the narrow contracts the processing engine consumes
// from a storage layer: transaction boundaries, bulk writes, and existence
// checks. Concrete adapters for PostgreSQL and MongoDB live alongside an
// in-memory implementation used in tests.
package storage

import (
	"context"
)

// Tx is one open storage transaction. A transactional unit (one chunk, or one
// transaction-sized stream buffer) maps to exactly one Tx.
type Tx interface {
	Commit() error
	Rollback() error
}

// Transactional is a storage layer that can open transactions.
type Transactional interface {
	Begin(ctx context.Context) (Tx, error)
}

// BulkWriter persists batches of materialized objects natively.
type BulkWriter[T any] interface {
	// InsertBatch inserts the batch in one native bulk operation.
	InsertBatch(ctx context.Context, batch []*T) error
	// UpdateBatch updates the named fields of every object in the batch.
	UpdateBatch(ctx context.Context, batch []*T, fields []string) error
}

// ExistsChecker answers uniqueness lookups for the Unique validator.
type ExistsChecker interface {
	// Exists reports whether a record with field == value already exists,
	// optionally comparing case-insensitively and excluding the record
	// identified by excludeID (nil to exclude nothing).
	Exists(ctx context.Context, field string, value any, caseInsensitive bool, excludeID any) (bool, error)
}
