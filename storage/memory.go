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
	"strings"
	"sync"
)

// MemoryStore is an in-memory Transactional + BulkWriter used in tests and as
// a reference implementation of the storage contracts. Its transactions only
// demarcate units of work and count begin/commit/rollback; batch writes apply
// to the store immediately and are not undone by Rollback.
type MemoryStore[T any] struct {
	mu       sync.Mutex
	rows     []*T
	updated  int
	begun    int
	commits  int
	rollback int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{}
}

type memoryTx[T any] struct {
	store *MemoryStore[T]
	done  bool
}

// Begin implements Transactional.
func (s *MemoryStore[T]) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.begun++
	s.mu.Unlock()
	return &memoryTx[T]{store: s}, nil
}

func (tx *memoryTx[T]) Commit() error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	if !tx.done {
		tx.store.commits++
		tx.done = true
	}
	return nil
}

func (tx *memoryTx[T]) Rollback() error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	if !tx.done {
		tx.store.rollback++
		tx.done = true
	}
	return nil
}

// InsertBatch implements BulkWriter.
func (s *MemoryStore[T]) InsertBatch(ctx context.Context, batch []*T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.rows = append(s.rows, batch...)
	s.mu.Unlock()
	return nil
}

// UpdateBatch implements BulkWriter. The store has no identity notion, so it
// only counts the objects updated.
func (s *MemoryStore[T]) UpdateBatch(ctx context.Context, batch []*T, fields []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.updated += len(batch)
	s.mu.Unlock()
	return nil
}

// Rows returns a copy of the committed rows.
func (s *MemoryStore[T]) Rows() []*T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*T, len(s.rows))
	copy(out, s.rows)
	return out
}

// UpdatedCount returns the number of objects passed to UpdateBatch.
func (s *MemoryStore[T]) UpdatedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updated
}

// TxCounts returns the number of transactions begun, committed and rolled
// back, in that order.
func (s *MemoryStore[T]) TxCounts() (begun, committed, rolledBack int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begun, s.commits, s.rollback
}

// MemoryChecker is an in-memory ExistsChecker keyed by field name. Values are
// compared by their string form; each value may carry an identifier used by
// the exclude-ID lookup.
type MemoryChecker struct {
	mu     sync.Mutex
	values map[string][]memoryEntry
}

type memoryEntry struct {
	value string
	id    any
}

// NewMemoryChecker returns an empty MemoryChecker.
func NewMemoryChecker() *MemoryChecker {
	return &MemoryChecker{values: make(map[string][]memoryEntry)}
}

// Put registers a value for a field with an optional record identifier.
func (c *MemoryChecker) Put(field, value string, id any) {
	c.mu.Lock()
	c.values[field] = append(c.values[field], memoryEntry{value: value, id: id})
	c.mu.Unlock()
}

// Exists implements ExistsChecker.
func (c *MemoryChecker) Exists(ctx context.Context, field string, value any, caseInsensitive bool, excludeID any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	want, _ := value.(string)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.values[field] {
		if excludeID != nil && entry.id == excludeID {
			continue
		}
		if caseInsensitive {
			if strings.EqualFold(entry.value, want) {
				return true, nil
			}
		} else if entry.value == want {
			return true, nil
		}
	}
	return false, nil
}
