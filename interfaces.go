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

// Package dataproc is a generic batch/stream data-processing engine: a shared
// error taxonomy and result model, pluggable error-handling strategies, a
// chunked batch processor with optional parallelism and per-batch
// transactions, and a multi-goroutine streaming processor with bounded
// channels and backpressure.
//
// The engine is an in-process library. It does not persist in-flight state
// across restarts and it does not define a storage schema; it only consumes
// the narrow transaction and bulk-write contracts in the storage subpackage.
//
// Example:
//
//	cp := dataproc.NewChunkProcessor[int, int](
//		dataproc.WithChunkSize(500),
//		dataproc.WithParallel(4),
//	)
//	result := cp.ProcessSlice(ctx, items, func(ctx context.Context, n int) (*int, error) {
//		squared := n * n
//		return &squared, nil
//	})
//	if !result.Success() {
//		// inspect result.Errors()
//	}
package dataproc

import (
	"context"
	"fmt"
	"io"
)

// ProcessorFunc transforms one input item into a result. Returning a nil
// result with a nil error marks the item as skipped; returning an error routes
// the failure to the run's ErrorHandler.
type ProcessorFunc[T, R any] func(ctx context.Context, item T) (*R, error)

// callProcessor invokes fn on one item and converts a panic into a critical
// system ProcessingError, so a misbehaving processing function surfaces in the
// run's result instead of taking down the process.
func callProcessor[T, R any](ctx context.Context, fn ProcessorFunc[T, R], item T, row int) (res *R, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res = nil
			err = FromError(fmt.Errorf("processing function panicked: %v", rec),
				CategorySystem, SeverityCritical, WithRowIndex(row))
		}
	}()
	return fn(ctx, item)
}

// OutputHandler consumes one successful result from a streaming run. A non-nil
// error is recorded as a non-fatal processing error.
type OutputHandler[R any] func(result *R) error

// Iterator yields items from a possibly unbounded source. Next returns io.EOF
// after the last item.
type Iterator[T any] interface {
	Next(ctx context.Context) (T, error)
}

// SliceIterator adapts a slice to the Iterator interface.
type SliceIterator[T any] struct {
	items []T
	pos   int
}

// NewSliceIterator returns an Iterator over the given items.
func NewSliceIterator[T any](items []T) *SliceIterator[T] {
	return &SliceIterator[T]{items: items}
}

// Next implements Iterator.
func (it *SliceIterator[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if it.pos >= len(it.items) {
		return zero, io.EOF
	}
	item := it.items[it.pos]
	it.pos++
	return item, nil
}

// Outcome selects which object list a successful result is recorded into.
type Outcome int

const (
	// OutcomeCreated records successful results as created objects.
	OutcomeCreated Outcome = iota
	// OutcomeUpdated records successful results as updated objects.
	OutcomeUpdated
	// OutcomeNone records counters only, keeping no object references.
	OutcomeNone
)
