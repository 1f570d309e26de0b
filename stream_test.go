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

package dataproc

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmforge/dataproc/storage"
)

func intRange(n int) []int {
	items := make([]int, n)
	for i := range items {
		items[i] = i
	}
	return items
}

func TestStreamProcessor_Basic(t *testing.T) {
	p := NewStreamProcessor[int, int](WithBufferSize(8))

	var outputs []int
	out := func(r *int) error {
		outputs = append(outputs, *r)
		return nil
	}

	result := p.ProcessStream(context.Background(), NewSliceIterator(intRange(50)), doubler, out, 50)

	assert.True(t, result.Success())
	assert.Equal(t, 50, result.ProcessedCount())
	assert.Equal(t, 50, result.SuccessCount())
	assert.Len(t, outputs, result.SuccessCount(), "output handler runs once per produced result")
	for i, v := range outputs {
		assert.Equal(t, i*2, v, "single worker preserves order")
	}
}

func TestStreamProcessor_SkipsAndErrors(t *testing.T) {
	fn := func(ctx context.Context, n int) (*int, error) {
		switch {
		case n%10 == 3:
			return nil, nil
		case n%10 == 7:
			return nil, fmt.Errorf("bad item %d", n)
		default:
			return &n, nil
		}
	}

	p := NewStreamProcessor[int, int]()
	var outputs int
	result := p.ProcessStream(context.Background(), NewSliceIterator(intRange(40)), fn, func(*int) error {
		outputs++
		return nil
	}, 0)

	assert.True(t, result.Success())
	assert.Equal(t, 40, result.ProcessedCount())
	assert.Equal(t, 32, result.SuccessCount())
	assert.Equal(t, 8, result.SkippedCount())
	assert.Len(t, result.Errors(), 4)
	assert.Equal(t, 32, outputs)
}

func TestStreamProcessor_Parallel(t *testing.T) {
	p := NewStreamProcessor[int, int](WithStreamParallel(4), WithBufferSize(16))

	var outputs []int
	result := p.ProcessStream(context.Background(), NewSliceIterator(intRange(200)), doubler, func(r *int) error {
		outputs = append(outputs, *r)
		return nil
	}, 200)

	assert.True(t, result.Success())
	assert.Equal(t, 200, result.ProcessedCount())
	assert.Equal(t, 200, result.SuccessCount())
	require.Len(t, outputs, 200)
	sort.Ints(outputs)
	for i, v := range outputs {
		assert.Equal(t, i*2, v)
	}
}

func TestStreamProcessor_TransactionalBatches(t *testing.T) {
	store := storage.NewMemoryStore[int]()
	fn := func(ctx context.Context, n int) (*int, error) {
		if n == 7 {
			return nil, NewError("corrupt item", CategoryDataFormat, SeverityCritical)
		}
		return &n, nil
	}

	p := NewStreamProcessor[int, int](
		WithStreamTransactions(store),
		WithTransactionSize(5),
		WithStreamErrorHandler(NewTransactionalErrorHandler()),
	)
	var outputs int
	result := p.ProcessStream(context.Background(), NewSliceIterator(intRange(20)), fn, func(*int) error {
		outputs++
		return nil
	}, 20)

	assert.False(t, result.Success())
	assert.Equal(t, 20, result.ProcessedCount())
	assert.Equal(t, 19, result.SuccessCount())
	assert.Equal(t, 1, result.SkippedCount())

	// Items 5..9 share the failing unit: nothing from it reaches the output.
	assert.Equal(t, 15, outputs)

	begun, committed, rolledBack := store.TxCounts()
	assert.Equal(t, 4, begun)
	assert.Equal(t, 3, committed)
	assert.Equal(t, 1, rolledBack)
}

func TestStreamProcessor_OutputHandlerErrorsAreNonFatal(t *testing.T) {
	p := NewStreamProcessor[int, int]()

	result := p.ProcessStream(context.Background(), NewSliceIterator(intRange(5)), doubler, func(*int) error {
		return fmt.Errorf("downstream full")
	}, 0)

	assert.True(t, result.Success())
	assert.Equal(t, 5, result.SuccessCount())
	assert.Len(t, result.Errors(), 5)
}

func TestStreamProcessor_StopOnCritical(t *testing.T) {
	fn := func(ctx context.Context, n int) (*int, error) {
		if n == 0 {
			return nil, NewError("fatal", CategorySystem, SeverityCritical)
		}
		return &n, nil
	}

	p := NewStreamProcessor[int, int](WithBufferSize(1), WithStreamStopOnCritical(true))
	result := p.ProcessStream(context.Background(), NewSliceIterator(intRange(10000)), fn, nil, 0)

	assert.False(t, result.Success())
	assert.Less(t, result.ProcessedCount(), 10000, "producer must stop after the critical unit")
}

func TestStreamProcessor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewStreamProcessor[int, int]()
	result := p.ProcessStream(ctx, NewSliceIterator(intRange(100)), doubler, nil, 0)

	assert.False(t, result.Success())
	assert.Equal(t, 0, result.ProcessedCount())
	require.NotEmpty(t, result.Errors())
	assert.Equal(t, CategorySystem, result.Errors()[0].Category)
}

func TestStreamProcessor_SourceFailure(t *testing.T) {
	src := &failingIterator{failAfter: 10}
	p := NewStreamProcessor[int, int]()

	result := p.ProcessStream(context.Background(), src, doubler, nil, 0)

	assert.False(t, result.Success())
	assert.Equal(t, 10, result.ProcessedCount(), "items before the failure still process")
	require.NotEmpty(t, result.Errors())
	assert.Equal(t, SeverityCritical, result.Errors()[0].Severity)
}

// failingIterator yields increasing ints and then fails.
type failingIterator struct {
	n         int
	failAfter int
}

func (it *failingIterator) Next(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if it.n >= it.failAfter {
		return 0, fmt.Errorf("source gone")
	}
	v := it.n
	it.n++
	return v, nil
}

func TestStreamProcessor_PanicBecomesCriticalError(t *testing.T) {
	fn := func(ctx context.Context, n int) (*int, error) {
		if n == 13 {
			panic("corrupt row")
		}
		return &n, nil
	}

	p := NewStreamProcessor[int, int](WithStreamParallel(4))
	var outputs int
	result := p.ProcessStream(context.Background(), NewSliceIterator(intRange(30)), fn, func(*int) error {
		outputs++
		return nil
	}, 0)

	assert.False(t, result.Success())
	assert.Equal(t, 30, result.ProcessedCount())
	assert.Equal(t, 29, result.SuccessCount())
	assert.Equal(t, 1, result.SkippedCount())
	assert.Equal(t, 29, outputs)

	require.Len(t, result.Errors(), 1)
	pe := result.Errors()[0]
	assert.Equal(t, CategorySystem, pe.Category)
	assert.Equal(t, SeverityCritical, pe.Severity)
	require.NotNil(t, pe.RowIndex)
	assert.Equal(t, 13, *pe.RowIndex)
}
