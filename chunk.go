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
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crmforge/dataproc/storage"
)

type chunkConfig struct {
	chunkSize        int
	store            storage.Transactional
	parallel         bool
	maxWorkers       int
	handler          ErrorHandler
	showProgress     bool
	progressInterval int // percent between progress log lines
	stopOnCritical   bool
	outcome          Outcome
	logger           *zap.Logger
}

// ChunkOption configures a ChunkProcessor or BulkChunkProcessor.
type ChunkOption func(*chunkConfig)

// WithChunkSize sets the maximum number of items per chunk. Defaults to 1000.
func WithChunkSize(n int) ChunkOption {
	return func(c *chunkConfig) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithTransactions wraps every chunk in one transaction on the given store. A
// critical error inside the chunk rolls back only that chunk.
func WithTransactions(store storage.Transactional) ChunkOption {
	return func(c *chunkConfig) {
		c.store = store
	}
}

// WithParallel processes chunks on a bounded worker pool of the given size.
func WithParallel(maxWorkers int) ChunkOption {
	return func(c *chunkConfig) {
		c.parallel = true
		if maxWorkers > 0 {
			c.maxWorkers = maxWorkers
		}
	}
}

// WithErrorHandler sets the error handler for the run. Defaults to a
// DefaultErrorHandler sharing the processor's logger.
func WithErrorHandler(h ErrorHandler) ChunkOption {
	return func(c *chunkConfig) {
		c.handler = h
	}
}

// WithProgress enables progress logging every intervalPercent percent of
// completed chunks.
func WithProgress(intervalPercent int) ChunkOption {
	return func(c *chunkConfig) {
		c.showProgress = true
		if intervalPercent > 0 {
			c.progressInterval = intervalPercent
		}
	}
}

// WithStopOnCritical controls the scope of a critical error. When false (the
// default) a critical failure aborts only its own chunk and the run continues
// with the next one; when true the run stops handing out new chunks after the
// failed unit.
func WithStopOnCritical(stop bool) ChunkOption {
	return func(c *chunkConfig) {
		c.stopOnCritical = stop
	}
}

// WithOutcome selects which object list successful results are recorded into.
// Defaults to OutcomeCreated.
func WithOutcome(o Outcome) ChunkOption {
	return func(c *chunkConfig) {
		c.outcome = o
	}
}

// WithRunLogger sets the logger used for progress and lifecycle messages.
func WithRunLogger(l *zap.Logger) ChunkOption {
	return func(c *chunkConfig) {
		c.logger = l
	}
}

func newChunkConfig(opts []ChunkOption) chunkConfig {
	cfg := chunkConfig{
		chunkSize:        1000,
		maxWorkers:       4,
		progressInterval: 10,
		outcome:          OutcomeCreated,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.handler == nil {
		cfg.handler = NewDefaultErrorHandler(WithLogger(cfg.logger))
	}
	return cfg
}

// ChunkProcessor splits a data source into fixed-size, order-preserving
// chunks and processes them sequentially or on a bounded worker pool, with an
// optional transaction per chunk.
type ChunkProcessor[T, R any] struct {
	cfg chunkConfig
}

// NewChunkProcessor constructs a ChunkProcessor from the given options.
func NewChunkProcessor[T, R any](opts ...ChunkOption) *ChunkProcessor[T, R] {
	return &ChunkProcessor[T, R]{cfg: newChunkConfig(opts)}
}

// Process is a convenience wrapper around NewChunkProcessor + ProcessSlice.
func Process[T, R any](ctx context.Context, items []T, fn ProcessorFunc[T, R], opts ...ChunkOption) *ProcessingResult {
	return NewChunkProcessor[T, R](opts...).ProcessSlice(ctx, items, fn)
}

type chunkSlice[T any] struct {
	items []T
	base  int // index of the first item within the source
}

// ProcessSlice processes an index-addressable source. Chunks are formed by
// offset slicing without copying the input.
func (p *ChunkProcessor[T, R]) ProcessSlice(ctx context.Context, items []T, fn ProcessorFunc[T, R]) *ProcessingResult {
	chunks := make([]chunkSlice[T], 0, (len(items)+p.cfg.chunkSize-1)/p.cfg.chunkSize)
	for off := 0; off < len(items); off += p.cfg.chunkSize {
		end := off + p.cfg.chunkSize
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, chunkSlice[T]{items: items[off:end], base: off})
	}
	return p.run(ctx, chunks, fn)
}

// ProcessIterator processes a sequential source by accumulating items into
// chunks until each is full. The whole source is drained before processing
// starts; for unbounded sources use StreamProcessor instead.
func (p *ChunkProcessor[T, R]) ProcessIterator(ctx context.Context, src Iterator[T], fn ProcessorFunc[T, R]) *ProcessingResult {
	var chunks []chunkSlice[T]
	var readErr error
	buf := make([]T, 0, p.cfg.chunkSize)
	base := 0
	for {
		item, err := src.Next(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}
		buf = append(buf, item)
		if len(buf) >= p.cfg.chunkSize {
			chunks = append(chunks, chunkSlice[T]{items: buf, base: base})
			base += len(buf)
			buf = make([]T, 0, p.cfg.chunkSize)
		}
	}
	if len(buf) > 0 {
		chunks = append(chunks, chunkSlice[T]{items: buf, base: base})
	}

	result := p.run(ctx, chunks, fn)
	if readErr != nil {
		p.cfg.handler.HandleFailure(readErr, CategorySystem, SeverityCritical, nil, "", nil, result)
		result.SetSuccess(false)
	}
	return result
}

func (p *ChunkProcessor[T, R]) run(ctx context.Context, chunks []chunkSlice[T], fn ProcessorFunc[T, R]) *ProcessingResult {
	result := NewResult()
	runID := uuid.NewString()
	result.SetRunID(runID)
	logger := p.cfg.logger.With(zap.String("run_id", runID))
	progress := &chunkProgress{
		logger:   logger,
		enabled:  p.cfg.showProgress,
		interval: p.cfg.progressInterval,
		total:    len(chunks),
		start:    time.Now(),
	}

	if p.cfg.parallel {
		p.runParallel(ctx, chunks, fn, result, progress)
	} else {
		p.runSequential(ctx, chunks, fn, result, progress)
	}

	if p.cfg.showProgress {
		logger.Info("processing finished",
			zap.Int("processed", result.ProcessedCount()),
			zap.Int("succeeded", result.SuccessCount()),
			zap.Int("skipped", result.SkippedCount()),
			zap.Duration("elapsed", time.Since(progress.start)))
	}
	result.SetSuccess(!result.HasCriticalErrors())
	return result
}

func (p *ChunkProcessor[T, R]) runSequential(ctx context.Context, chunks []chunkSlice[T], fn ProcessorFunc[T, R], result *ProcessingResult, progress *chunkProgress) {
	for idx, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			p.cfg.handler.HandleFailure(err, CategorySystem, SeverityCritical, nil, "",
				map[string]any{"chunk_index": idx}, result)
			return
		}
		unit := p.processChunk(ctx, chunk, idx, fn)
		critical := unit.HasCriticalErrors()
		result.Merge(unit)
		progress.chunkDone(result)
		if critical && p.cfg.stopOnCritical {
			return
		}
	}
}

func (p *ChunkProcessor[T, R]) runParallel(ctx context.Context, chunks []chunkSlice[T], fn ProcessorFunc[T, R], result *ProcessingResult, progress *chunkProgress) {
	sem := make(chan struct{}, p.cfg.maxWorkers)
	var wg sync.WaitGroup
	var stopped atomic.Bool

	for idx, chunk := range chunks {
		if p.cfg.stopOnCritical && stopped.Load() {
			break
		}
		if err := ctx.Err(); err != nil {
			p.cfg.handler.HandleFailure(err, CategorySystem, SeverityCritical, nil, "",
				map[string]any{"chunk_index": idx}, result)
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, chunk chunkSlice[T]) {
			defer wg.Done()
			defer func() { <-sem }()
			unit := p.processChunk(ctx, chunk, idx, fn)
			if unit.HasCriticalErrors() {
				stopped.Store(true)
			}
			result.Merge(unit)
			progress.chunkDone(result)
		}(idx, chunk)
	}
	wg.Wait()
}

// processChunk processes one transactional unit into its own result. The unit
// result is merged into the run result by the caller; on rollback the unit's
// object references are discarded while its counters and errors are kept.
func (p *ChunkProcessor[T, R]) processChunk(ctx context.Context, chunk chunkSlice[T], chunkIndex int, fn ProcessorFunc[T, R]) *ProcessingResult {
	unit := NewResult()

	if p.cfg.store == nil {
		p.processItems(ctx, chunk, chunkIndex, fn, unit)
		return unit
	}

	tx, err := p.cfg.store.Begin(ctx)
	if err != nil {
		p.cfg.handler.HandleFailure(err, CategoryDatabase, SeverityCritical, nil, "",
			map[string]any{"chunk_index": chunkIndex}, unit)
		return unit
	}
	p.processItems(ctx, chunk, chunkIndex, fn, unit)

	if unit.HasCriticalErrors() || unit.RollbackSignaled() {
		if rbErr := tx.Rollback(); rbErr != nil {
			p.cfg.handler.HandleFailure(rbErr, CategoryDatabase, SeverityError, nil, "",
				map[string]any{"chunk_index": chunkIndex}, unit)
		}
		unit.discardObjects()
		p.cfg.logger.Warn("chunk rolled back", zap.Int("chunk_index", chunkIndex))
		return unit
	}
	if err := tx.Commit(); err != nil {
		p.cfg.handler.HandleFailure(err, CategoryDatabase, SeverityCritical, nil, "",
			map[string]any{"chunk_index": chunkIndex}, unit)
		unit.discardObjects()
	}
	return unit
}

func (p *ChunkProcessor[T, R]) processItems(ctx context.Context, chunk chunkSlice[T], chunkIndex int, fn ProcessorFunc[T, R], unit *ProcessingResult) {
	for i, item := range chunk.items {
		unit.AddProcessed()
		row := chunk.base + i
		res, err := callProcessor(ctx, fn, item, row)
		if err != nil {
			var pe *ProcessingError
			if errors.As(err, &pe) {
				p.cfg.handler.HandleError(pe, unit)
			} else {
				p.cfg.handler.HandleFailure(err, CategoryUnknown, SeverityError, &row, "",
					map[string]any{"chunk_index": chunkIndex, "item_index": i}, unit)
			}
			unit.AddSkipped()
			continue
		}
		if res == nil {
			unit.AddSkipped()
			continue
		}
		unit.AddSuccess()
		switch p.cfg.outcome {
		case OutcomeCreated:
			unit.AddCreated(res)
		case OutcomeUpdated:
			unit.AddUpdated(res)
		}
	}
}

// chunkProgress logs a line every interval percent of completed chunks.
type chunkProgress struct {
	mu       sync.Mutex
	logger   *zap.Logger
	enabled  bool
	interval int
	total    int
	done     int
	last     int
	start    time.Time
}

func (p *chunkProgress) chunkDone(result *ProcessingResult) {
	if !p.enabled || p.total == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	pct := p.done * 100 / p.total
	if pct-p.last < p.interval {
		return
	}
	p.last = pct
	p.logger.Info("progress",
		zap.Int("percent", pct),
		zap.Int("chunks_done", p.done),
		zap.Int("chunks_total", p.total),
		zap.Int("items", result.ProcessedCount()),
		zap.Duration("elapsed", time.Since(p.start)))
}
