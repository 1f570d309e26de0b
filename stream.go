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
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crmforge/dataproc/storage"
)

type streamConfig struct {
	bufferSize     int
	store          storage.Transactional
	txSize         int
	parallel       bool
	maxWorkers     int
	handler        ErrorHandler
	showProgress   bool
	progressEvery  time.Duration
	stopOnCritical bool
	logger         *zap.Logger
}

// StreamOption configures a StreamProcessor or FileStreamProcessor.
type StreamOption func(*streamConfig)

// WithBufferSize sets the capacity of the input and output queues. Producers
// and workers block when their queue is full. Defaults to 100.
func WithBufferSize(n int) StreamOption {
	return func(c *streamConfig) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// WithStreamTransactions makes each worker commit its items in transactional
// batches on the given store.
func WithStreamTransactions(store storage.Transactional) StreamOption {
	return func(c *streamConfig) {
		c.store = store
	}
}

// WithTransactionSize sets how many items each worker buffers into one
// transaction. Defaults to 100 when a store is configured.
func WithTransactionSize(n int) StreamOption {
	return func(c *streamConfig) {
		if n > 0 {
			c.txSize = n
		}
	}
}

// WithStreamParallel runs the given number of workers instead of one.
func WithStreamParallel(maxWorkers int) StreamOption {
	return func(c *streamConfig) {
		c.parallel = true
		if maxWorkers > 0 {
			c.maxWorkers = maxWorkers
		}
	}
}

// WithStreamErrorHandler sets the error handler for the run.
func WithStreamErrorHandler(h ErrorHandler) StreamOption {
	return func(c *streamConfig) {
		c.handler = h
	}
}

// WithStreamProgress enables periodic progress logging at the given interval.
func WithStreamProgress(every time.Duration) StreamOption {
	return func(c *streamConfig) {
		c.showProgress = true
		if every > 0 {
			c.progressEvery = every
		}
	}
}

// WithStreamStopOnCritical stops the producer after the first critical error
// instead of letting the rest of the stream through.
func WithStreamStopOnCritical(stop bool) StreamOption {
	return func(c *streamConfig) {
		c.stopOnCritical = stop
	}
}

// WithStreamLogger sets the logger used for progress and lifecycle messages.
func WithStreamLogger(l *zap.Logger) StreamOption {
	return func(c *streamConfig) {
		c.logger = l
	}
}

func newStreamConfig(opts []StreamOption) streamConfig {
	cfg := streamConfig{
		bufferSize:    100,
		maxWorkers:    4,
		progressEvery: 5 * time.Second,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.store != nil && cfg.txSize <= 0 {
		cfg.txSize = 100
	}
	if cfg.handler == nil {
		cfg.handler = NewDefaultErrorHandler(WithLogger(cfg.logger))
	}
	return cfg
}

// StreamProcessor processes an unbounded source through a producer, a worker
// pool and a consumer connected by two bounded queues. Items never accumulate
// beyond the queue capacities, so memory stays flat regardless of source
// size.
type StreamProcessor[T, R any] struct {
	cfg streamConfig
}

// NewStreamProcessor constructs a StreamProcessor from the given options.
func NewStreamProcessor[T, R any](opts ...StreamOption) *StreamProcessor[T, R] {
	return &StreamProcessor[T, R]{cfg: newStreamConfig(opts)}
}

type streamItem[T any] struct {
	item  T
	index int
}

type streamStop struct {
	once sync.Once
	ch   chan struct{}
}

func newStreamStop() *streamStop {
	return &streamStop{ch: make(chan struct{})}
}

func (s *streamStop) signal() {
	s.once.Do(func() { close(s.ch) })
}

func (s *streamStop) stopped() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// ProcessStream drains src through fn and hands every produced result to out.
// Pass the source size as totalCount when known so progress can report
// percent and ETA; pass 0 otherwise. All pipeline goroutines are joined
// before the call returns, including after cancellation.
func (p *StreamProcessor[T, R]) ProcessStream(ctx context.Context, src Iterator[T], fn ProcessorFunc[T, R], out OutputHandler[R], totalCount int) *ProcessingResult {
	result := NewResult()
	runID := uuid.NewString()
	result.SetRunID(runID)
	logger := p.cfg.logger.With(zap.String("run_id", runID))
	stop := newStreamStop()
	in := make(chan streamItem[T], p.cfg.bufferSize)
	outCh := make(chan *R, p.cfg.bufferSize)

	if p.cfg.showProgress {
		reporter := startProgressReporter(logger, result, totalCount, p.cfg.progressEvery)
		defer reporter.stop()
	}

	workers := 1
	if p.cfg.parallel {
		workers = p.cfg.maxWorkers
	}
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			p.work(ctx, in, outCh, fn, result, stop)
		}()
	}
	go p.produce(ctx, src, in, result, stop)
	go func() {
		wg.Wait()
		close(outCh)
	}()

	// Consuming on the caller goroutine doubles as the join point: the
	// output queue only closes once the producer and every worker are done.
	for res := range outCh {
		if out == nil {
			continue
		}
		if err := out(res); err != nil {
			p.cfg.handler.HandleFailure(err, CategorySystem, SeverityError, nil, "", nil, result)
		}
	}

	result.SetSuccess(!result.HasCriticalErrors())
	return result
}

func (p *StreamProcessor[T, R]) produce(ctx context.Context, src Iterator[T], in chan<- streamItem[T], result *ProcessingResult, stop *streamStop) {
	defer close(in)
	for i := 0; ; i++ {
		if stop.stopped() {
			return
		}
		item, err := src.Next(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.cfg.handler.HandleFailure(err, CategorySystem, SeverityCritical, nil, "",
					map[string]any{"item_index": i}, result)
			}
			return
		}
		select {
		case in <- streamItem[T]{item: item, index: i}:
		case <-ctx.Done():
			p.cfg.handler.HandleFailure(ctx.Err(), CategorySystem, SeverityCritical, nil, "",
				map[string]any{"item_index": i}, result)
			return
		case <-stop.ch:
			return
		}
	}
}

func (p *StreamProcessor[T, R]) work(ctx context.Context, in <-chan streamItem[T], out chan<- *R, fn ProcessorFunc[T, R], result *ProcessingResult, stop *streamStop) {
	useTx := p.cfg.store != nil
	batchSize := 1
	if useTx {
		batchSize = p.cfg.txSize
	}
	batch := make([]streamItem[T], 0, batchSize)
	for it := range in {
		batch = append(batch, it)
		if len(batch) >= batchSize {
			p.flush(ctx, batch, fn, result, out, useTx, stop)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		p.flush(ctx, batch, fn, result, out, useTx, stop)
	}
}

// flush processes one batch as an isolated unit. When transactions are on,
// results are only forwarded downstream after the commit; on rollback the
// unit keeps its counters and errors but emits nothing.
func (p *StreamProcessor[T, R]) flush(ctx context.Context, batch []streamItem[T], fn ProcessorFunc[T, R], result *ProcessingResult, out chan<- *R, useTx bool, stop *streamStop) {
	unit := NewResult()
	var produced []*R

	var tx storage.Tx
	if useTx {
		var err error
		tx, err = p.cfg.store.Begin(ctx)
		if err != nil {
			p.cfg.handler.HandleFailure(err, CategoryDatabase, SeverityCritical, nil, "", nil, unit)
			p.settle(unit, result, stop)
			return
		}
	}

	for _, it := range batch {
		if res := p.processItem(ctx, it, fn, unit); res != nil {
			produced = append(produced, res)
		}
	}

	if useTx {
		if unit.HasCriticalErrors() || unit.RollbackSignaled() {
			if rbErr := tx.Rollback(); rbErr != nil {
				p.cfg.handler.HandleFailure(rbErr, CategoryDatabase, SeverityError, nil, "", nil, unit)
			}
			unit.discardObjects()
			produced = nil
		} else if err := tx.Commit(); err != nil {
			p.cfg.handler.HandleFailure(err, CategoryDatabase, SeverityCritical, nil, "", nil, unit)
			unit.discardObjects()
			produced = nil
		}
	}

	p.settle(unit, result, stop)
	for _, res := range produced {
		out <- res
	}
}

func (p *StreamProcessor[T, R]) settle(unit, result *ProcessingResult, stop *streamStop) {
	if unit.HasCriticalErrors() && p.cfg.stopOnCritical {
		stop.signal()
	}
	result.Merge(unit)
}

func (p *StreamProcessor[T, R]) processItem(ctx context.Context, it streamItem[T], fn ProcessorFunc[T, R], unit *ProcessingResult) *R {
	unit.AddProcessed()
	res, err := callProcessor(ctx, fn, it.item, it.index)
	if err != nil {
		var pe *ProcessingError
		if errors.As(err, &pe) {
			p.cfg.handler.HandleError(pe, unit)
		} else {
			row := it.index
			p.cfg.handler.HandleFailure(err, CategoryUnknown, SeverityError, &row, "", nil, unit)
		}
		unit.AddSkipped()
		return nil
	}
	if res == nil {
		unit.AddSkipped()
		return nil
	}
	unit.AddSuccess()
	return res
}
