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

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crmforge/dataproc/storage"
)

// BuildFunc materializes one record from a raw row. Returning a nil record
// with a nil error skips the row.
type BuildFunc[T any] func(ctx context.Context, row map[string]any) (*T, error)

// ApplyFunc mutates one record in place during a bulk update.
type ApplyFunc[T any] func(ctx context.Context, obj *T) error

// BulkChunkProcessor runs two-phase bulk writes: phase one materializes and
// validates records chunk by chunk via a ChunkProcessor, phase two hands the
// surviving records to a storage.BulkWriter in batches of the same size.
// Phase two only starts when phase one recorded no errors.
type BulkChunkProcessor[T any] struct {
	writer storage.BulkWriter[T]
	opts   []ChunkOption
	cfg    chunkConfig
}

// NewBulkChunkProcessor constructs a BulkChunkProcessor writing through the
// given writer. The options are shared with the phase-one ChunkProcessor.
func NewBulkChunkProcessor[T any](writer storage.BulkWriter[T], opts ...ChunkOption) *BulkChunkProcessor[T] {
	return &BulkChunkProcessor[T]{
		writer: writer,
		opts:   opts,
		cfg:    newChunkConfig(opts),
	}
}

// BulkCreate materializes every row with build, then inserts the surviving
// records batch by batch. The returned result describes the insert phase when
// it ran, otherwise the materialization phase.
func (p *BulkChunkProcessor[T]) BulkCreate(ctx context.Context, rows []map[string]any, build BuildFunc[T]) *ProcessingResult {
	cp := NewChunkProcessor[map[string]any, T](append(p.opts, WithOutcome(OutcomeCreated))...)
	phase := cp.ProcessSlice(ctx, rows, ProcessorFunc[map[string]any, T](build))
	if len(phase.Errors()) > 0 {
		p.cfg.logger.Warn("bulk create aborted before write phase",
			zap.Int("errors", len(phase.Errors())))
		return phase
	}

	objs := toRecords[T](phase.CreatedObjects())
	return p.write(ctx, objs, func(ctx context.Context, batch []*T) error {
		return p.writer.InsertBatch(ctx, batch)
	}, OutcomeCreated)
}

// BulkUpdate applies apply to every record, then persists the named fields
// batch by batch. An empty field list is rejected up front with a critical
// validation error.
func (p *BulkChunkProcessor[T]) BulkUpdate(ctx context.Context, items []*T, apply ApplyFunc[T], fields []string) *ProcessingResult {
	result := NewResult()
	if len(fields) == 0 {
		p.cfg.handler.HandleError(
			NewError("bulk update requires at least one field to persist", CategoryValidation, SeverityCritical),
			result)
		result.SetSuccess(false)
		return result
	}

	cp := NewChunkProcessor[*T, T](append(p.opts, WithOutcome(OutcomeUpdated))...)
	phase := cp.ProcessSlice(ctx, items, func(ctx context.Context, obj *T) (*T, error) {
		if err := apply(ctx, obj); err != nil {
			return nil, err
		}
		return obj, nil
	})
	if len(phase.Errors()) > 0 {
		p.cfg.logger.Warn("bulk update aborted before write phase",
			zap.Int("errors", len(phase.Errors())))
		return phase
	}

	objs := toRecords[T](phase.UpdatedObjects())
	return p.write(ctx, objs, func(ctx context.Context, batch []*T) error {
		return p.writer.UpdateBatch(ctx, batch, fields)
	}, OutcomeUpdated)
}

func (p *BulkChunkProcessor[T]) write(ctx context.Context, objs []*T, flush func(context.Context, []*T) error, outcome Outcome) *ProcessingResult {
	result := NewResult()
	result.SetRunID(uuid.NewString())
	for off := 0; off < len(objs); off += p.cfg.chunkSize {
		end := off + p.cfg.chunkSize
		if end > len(objs) {
			end = len(objs)
		}
		batch := objs[off:end]
		for range batch {
			result.AddProcessed()
		}

		if err := ctx.Err(); err == nil {
			err = flush(ctx, batch)
			if err == nil {
				for _, obj := range batch {
					result.AddSuccess()
					if outcome == OutcomeCreated {
						result.AddCreated(obj)
					} else {
						result.AddUpdated(obj)
					}
				}
				continue
			}
			p.cfg.handler.HandleFailure(err, CategoryDatabase, SeverityCritical, nil, "",
				map[string]any{"batch_offset": off, "batch_size": len(batch)}, result)
		} else {
			p.cfg.handler.HandleFailure(err, CategorySystem, SeverityCritical, nil, "",
				map[string]any{"batch_offset": off}, result)
		}
		for range batch {
			result.AddSkipped()
		}
		break
	}
	result.SetSuccess(!result.HasCriticalErrors())
	return result
}

func toRecords[T any](objs []any) []*T {
	out := make([]*T, 0, len(objs))
	for _, o := range objs {
		if rec, ok := o.(*T); ok {
			out = append(out, rec)
		}
	}
	return out
}
