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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmforge/dataproc/storage"
)

type contact struct {
	Name  string
	Email string
}

func buildContact(ctx context.Context, row map[string]any) (*contact, error) {
	name, _ := row["name"].(string)
	email, _ := row["email"].(string)
	if name == "" {
		return nil, NewError("name is required", CategoryMissingData, SeverityError, WithFieldName("name"))
	}
	return &contact{Name: name, Email: email}, nil
}

func contactRows(n int) []map[string]any {
	rows := make([]map[string]any, n)
	for i := range rows {
		rows[i] = map[string]any{
			"name":  fmt.Sprintf("contact-%d", i),
			"email": fmt.Sprintf("c%d@example.com", i),
		}
	}
	return rows
}

func TestBulkChunkProcessor_BulkCreate(t *testing.T) {
	store := storage.NewMemoryStore[contact]()
	p := NewBulkChunkProcessor[contact](store, WithChunkSize(4))

	result := p.BulkCreate(context.Background(), contactRows(10), buildContact)

	assert.True(t, result.Success())
	assert.Equal(t, 10, result.ProcessedCount())
	assert.Equal(t, 10, result.SuccessCount())
	assert.Len(t, result.CreatedObjects(), 10)
	assert.Len(t, store.Rows(), 10)
}

func TestBulkChunkProcessor_BulkCreateStopsOnMaterializationErrors(t *testing.T) {
	store := storage.NewMemoryStore[contact]()
	p := NewBulkChunkProcessor[contact](store, WithChunkSize(4))

	rows := contactRows(5)
	rows[2]["name"] = ""

	result := p.BulkCreate(context.Background(), rows, buildContact)

	// The write phase must not run when materialization reported anything.
	assert.Empty(t, store.Rows())
	assert.Equal(t, 5, result.ProcessedCount())
	assert.Equal(t, 4, result.SuccessCount())
	assert.Equal(t, 1, result.SkippedCount())
	require.Len(t, result.Errors(), 1)
	assert.Equal(t, "name", result.Errors()[0].FieldName)
}

func TestBulkChunkProcessor_BulkCreateWriteFailure(t *testing.T) {
	writer := &failingWriter{failAt: 1}
	p := NewBulkChunkProcessor[contact](writer, WithChunkSize(3))

	result := p.BulkCreate(context.Background(), contactRows(9), buildContact)

	assert.False(t, result.Success())
	assert.True(t, result.HasCriticalErrors())
	// First batch lands, second fails; the run stops there.
	assert.Equal(t, 6, result.ProcessedCount())
	assert.Equal(t, 3, result.SuccessCount())
	assert.Equal(t, 3, result.SkippedCount())
	assert.Equal(t, result.ProcessedCount(), result.SuccessCount()+result.SkippedCount())
}

func TestBulkChunkProcessor_BulkUpdate(t *testing.T) {
	store := storage.NewMemoryStore[contact]()
	p := NewBulkChunkProcessor[contact](store, WithChunkSize(3))

	items := make([]*contact, 7)
	for i := range items {
		items[i] = &contact{Name: fmt.Sprintf("contact-%d", i)}
	}
	apply := func(ctx context.Context, c *contact) error {
		c.Email = c.Name + "@example.com"
		return nil
	}

	result := p.BulkUpdate(context.Background(), items, apply, []string{"email"})

	assert.True(t, result.Success())
	assert.Equal(t, 7, result.ProcessedCount())
	assert.Equal(t, 7, result.SuccessCount())
	assert.Len(t, result.UpdatedObjects(), 7)
	assert.Equal(t, 7, store.UpdatedCount())
	for _, c := range items {
		assert.Equal(t, c.Name+"@example.com", c.Email)
	}
}

func TestBulkChunkProcessor_BulkUpdateRequiresFields(t *testing.T) {
	store := storage.NewMemoryStore[contact]()
	p := NewBulkChunkProcessor[contact](store)

	result := p.BulkUpdate(context.Background(), []*contact{{Name: "a"}}, func(ctx context.Context, c *contact) error {
		return nil
	}, nil)

	assert.False(t, result.Success())
	require.Len(t, result.Errors(), 1)
	assert.Equal(t, CategoryValidation, result.Errors()[0].Category)
	assert.Equal(t, SeverityCritical, result.Errors()[0].Severity)
	assert.Equal(t, 0, store.UpdatedCount())
}

// failingWriter fails every batch from failAt onward.
type failingWriter struct {
	calls  int
	failAt int
}

func (w *failingWriter) InsertBatch(ctx context.Context, batch []*contact) error {
	defer func() { w.calls++ }()
	if w.calls >= w.failAt {
		return fmt.Errorf("insert rejected")
	}
	return nil
}

func (w *failingWriter) UpdateBatch(ctx context.Context, batch []*contact, fields []string) error {
	defer func() { w.calls++ }()
	if w.calls >= w.failAt {
		return fmt.Errorf("update rejected")
	}
	return nil
}
