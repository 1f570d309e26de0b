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
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessingResult_SeverityRouting(t *testing.T) {
	result := NewResult()
	require.True(t, result.Success())

	result.AddError(NewError("bad value", CategoryValidation, SeverityError))
	result.AddError(NewError("odd value", CategoryValidation, SeverityWarning))
	result.AddError(NewError("fyi", CategoryValidation, SeverityInfo))

	assert.Len(t, result.Errors(), 1)
	assert.Len(t, result.Warnings(), 1)
	assert.True(t, result.Success(), "plain errors must not fail the run")
	assert.False(t, result.HasCriticalErrors())

	result.AddError(NewError("broken", CategoryDatabase, SeverityCritical))
	assert.Len(t, result.Errors(), 2)
	assert.False(t, result.Success())
	assert.True(t, result.HasCriticalErrors())
}

func TestProcessingResult_Counters(t *testing.T) {
	result := NewResult()
	for i := 0; i < 5; i++ {
		result.AddProcessed()
	}
	result.AddSuccess()
	result.AddSuccess()
	result.AddSuccess()
	result.AddSkipped()
	result.AddSkipped()

	assert.Equal(t, 5, result.ProcessedCount())
	assert.Equal(t, 3, result.SuccessCount())
	assert.Equal(t, 2, result.SkippedCount())
	assert.Equal(t, result.ProcessedCount(), result.SuccessCount()+result.SkippedCount())
}

func TestProcessingResult_Merge(t *testing.T) {
	a := NewResult()
	a.AddProcessed()
	a.AddSuccess()
	a.AddCreated("one")

	b := NewResult()
	b.AddProcessed()
	b.AddSkipped()
	b.AddError(NewError("boom", CategorySystem, SeverityCritical))
	b.AddUpdated("two")

	a.Merge(b)

	assert.Equal(t, 2, a.ProcessedCount())
	assert.Equal(t, 1, a.SuccessCount())
	assert.Equal(t, 1, a.SkippedCount())
	assert.Len(t, a.Errors(), 1)
	assert.Equal(t, []any{"one"}, a.CreatedObjects())
	assert.Equal(t, []any{"two"}, a.UpdatedObjects())
	assert.False(t, a.Success(), "merge must carry failure over")
}

func TestProcessingResult_MergeConcurrent(t *testing.T) {
	result := NewResult()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unit := NewResult()
			for j := 0; j < 10; j++ {
				unit.AddProcessed()
				unit.AddSuccess()
			}
			result.Merge(unit)
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, result.ProcessedCount())
	assert.Equal(t, 200, result.SuccessCount())
}

func TestProcessingResult_RollbackSignal(t *testing.T) {
	result := NewResult()
	assert.False(t, result.RollbackSignaled())
	result.SignalRollback()
	assert.True(t, result.RollbackSignaled())
}

func TestProcessingResult_ToMap(t *testing.T) {
	result := NewResult()
	result.AddProcessed()
	result.AddSuccess()
	result.AddCreated("obj")
	result.AddError(NewError("oops", CategoryValidation, SeverityWarning))

	m := result.ToMap()
	assert.Equal(t, true, m["success"])
	assert.Equal(t, 1, m["processed_count"])
	assert.Equal(t, 0, m["skipped_count"])
	assert.Equal(t, 1, m["success_count"])
	assert.Equal(t, 1, m["created_count"])
	assert.Equal(t, 0, m["updated_count"])
	warnings, ok := m["warnings"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, warnings, 1)
	assert.Equal(t, "oops", warnings[0]["message"])
}

func TestProcessingError_WrapAndUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	pe := FromError(cause, CategorySystem, SeverityCritical, WithRowIndex(41), WithFieldName("payload"))

	assert.ErrorIs(t, pe, cause)
	assert.Contains(t, pe.Error(), "disk full")
	assert.NotEmpty(t, pe.Trace)

	m := pe.ToMap()
	assert.Equal(t, string(CategorySystem), m["category"])
	assert.Equal(t, "critical", m["severity"])
	assert.Equal(t, 41, m["row_index"])
	assert.Equal(t, "payload", m["field_name"])
}

func TestSeverity_Ordering(t *testing.T) {
	assert.True(t, SeverityInfo < SeverityWarning)
	assert.True(t, SeverityWarning < SeverityError)
	assert.True(t, SeverityError < SeverityCritical)
	assert.Equal(t, "warning", SeverityWarning.String())
}
