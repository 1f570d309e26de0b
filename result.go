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
	"sync"
)

// ProcessingResult is the aggregate outcome of one processing run: counters,
// errors and warnings, and references to created/updated objects. All methods
// are safe for concurrent use; parallel workers append to the same result.
//
// A result is written to only by the invocation that created it and should be
// treated as read-only once the run returns, except for Merge, which combines
// partial results from parallel units.
type ProcessingResult struct {
	mu       sync.Mutex
	runID    string
	success  bool
	rollback bool

	processedCount int
	skippedCount   int
	successCount   int

	errors   []*ProcessingError
	warnings []*ProcessingError

	createdObjects []any
	updatedObjects []any
}

// NewResult returns an empty, successful ProcessingResult.
func NewResult() *ProcessingResult {
	return &ProcessingResult{success: true}
}

// AddError records an error, routing it by severity: ERROR and CRITICAL go to
// the error list, WARNING goes to the warning list, INFO is not recorded.
// A CRITICAL error marks the whole result as failed.
func (r *ProcessingResult) AddError(e *ProcessingError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.Severity == SeverityCritical {
		r.success = false
	}
	switch e.Severity {
	case SeverityError, SeverityCritical:
		r.errors = append(r.errors, e)
	case SeverityWarning:
		r.warnings = append(r.warnings, e)
	}
}

// AddProcessed increments the processed counter.
func (r *ProcessingResult) AddProcessed() {
	r.mu.Lock()
	r.processedCount++
	r.mu.Unlock()
}

// AddSkipped increments the skipped counter.
func (r *ProcessingResult) AddSkipped() {
	r.mu.Lock()
	r.skippedCount++
	r.mu.Unlock()
}

// AddSuccess increments the success counter.
func (r *ProcessingResult) AddSuccess() {
	r.mu.Lock()
	r.successCount++
	r.mu.Unlock()
}

// AddCreated records a reference to an object materialized during the run.
func (r *ProcessingResult) AddCreated(obj any) {
	r.mu.Lock()
	r.createdObjects = append(r.createdObjects, obj)
	r.mu.Unlock()
}

// AddUpdated records a reference to an object modified during the run.
func (r *ProcessingResult) AddUpdated(obj any) {
	r.mu.Lock()
	r.updatedObjects = append(r.updatedObjects, obj)
	r.mu.Unlock()
}

// SignalRollback marks the transactional unit owning this result for rollback.
// Used by TransactionalErrorHandler on critical errors.
func (r *ProcessingResult) SignalRollback() {
	r.mu.Lock()
	r.rollback = true
	r.mu.Unlock()
}

// RollbackSignaled reports whether a rollback was requested for this unit.
func (r *ProcessingResult) RollbackSignaled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rollback
}

// SetRunID stamps the result with the run identifier used in log lines.
func (r *ProcessingResult) SetRunID(id string) {
	r.mu.Lock()
	r.runID = id
	r.mu.Unlock()
}

// RunID returns the identifier of the run that produced this result, if any.
func (r *ProcessingResult) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID
}

// SetSuccess overrides the success flag. Processors call this at the end of a
// run so that success reflects exactly the presence of critical errors.
func (r *ProcessingResult) SetSuccess(ok bool) {
	r.mu.Lock()
	r.success = ok
	r.mu.Unlock()
}

// Success reports whether the run completed without critical errors.
func (r *ProcessingResult) Success() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.success
}

// ProcessedCount returns the number of items the run attempted.
func (r *ProcessingResult) ProcessedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processedCount
}

// SkippedCount returns the number of items skipped.
func (r *ProcessingResult) SkippedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.skippedCount
}

// SuccessCount returns the number of items processed successfully.
func (r *ProcessingResult) SuccessCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.successCount
}

// Errors returns a copy of the recorded errors.
func (r *ProcessingResult) Errors() []*ProcessingError {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*ProcessingError, len(r.errors))
	copy(out, r.errors)
	return out
}

// Warnings returns a copy of the recorded warnings.
func (r *ProcessingResult) Warnings() []*ProcessingError {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*ProcessingError, len(r.warnings))
	copy(out, r.warnings)
	return out
}

// CreatedObjects returns a copy of the created object references.
func (r *ProcessingResult) CreatedObjects() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]any, len(r.createdObjects))
	copy(out, r.createdObjects)
	return out
}

// UpdatedObjects returns a copy of the updated object references.
func (r *ProcessingResult) UpdatedObjects() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]any, len(r.updatedObjects))
	copy(out, r.updatedObjects)
	return out
}

// HasCriticalErrors reports whether any recorded error is critical.
func (r *ProcessingResult) HasCriticalErrors() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.errors {
		if e.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// discardObjects drops created/updated references. Called when the
// transactional unit owning this result is rolled back; counters and errors
// are kept.
func (r *ProcessingResult) discardObjects() {
	r.mu.Lock()
	r.createdObjects = nil
	r.updatedObjects = nil
	r.mu.Unlock()
}

// Merge folds another result into this one: counters are summed, the success
// flags are ANDed, and error/warning/object lists are concatenated. Merge is
// associative and commutative over counters and list membership, which makes
// it safe for combining partial results from parallel units in any completion
// order.
func (r *ProcessingResult) Merge(other *ProcessingResult) {
	other.mu.Lock()
	success := other.success
	processed := other.processedCount
	skipped := other.skippedCount
	succeeded := other.successCount
	errs := append([]*ProcessingError(nil), other.errors...)
	warns := append([]*ProcessingError(nil), other.warnings...)
	created := append([]any(nil), other.createdObjects...)
	updated := append([]any(nil), other.updatedObjects...)
	other.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.success = r.success && success
	r.processedCount += processed
	r.skippedCount += skipped
	r.successCount += succeeded
	r.errors = append(r.errors, errs...)
	r.warnings = append(r.warnings, warns...)
	r.createdObjects = append(r.createdObjects, created...)
	r.updatedObjects = append(r.updatedObjects, updated...)
}

// ToMap returns a JSON-serializable projection of the result for the calling
// web layer. Object references are reported as counts only.
func (r *ProcessingResult) ToMap() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	errs := make([]map[string]any, 0, len(r.errors))
	for _, e := range r.errors {
		errs = append(errs, e.ToMap())
	}
	warns := make([]map[string]any, 0, len(r.warnings))
	for _, w := range r.warnings {
		warns = append(warns, w.ToMap())
	}
	return map[string]any{
		"success":         r.success,
		"processed_count": r.processedCount,
		"skipped_count":   r.skippedCount,
		"success_count":   r.successCount,
		"errors":          errs,
		"warnings":        warns,
		"created_count":   len(r.createdObjects),
		"updated_count":   len(r.updatedObjects),
	}
}
