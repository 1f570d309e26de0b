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
	"fmt"
	"runtime/debug"
)

// Severity classifies the impact of a processing error, ordered from least to
// most severe. Only SeverityCritical flips a run's overall success flag.
type Severity int

const (
	// SeverityInfo is an informational message, not an error.
	SeverityInfo Severity = iota
	// SeverityWarning is a condition worth surfacing; processing continues.
	SeverityWarning
	// SeverityError skips the offending item; processing continues.
	SeverityError
	// SeverityCritical fails the whole run and aborts the active unit.
	SeverityCritical
)

// String returns the serialized form of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Category classifies the origin of a processing error.
type Category string

const (
	CategoryValidation  Category = "validation"
	CategoryDataFormat  Category = "data_format"
	CategoryMissingData Category = "missing_data"
	CategoryDuplicate   Category = "duplicate"
	CategoryTypeError   Category = "type_error"
	CategoryPermission  Category = "permission"
	CategoryDatabase    Category = "database"
	CategorySystem      Category = "system"
	CategoryUnknown     Category = "unknown"
)

// ProcessingError describes one failure observed while processing data.
// It is immutable once constructed; build it with NewError or FromError.
type ProcessingError struct {
	Message   string
	Category  Category
	Severity  Severity
	RowIndex  *int
	FieldName string
	Err       error
	Trace     string
	Context   map[string]any
}

// ErrorOption customizes a ProcessingError during construction.
type ErrorOption func(*ProcessingError)

// WithRowIndex attaches the zero-based row index the error occurred at.
func WithRowIndex(row int) ErrorOption {
	return func(e *ProcessingError) {
		r := row
		e.RowIndex = &r
	}
}

// WithFieldName attaches the name of the offending field.
func WithFieldName(name string) ErrorOption {
	return func(e *ProcessingError) {
		e.FieldName = name
	}
}

// WithContext attaches a free-form context map to the error.
func WithContext(ctx map[string]any) ErrorOption {
	return func(e *ProcessingError) {
		e.Context = ctx
	}
}

// NewError constructs a ProcessingError with the given message, category and
// severity.
func NewError(message string, category Category, severity Severity, opts ...ErrorOption) *ProcessingError {
	e := &ProcessingError{
		Message:  message,
		Category: category,
		Severity: severity,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	return e
}

// FromError wraps an arbitrary failure into a ProcessingError, capturing a
// stack trace at the point of wrapping.
func FromError(cause error, category Category, severity Severity, opts ...ErrorOption) *ProcessingError {
	e := NewError(fmt.Sprintf("%v", cause), category, severity, opts...)
	e.Err = cause
	e.Trace = string(debug.Stack())
	return e
}

// Error implements the error interface.
func (e *ProcessingError) Error() string {
	if e.RowIndex != nil && e.FieldName != "" {
		return fmt.Sprintf("[%s/%s] row %d field %q: %s", e.Category, e.Severity, *e.RowIndex, e.FieldName, e.Message)
	}
	if e.RowIndex != nil {
		return fmt.Sprintf("[%s/%s] row %d: %s", e.Category, e.Severity, *e.RowIndex, e.Message)
	}
	if e.FieldName != "" {
		return fmt.Sprintf("[%s/%s] field %q: %s", e.Category, e.Severity, e.FieldName, e.Message)
	}
	return fmt.Sprintf("[%s/%s] %s", e.Category, e.Severity, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// ToMap returns a JSON-serializable projection of the error.
func (e *ProcessingError) ToMap() map[string]any {
	var row any
	if e.RowIndex != nil {
		row = *e.RowIndex
	}
	return map[string]any{
		"message":    e.Message,
		"category":   string(e.Category),
		"severity":   e.Severity.String(),
		"row_index":  row,
		"field_name": e.FieldName,
		"trace":      e.Trace,
		"context":    e.Context,
	}
}
