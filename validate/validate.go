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

// Package validate provides composable field validators whose findings fold
// into processing results.
package validate

import (
	"fmt"
	"strings"

	"github.com/crmforge/dataproc"
)

// Validator checks a single value and reports everything it finds. Validators
// never stop at the first problem within their own checks.
type Validator interface {
	Validate(value any) *Result
}

// Error is one validation finding.
type Error struct {
	Message   string
	FieldName string
	RowIndex  *int
	ColIndex  *int
	Code      string
	Severity  dataproc.Severity
}

func (e *Error) String() string {
	var parts []string
	if e.FieldName != "" {
		parts = append(parts, fmt.Sprintf("field '%s'", e.FieldName))
	}
	if e.RowIndex != nil {
		if e.ColIndex != nil {
			parts = append(parts, fmt.Sprintf("row %d, column %d", *e.RowIndex+1, *e.ColIndex+1))
		} else {
			parts = append(parts, fmt.Sprintf("row %d", *e.RowIndex+1))
		}
	}
	parts = append(parts, e.Message)
	return strings.Join(parts, ": ")
}

func (e *Error) ToMap() map[string]any {
	m := map[string]any{
		"message":  e.Message,
		"severity": e.Severity.String(),
	}
	if e.FieldName != "" {
		m["field_name"] = e.FieldName
	}
	if e.RowIndex != nil {
		m["row_index"] = *e.RowIndex
	}
	if e.ColIndex != nil {
		m["col_index"] = *e.ColIndex
	}
	if e.Code != "" {
		m["code"] = e.Code
	}
	return m
}

// ToProcessingError lifts the finding into the processing error model under
// the validation category.
func (e *Error) ToProcessingError() *dataproc.ProcessingError {
	opts := []dataproc.ErrorOption{}
	if e.RowIndex != nil {
		opts = append(opts, dataproc.WithRowIndex(*e.RowIndex))
	}
	if e.FieldName != "" {
		opts = append(opts, dataproc.WithFieldName(e.FieldName))
	}
	ctx := map[string]any{}
	if e.ColIndex != nil {
		ctx["col_index"] = *e.ColIndex
	}
	if e.Code != "" {
		ctx["code"] = e.Code
	}
	if len(ctx) > 0 {
		opts = append(opts, dataproc.WithContext(ctx))
	}
	return dataproc.NewError(e.Message, dataproc.CategoryValidation, e.Severity, opts...)
}

// Result collects the findings of one validation pass, split by severity.
type Result struct {
	errors   []*Error
	warnings []*Error
	infos    []*Error
}

func NewResult() *Result {
	return &Result{}
}

func (r *Result) AddError(message, fieldName string) {
	r.errors = append(r.errors, &Error{Message: message, FieldName: fieldName, Severity: dataproc.SeverityError})
}

func (r *Result) AddWarning(message, fieldName string) {
	r.warnings = append(r.warnings, &Error{Message: message, FieldName: fieldName, Severity: dataproc.SeverityWarning})
}

func (r *Result) AddInfo(message, fieldName string) {
	r.infos = append(r.infos, &Error{Message: message, FieldName: fieldName, Severity: dataproc.SeverityInfo})
}

// Add routes a prepared finding by its severity. Critical findings land with
// the errors.
func (r *Result) Add(e *Error) {
	switch e.Severity {
	case dataproc.SeverityWarning:
		r.warnings = append(r.warnings, e)
	case dataproc.SeverityInfo:
		r.infos = append(r.infos, e)
	default:
		r.errors = append(r.errors, e)
	}
}

func (r *Result) Merge(other *Result) {
	r.errors = append(r.errors, other.errors...)
	r.warnings = append(r.warnings, other.warnings...)
	r.infos = append(r.infos, other.infos...)
}

// IsValid reports whether the pass produced no errors. Warnings and infos do
// not affect validity.
func (r *Result) IsValid() bool {
	return len(r.errors) == 0
}

func (r *Result) HasWarnings() bool {
	return len(r.warnings) > 0
}

func (r *Result) HasInfos() bool {
	return len(r.infos) > 0
}

func (r *Result) Errors() []*Error {
	return r.errors
}

func (r *Result) Warnings() []*Error {
	return r.warnings
}

func (r *Result) Infos() []*Error {
	return r.infos
}

func (r *Result) ToMap() map[string]any {
	toMaps := func(errs []*Error) []map[string]any {
		out := make([]map[string]any, 0, len(errs))
		for _, e := range errs {
			out = append(out, e.ToMap())
		}
		return out
	}
	return map[string]any{
		"is_valid": r.IsValid(),
		"errors":   toMaps(r.errors),
		"warnings": toMaps(r.warnings),
		"infos":    toMaps(r.infos),
	}
}

// ToProcessingResult folds the findings into a ProcessingResult. The result
// is successful exactly when the pass was valid.
func (r *Result) ToProcessingResult() *dataproc.ProcessingResult {
	result := dataproc.NewResult()
	for _, e := range r.errors {
		result.AddError(e.ToProcessingError())
	}
	for _, w := range r.warnings {
		result.AddError(w.ToProcessingError())
	}
	result.SetSuccess(r.IsValid())
	return result
}

// Run validates value and returns the findings as a ProcessingResult.
func Run(v Validator, value any) *dataproc.ProcessingResult {
	return v.Validate(value).ToProcessingResult()
}

// Composite chains validators and concatenates their findings in order.
type Composite struct {
	validators []Validator
}

func NewComposite(validators ...Validator) *Composite {
	return &Composite{validators: validators}
}

func (c *Composite) Validate(value any) *Result {
	result := NewResult()
	for _, v := range c.validators {
		result.Merge(v.Validate(value))
	}
	return result
}

func (c *Composite) Add(v Validator) {
	c.validators = append(c.validators, v)
}

// Ptr returns a pointer to v, for the optional bound fields on validators.
func Ptr[T any](v T) *T {
	return &v
}
