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

package validate

import (
	"context"
	"fmt"
	"math"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/crmforge/dataproc/storage"
)

// Field carries the settings shared by every field validator. The zero value
// validates an optional, unnamed field.
//
// A nil or empty-string value short-circuits: it fails when Required is set
// and passes untouched otherwise, without running the concrete checks.
type Field struct {
	FieldName    string
	Required     bool
	ErrorMessage string // overrides the required / uniqueness message
}

// check applies the required/empty gate. The second return value reports
// whether the concrete validation should run.
func (f *Field) check(value any) (*Result, bool) {
	result := NewResult()
	if isEmpty(value) {
		if f.Required {
			msg := f.ErrorMessage
			if msg == "" {
				msg = fmt.Sprintf("field '%s' is required", f.FieldName)
			}
			result.AddError(msg, f.FieldName)
		}
		return result, false
	}
	return result, true
}

func (f *Field) label(fallback string) string {
	if f.FieldName != "" {
		return f.FieldName
	}
	return fallback
}

func isEmpty(value any) bool {
	return value == nil || value == ""
}

func asString(value any) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// Format checks a value against a regular expression.
type Format struct {
	Field
	Pattern      *regexp.Regexp
	MatchMessage string // overrides the mismatch message
}

func (v *Format) Validate(value any) *Result {
	result, ok := v.check(value)
	if !ok {
		return result
	}
	if !v.Pattern.MatchString(asString(value)) {
		msg := v.MatchMessage
		if msg == "" {
			msg = fmt.Sprintf("%s does not match the required format", v.label("value"))
		}
		result.AddError(msg, v.FieldName)
	}
	return result
}

// Numeric checks that a value parses as a number and sits inside the
// configured bounds. String input accepts a comma as the decimal separator.
type Numeric struct {
	Field
	Min          *float64
	Max          *float64
	IntegerOnly  bool
	PositiveOnly bool
	NegativeOnly bool
}

func (v *Numeric) Validate(value any) *Result {
	result, ok := v.check(value)
	if !ok {
		return result
	}
	label := v.label("value")

	s := strings.ReplaceAll(strings.TrimSpace(asString(value)), ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		result.AddError(fmt.Sprintf("%s must be a number", label), v.FieldName)
		return result
	}
	if v.IntegerOnly && f != math.Trunc(f) {
		result.AddError(fmt.Sprintf("%s must be an integer", label), v.FieldName)
		return result
	}

	if v.PositiveOnly && f <= 0 {
		result.AddError(fmt.Sprintf("%s must be a positive number", label), v.FieldName)
	}
	if v.NegativeOnly && f >= 0 {
		result.AddError(fmt.Sprintf("%s must be a negative number", label), v.FieldName)
	}
	if v.Min != nil && f < *v.Min {
		result.AddError(fmt.Sprintf("%s must be at least %v", label, *v.Min), v.FieldName)
	}
	if v.Max != nil && f > *v.Max {
		result.AddError(fmt.Sprintf("%s must be at most %v", label, *v.Max), v.FieldName)
	}
	return result
}

// String checks length, substring and choice constraints. Leading and
// trailing whitespace is trimmed before the checks unless NoStrip is set.
type String struct {
	Field
	MinLength   *int
	MaxLength   *int
	Contains    []string
	NotContains []string
	Choices     []string
	NoStrip     bool
}

func (v *String) Validate(value any) *Result {
	result, ok := v.check(value)
	if !ok {
		return result
	}
	label := v.label("value")

	s := asString(value)
	if !v.NoStrip {
		s = strings.TrimSpace(s)
	}
	length := len([]rune(s))

	if v.MinLength != nil && length < *v.MinLength {
		result.AddError(fmt.Sprintf("%s must be at least %d characters long", label, *v.MinLength), v.FieldName)
	}
	if v.MaxLength != nil && length > *v.MaxLength {
		result.AddError(fmt.Sprintf("%s must be at most %d characters long", label, *v.MaxLength), v.FieldName)
	}
	for _, sub := range v.Contains {
		if !strings.Contains(s, sub) {
			result.AddError(fmt.Sprintf("%s must contain '%s'", label, sub), v.FieldName)
		}
	}
	for _, sub := range v.NotContains {
		if strings.Contains(s, sub) {
			result.AddError(fmt.Sprintf("%s must not contain '%s'", label, sub), v.FieldName)
		}
	}
	if v.Choices != nil && !contains(v.Choices, s) {
		quoted := make([]string, len(v.Choices))
		for i, c := range v.Choices {
			quoted[i] = "'" + c + "'"
		}
		result.AddError(fmt.Sprintf("%s must be one of: %s", label, strings.Join(quoted, ", ")), v.FieldName)
	}
	return result
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// DefaultDateFormat is the layout Date parses with when none is configured.
const DefaultDateFormat = "2006-01-02"

// Date checks that a value parses as a date in the configured layout and
// lies between the optional bounds. time.Time values pass through unparsed.
type Date struct {
	Field
	Format string
	Min    *time.Time
	Max    *time.Time
}

func (v *Date) layout() string {
	if v.Format != "" {
		return v.Format
	}
	return DefaultDateFormat
}

func (v *Date) Validate(value any) *Result {
	result, ok := v.check(value)
	if !ok {
		return result
	}
	label := v.label("value")

	var t time.Time
	if tv, ok := value.(time.Time); ok {
		t = tv
	} else {
		var err error
		t, err = time.Parse(v.layout(), strings.TrimSpace(asString(value)))
		if err != nil {
			result.AddError(fmt.Sprintf("%s must be a date in format %s", label, v.layout()), v.FieldName)
			return result
		}
	}

	if v.Min != nil && t.Before(*v.Min) {
		result.AddError(fmt.Sprintf("%s must not be before %s", label, v.Min.Format(v.layout())), v.FieldName)
	}
	if v.Max != nil && t.After(*v.Max) {
		result.AddError(fmt.Sprintf("%s must not be after %s", label, v.Max.Format(v.layout())), v.FieldName)
	}
	return result
}

// Email checks address syntax and optionally restricts the domain. The
// address must stand alone, display names are rejected.
type Email struct {
	Field
	AllowedDomains []string
}

func (v *Email) Validate(value any) *Result {
	result, ok := v.check(value)
	if !ok {
		return result
	}
	label := v.label("email")

	s := strings.TrimSpace(asString(value))
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		result.AddError(fmt.Sprintf("%s must be a valid email address", label), v.FieldName)
		return result
	}

	if len(v.AllowedDomains) > 0 {
		domain := strings.ToLower(s[strings.LastIndex(s, "@")+1:])
		allowed := false
		for _, d := range v.AllowedDomains {
			if strings.ToLower(d) == domain {
				allowed = true
				break
			}
		}
		if !allowed {
			result.AddError(fmt.Sprintf("%s must belong to one of the domains: %s",
				label, strings.Join(v.AllowedDomains, ", ")), v.FieldName)
		}
	}
	return result
}

var (
	defaultPhonePattern = regexp.MustCompile(`^\+?7[0-9]{10}$`)
	nonPhoneChars       = regexp.MustCompile(`[^0-9+]`)
)

// Phone checks a phone number against a pattern, by default the eleven-digit
// national format with country prefix 7 and an optional leading plus. Spaces,
// parentheses and dashes are stripped before matching unless NoNormalize is
// set.
type Phone struct {
	Field
	Pattern     *regexp.Regexp
	NoNormalize bool
}

func (v *Phone) Validate(value any) *Result {
	result, ok := v.check(value)
	if !ok {
		return result
	}

	s := strings.TrimSpace(asString(value))
	if !v.NoNormalize {
		s = nonPhoneChars.ReplaceAllString(s, "")
	}
	pattern := v.Pattern
	if pattern == nil {
		pattern = defaultPhonePattern
	}
	if !pattern.MatchString(s) {
		result.AddError(fmt.Sprintf("%s must be a valid phone number", v.label("phone")), v.FieldName)
	}
	return result
}

// Required checks only that a value is present.
type Required struct {
	Field
}

func (v *Required) Validate(value any) *Result {
	result := NewResult()
	if isEmpty(value) {
		msg := v.ErrorMessage
		if msg == "" {
			msg = fmt.Sprintf("field '%s' is required", v.FieldName)
		}
		result.AddError(msg, v.FieldName)
	}
	return result
}

// Unique checks that a value does not already exist in a backing store. An
// empty value passes; pair with Required when presence is also mandatory.
type Unique struct {
	Field
	Checker         storage.ExistsChecker
	CaseInsensitive bool
	ExcludeID       any             // existing record to ignore, for updates
	Context         context.Context // defaults to context.Background
}

func (v *Unique) Validate(value any) *Result {
	result, ok := v.check(value)
	if !ok {
		return result
	}

	ctx := v.Context
	if ctx == nil {
		ctx = context.Background()
	}
	exists, err := v.Checker.Exists(ctx, v.FieldName, value, v.CaseInsensitive, v.ExcludeID)
	if err != nil {
		result.AddError(fmt.Sprintf("uniqueness check for %s failed: %v", v.label("value"), err), v.FieldName)
		return result
	}
	if exists {
		msg := v.ErrorMessage
		if msg == "" {
			msg = fmt.Sprintf("%s '%v' already exists", v.label("value"), value)
		}
		result.AddError(msg, v.FieldName)
	}
	return result
}
