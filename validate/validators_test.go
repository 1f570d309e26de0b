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
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmforge/dataproc/storage"
)

func TestField_RequiredGate(t *testing.T) {
	v := &Numeric{Field: Field{FieldName: "amount", Required: true}}

	result := v.Validate(nil)
	require.Len(t, result.Errors(), 1)
	assert.Contains(t, result.Errors()[0].Message, "amount")

	result = v.Validate("")
	assert.False(t, result.IsValid())
}

func TestField_OptionalEmptyIsValid(t *testing.T) {
	v := &Numeric{Field: Field{FieldName: "amount"}, Min: Ptr(10.0)}

	assert.True(t, v.Validate(nil).IsValid())
	assert.True(t, v.Validate("").IsValid())
}

func TestNumeric_Bounds(t *testing.T) {
	v := &Numeric{Field: Field{FieldName: "score"}, Min: Ptr(0.0), Max: Ptr(100.0)}

	assert.True(t, v.Validate(50).IsValid())
	assert.True(t, v.Validate("99.5").IsValid())

	result := v.Validate(150)
	require.Len(t, result.Errors(), 1)
	assert.Equal(t, "score", result.Errors()[0].FieldName)
	assert.Contains(t, result.Errors()[0].Message, "100")

	result = v.Validate(-1)
	require.Len(t, result.Errors(), 1)
	assert.Contains(t, result.Errors()[0].Message, "at least")
}

func TestNumeric_CommaDecimal(t *testing.T) {
	v := &Numeric{Field: Field{FieldName: "price"}}
	assert.True(t, v.Validate("12,5").IsValid())
}

func TestNumeric_NotANumber(t *testing.T) {
	v := &Numeric{Field: Field{FieldName: "price"}}
	result := v.Validate("twelve")
	require.Len(t, result.Errors(), 1)
	assert.Contains(t, result.Errors()[0].Message, "must be a number")
}

func TestNumeric_IntegerOnly(t *testing.T) {
	v := &Numeric{Field: Field{FieldName: "qty"}, IntegerOnly: true}

	assert.True(t, v.Validate("4").IsValid())
	assert.True(t, v.Validate("4.0").IsValid())
	assert.False(t, v.Validate("4.5").IsValid())
}

func TestNumeric_Sign(t *testing.T) {
	pos := &Numeric{Field: Field{FieldName: "n"}, PositiveOnly: true}
	assert.True(t, pos.Validate(1).IsValid())
	assert.False(t, pos.Validate(0).IsValid())
	assert.False(t, pos.Validate(-1).IsValid())

	neg := &Numeric{Field: Field{FieldName: "n"}, NegativeOnly: true}
	assert.True(t, neg.Validate(-1).IsValid())
	assert.False(t, neg.Validate(0).IsValid())
}

func TestString_LengthAndChoices(t *testing.T) {
	v := &String{
		Field:     Field{FieldName: "status"},
		MinLength: Ptr(3),
		MaxLength: Ptr(10),
		Choices:   []string{"open", "closed", "pending"},
	}

	assert.True(t, v.Validate("open").IsValid())
	assert.True(t, v.Validate("  closed  ").IsValid(), "input is trimmed before checks")

	result := v.Validate("ok")
	assert.Len(t, result.Errors(), 2, "both length and choices fail")

	result = v.Validate("archived")
	require.Len(t, result.Errors(), 1)
	assert.Contains(t, result.Errors()[0].Message, "'open'")
}

func TestString_Substrings(t *testing.T) {
	v := &String{
		Field:       Field{FieldName: "code"},
		Contains:    []string{"-"},
		NotContains: []string{" "},
	}

	assert.True(t, v.Validate("AB-12").IsValid())
	assert.False(t, v.Validate("AB12").IsValid())
	assert.False(t, v.Validate("AB - 12").IsValid())
}

func TestString_NoStrip(t *testing.T) {
	v := &String{Field: Field{FieldName: "raw"}, MaxLength: Ptr(3), NoStrip: true}
	assert.False(t, v.Validate(" ab ").IsValid())
}

func TestDate_ParseAndBounds(t *testing.T) {
	min := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	max := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	v := &Date{Field: Field{FieldName: "signup"}, Min: &min, Max: &max}

	assert.True(t, v.Validate("2023-06-15").IsValid())
	assert.False(t, v.Validate("15.06.2023").IsValid())
	assert.False(t, v.Validate("2019-12-31").IsValid())
	assert.False(t, v.Validate("2026-01-01").IsValid())

	result := v.Validate("not a date")
	require.Len(t, result.Errors(), 1)
	assert.Contains(t, result.Errors()[0].Message, DefaultDateFormat)
}

func TestDate_TimeValuePassesThrough(t *testing.T) {
	v := &Date{Field: Field{FieldName: "signup"}}
	assert.True(t, v.Validate(time.Now()).IsValid())
}

func TestDate_CustomFormat(t *testing.T) {
	v := &Date{Field: Field{FieldName: "signup"}, Format: "02.01.2006"}
	assert.True(t, v.Validate("15.06.2023").IsValid())
	assert.False(t, v.Validate("2023-06-15").IsValid())
}

func TestEmail_Syntax(t *testing.T) {
	v := &Email{Field: Field{FieldName: "email"}}

	assert.True(t, v.Validate("user@example.com").IsValid())
	assert.False(t, v.Validate("not-an-email").IsValid())
	assert.False(t, v.Validate("Display Name <user@example.com>").IsValid())
}

func TestEmail_AllowedDomains(t *testing.T) {
	v := &Email{Field: Field{FieldName: "email"}, AllowedDomains: []string{"example.com"}}

	assert.True(t, v.Validate("user@example.com").IsValid())
	assert.True(t, v.Validate("user@EXAMPLE.com").IsValid())

	result := v.Validate("user@other.org")
	require.Len(t, result.Errors(), 1)
	assert.Contains(t, result.Errors()[0].Message, "example.com")
}

func TestPhone_Normalization(t *testing.T) {
	v := &Phone{Field: Field{FieldName: "phone"}}

	assert.True(t, v.Validate("+79123456789").IsValid())
	assert.True(t, v.Validate("+7 (912) 345-67-89").IsValid())
	assert.False(t, v.Validate("89123456789").IsValid(), "default pattern requires country prefix 7")
	assert.False(t, v.Validate("12345").IsValid())
}

func TestPhone_NoNormalize(t *testing.T) {
	v := &Phone{Field: Field{FieldName: "phone"}, NoNormalize: true}
	assert.False(t, v.Validate("+7 (912) 345-67-89").IsValid())
}

func TestPhone_CustomPattern(t *testing.T) {
	v := &Phone{Field: Field{FieldName: "phone"}, Pattern: regexp.MustCompile(`^[0-9]{5}$`)}
	assert.True(t, v.Validate("12345").IsValid())
	assert.False(t, v.Validate("1234").IsValid())
}

func TestFormat_Pattern(t *testing.T) {
	v := &Format{
		Field:        Field{FieldName: "sku"},
		Pattern:      regexp.MustCompile(`^[A-Z]{2}-[0-9]{4}$`),
		MatchMessage: "sku must look like XX-0000",
	}

	assert.True(t, v.Validate("AB-1234").IsValid())

	result := v.Validate("ab-1234")
	require.Len(t, result.Errors(), 1)
	assert.Equal(t, "sku must look like XX-0000", result.Errors()[0].Message)
}

func TestRequired(t *testing.T) {
	v := &Required{Field: Field{FieldName: "name"}}

	assert.False(t, v.Validate(nil).IsValid())
	assert.False(t, v.Validate("").IsValid())
	assert.True(t, v.Validate("anything").IsValid())
}

func TestUnique(t *testing.T) {
	checker := storage.NewMemoryChecker()
	checker.Put("email", "taken@example.com", 7)

	v := &Unique{Field: Field{FieldName: "email"}, Checker: checker}

	assert.True(t, v.Validate("free@example.com").IsValid())

	result := v.Validate("taken@example.com")
	require.Len(t, result.Errors(), 1)
	assert.Contains(t, result.Errors()[0].Message, "already exists")
}

func TestUnique_CaseInsensitive(t *testing.T) {
	checker := storage.NewMemoryChecker()
	checker.Put("email", "taken@example.com", 7)

	exact := &Unique{Field: Field{FieldName: "email"}, Checker: checker}
	assert.True(t, exact.Validate("TAKEN@example.com").IsValid())

	folded := &Unique{Field: Field{FieldName: "email"}, Checker: checker, CaseInsensitive: true}
	assert.False(t, folded.Validate("TAKEN@example.com").IsValid())
}

func TestUnique_ExcludeID(t *testing.T) {
	checker := storage.NewMemoryChecker()
	checker.Put("email", "mine@example.com", 7)

	v := &Unique{Field: Field{FieldName: "email"}, Checker: checker, ExcludeID: 7}
	assert.True(t, v.Validate("mine@example.com").IsValid(), "a record may keep its own value")
}
