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
	"go.uber.org/zap"
)

// ErrorHandler decides what happens to a processing failure: where it is
// recorded and whether the enclosing loop keeps going. Handlers are
// constructed explicitly and injected into processors; there is no package
// level default instance.
//
// The contract per severity: INFO and WARNING never abort anything; ERROR
// records the failure, the current item is skipped and the loop continues;
// CRITICAL records the failure, fails the result and returns false.
type ErrorHandler interface {
	// HandleError records err into result and reports whether processing
	// may continue. result may be nil, in which case the error is only
	// logged.
	HandleError(err *ProcessingError, result *ProcessingResult) bool

	// HandleFailure wraps an arbitrary failure into a ProcessingError and
	// delegates to HandleError.
	HandleFailure(cause error, category Category, severity Severity, rowIndex *int, fieldName string, context map[string]any, result *ProcessingResult) bool
}

// HandlerOption configures an error handler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	logger *zap.Logger
}

// WithLogger sets the logger used by the handler. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) HandlerOption {
	return func(c *handlerConfig) {
		c.logger = l
	}
}

func newHandlerConfig(opts []HandlerOption) handlerConfig {
	cfg := handlerConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// DefaultErrorHandler implements the standard policy: record, log, and stop
// only on critical errors.
type DefaultErrorHandler struct {
	logger *zap.Logger
}

// NewDefaultErrorHandler constructs a DefaultErrorHandler.
func NewDefaultErrorHandler(opts ...HandlerOption) *DefaultErrorHandler {
	cfg := newHandlerConfig(opts)
	return &DefaultErrorHandler{logger: cfg.logger}
}

// HandleError implements ErrorHandler.
func (h *DefaultErrorHandler) HandleError(err *ProcessingError, result *ProcessingResult) bool {
	if result != nil {
		result.AddError(err)
	}
	logError(h.logger, err)
	return err.Severity != SeverityCritical
}

// HandleFailure implements ErrorHandler.
func (h *DefaultErrorHandler) HandleFailure(cause error, category Category, severity Severity, rowIndex *int, fieldName string, context map[string]any, result *ProcessingResult) bool {
	return h.HandleError(wrapFailure(cause, category, severity, rowIndex, fieldName, context), result)
}

// TransactionalErrorHandler behaves like DefaultErrorHandler but additionally
// signals the transactional unit owning the result to roll back when the
// severity is critical. The returned false applies to that unit only; whether
// the whole run stops is governed by the processor's StopOnCritical setting.
type TransactionalErrorHandler struct {
	logger *zap.Logger
}

// NewTransactionalErrorHandler constructs a TransactionalErrorHandler.
func NewTransactionalErrorHandler(opts ...HandlerOption) *TransactionalErrorHandler {
	cfg := newHandlerConfig(opts)
	return &TransactionalErrorHandler{logger: cfg.logger}
}

// HandleError implements ErrorHandler.
func (h *TransactionalErrorHandler) HandleError(err *ProcessingError, result *ProcessingResult) bool {
	if result != nil {
		result.AddError(err)
	}
	logError(h.logger, err)
	if err.Severity == SeverityCritical {
		if result != nil {
			result.SignalRollback()
		}
		h.logger.Error("rolling back transactional unit", zap.String("reason", err.Message))
		return false
	}
	return true
}

// HandleFailure implements ErrorHandler.
func (h *TransactionalErrorHandler) HandleFailure(cause error, category Category, severity Severity, rowIndex *int, fieldName string, context map[string]any, result *ProcessingResult) bool {
	return h.HandleError(wrapFailure(cause, category, severity, rowIndex, fieldName, context), result)
}

func wrapFailure(cause error, category Category, severity Severity, rowIndex *int, fieldName string, context map[string]any) *ProcessingError {
	opts := []ErrorOption{}
	if rowIndex != nil {
		opts = append(opts, WithRowIndex(*rowIndex))
	}
	if fieldName != "" {
		opts = append(opts, WithFieldName(fieldName))
	}
	if context != nil {
		opts = append(opts, WithContext(context))
	}
	return FromError(cause, category, severity, opts...)
}

func logError(logger *zap.Logger, err *ProcessingError) {
	fields := []zap.Field{
		zap.String("category", string(err.Category)),
	}
	if err.RowIndex != nil {
		fields = append(fields, zap.Int("row_index", *err.RowIndex))
	}
	if err.FieldName != "" {
		fields = append(fields, zap.String("field_name", err.FieldName))
	}
	if err.Err != nil {
		fields = append(fields, zap.Error(err.Err))
	}
	switch err.Severity {
	case SeverityCritical:
		logger.Error("critical processing error", append(fields, zap.String("message", err.Message))...)
	case SeverityError:
		logger.Warn("processing error", append(fields, zap.String("message", err.Message))...)
	case SeverityWarning:
		logger.Info("processing warning", append(fields, zap.String("message", err.Message))...)
	default:
		logger.Debug("processing note", append(fields, zap.String("message", err.Message))...)
	}
}
