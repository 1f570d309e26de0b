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

package storage

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoError wraps MongoDB adapter failures with operation context.
type MongoError struct {
	Op         string // Operation that failed (e.g., "exists", "insert_batch")
	Collection string // Collection being accessed when the error occurred
	Err        error  // Underlying error
}

func (e *MongoError) Error() string {
	if e.Collection != "" {
		return fmt.Sprintf("mongo store %s [%s]: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("mongo store %s: %v", e.Op, e.Err)
}

func (e *MongoError) Unwrap() error {
	return e.Err
}

// MongoChecker is an ExistsChecker backed by a MongoDB collection.
type MongoChecker struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// NewMongoChecker wraps a collection for uniqueness lookups.
func NewMongoChecker(coll *mongo.Collection) *MongoChecker {
	return &MongoChecker{coll: coll, timeout: 30 * time.Second}
}

// Exists implements ExistsChecker. Case-insensitive comparison uses an
// anchored regex over the stored value's string form.
func (c *MongoChecker) Exists(ctx context.Context, field string, value any, caseInsensitive bool, excludeID any) (bool, error) {
	queryCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	filter := bson.M{}
	if caseInsensitive {
		s := fmt.Sprintf("%v", value)
		filter[field] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(s) + "$", Options: "i"}
	} else {
		filter[field] = value
	}
	if excludeID != nil {
		filter["_id"] = bson.M{"$ne": excludeID}
	}

	count, err := c.coll.CountDocuments(queryCtx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, &MongoError{Op: "exists", Collection: c.coll.Name(), Err: err}
	}
	return count > 0, nil
}

// DocMapper projects an object onto a BSON document for persistence.
type DocMapper[T any] func(*T) bson.M

// MongoWriter is a BulkWriter backed by a MongoDB collection.
type MongoWriter[T any] struct {
	coll    *mongo.Collection
	mapDoc  DocMapper[T]
	timeout time.Duration
}

// NewMongoWriter wraps a collection for bulk writes. mapDoc must include an
// "_id" entry for UpdateBatch to address documents.
func NewMongoWriter[T any](coll *mongo.Collection, mapDoc DocMapper[T]) (*MongoWriter[T], error) {
	if mapDoc == nil {
		return nil, &MongoError{Op: "configure", Collection: coll.Name(), Err: fmt.Errorf("document mapper is required")}
	}
	return &MongoWriter[T]{coll: coll, mapDoc: mapDoc, timeout: 30 * time.Second}, nil
}

// InsertBatch implements BulkWriter via InsertMany.
func (w *MongoWriter[T]) InsertBatch(ctx context.Context, batch []*T) error {
	if len(batch) == 0 {
		return nil
	}
	queryCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	docs := make([]any, len(batch))
	for i, obj := range batch {
		docs[i] = w.mapDoc(obj)
	}
	if _, err := w.coll.InsertMany(queryCtx, docs); err != nil {
		return &MongoError{Op: "insert_batch", Collection: w.coll.Name(), Err: err}
	}
	return nil
}

// UpdateBatch implements BulkWriter: a bulk write of per-document $set
// updates restricted to the named fields.
func (w *MongoWriter[T]) UpdateBatch(ctx context.Context, batch []*T, fields []string) error {
	if len(batch) == 0 {
		return nil
	}
	if len(fields) == 0 {
		return &MongoError{Op: "update_batch", Collection: w.coll.Name(), Err: fmt.Errorf("update fields are required")}
	}
	queryCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	models := make([]mongo.WriteModel, 0, len(batch))
	for _, obj := range batch {
		doc := w.mapDoc(obj)
		set := bson.M{}
		for _, f := range fields {
			set[f] = doc[f]
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": doc["_id"]}).
			SetUpdate(bson.M{"$set": set}))
	}
	if _, err := w.coll.BulkWrite(queryCtx, models); err != nil {
		return &MongoError{Op: "update_batch", Collection: w.coll.Name(), Err: err}
	}
	return nil
}
