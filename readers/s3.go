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

// Package readers connects remote data sources to the processing pipelines.
package readers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Error provides structured error information for S3 source operations.
type S3Error struct {
	Op  string
	Err error
}

func (e *S3Error) Error() string {
	return fmt.Sprintf("s3 source %s: %v", e.Op, e.Err)
}

func (e *S3Error) Unwrap() error {
	return e.Err
}

// S3Stats holds counters about what the source has read so far.
type S3Stats struct {
	ObjectsListed int64
	ObjectsRead   int64
	LinesRead     int64
	ObjectErrors  int64
	CurrentKey    string
}

// S3Options configures the S3 source.
type S3Options struct {
	Bucket         string
	Prefix         string
	Suffix         string // key suffix filter, e.g. ".csv"
	MaxKeys        int32
	Region         string
	Profile        string
	Credentials    aws.Credentials
	EndpointURL    string // custom endpoint for S3-compatible services
	ForcePathStyle bool
}

// S3Option configures an S3Source.
type S3Option func(*S3Options)

func WithS3Bucket(bucket string) S3Option {
	return func(opts *S3Options) {
		opts.Bucket = bucket
	}
}

func WithS3Prefix(prefix string) S3Option {
	return func(opts *S3Options) {
		opts.Prefix = prefix
	}
}

func WithS3Suffix(suffix string) S3Option {
	return func(opts *S3Options) {
		opts.Suffix = suffix
	}
}

func WithS3MaxKeys(maxKeys int32) S3Option {
	return func(opts *S3Options) {
		opts.MaxKeys = maxKeys
	}
}

func WithS3Region(region string) S3Option {
	return func(opts *S3Options) {
		opts.Region = region
	}
}

func WithS3Profile(profile string) S3Option {
	return func(opts *S3Options) {
		opts.Profile = profile
	}
}

func WithS3Credentials(creds aws.Credentials) S3Option {
	return func(opts *S3Options) {
		opts.Credentials = creds
	}
}

func WithS3Endpoint(endpoint string) S3Option {
	return func(opts *S3Options) {
		opts.EndpointURL = endpoint
	}
}

func WithS3PathStyle(pathStyle bool) S3Option {
	return func(opts *S3Options) {
		opts.ForcePathStyle = pathStyle
	}
}

// S3Source lists matching objects in a bucket and serves their contents as
// line streams for the processing pipelines.
type S3Source struct {
	client *s3.Client
	keys   []string
	opts   S3Options
	stats  S3Stats
	mu     sync.RWMutex
}

// NewS3Source creates an S3 source and lists the matching object keys up
// front, sorted by key so processing order is deterministic.
func NewS3Source(ctx context.Context, options ...S3Option) (*S3Source, error) {
	opts := S3Options{
		MaxKeys: 1000,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.Bucket == "" {
		return nil, &S3Error{Op: "validate_options", Err: fmt.Errorf("bucket is required")}
	}

	cfg, err := loadAWSConfig(ctx, opts)
	if err != nil {
		return nil, &S3Error{Op: "load_aws_config", Err: err}
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.EndpointURL != "" {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
		}
		o.UsePathStyle = opts.ForcePathStyle
	})

	src := &S3Source{
		client: client,
		opts:   opts,
	}
	if err := src.listKeys(ctx); err != nil {
		return nil, &S3Error{Op: "list_objects", Err: err}
	}
	return src, nil
}

// Keys returns the matching object keys in processing order.
func (s *S3Source) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.keys...)
}

// Stats returns a snapshot of the source counters.
func (s *S3Source) Stats() S3Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Open returns the content of a single object. The caller owns the closer.
func (s *S3Source) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.mu.Lock()
		s.stats.ObjectErrors++
		s.mu.Unlock()
		return nil, &S3Error{Op: "get_object", Err: fmt.Errorf("object %s: %w", key, err)}
	}
	s.mu.Lock()
	s.stats.ObjectsRead++
	s.stats.CurrentKey = key
	s.mu.Unlock()
	return out.Body, nil
}

// Lines returns an iterator over the lines of every listed object in order,
// fetching one object at a time.
func (s *S3Source) Lines() *S3LineIterator {
	return &S3LineIterator{src: s, keys: s.Keys()}
}

func loadAWSConfig(ctx context.Context, opts S3Options) (aws.Config, error) {
	configOpts := []func(*config.LoadOptions) error{}
	if opts.Region != "" {
		configOpts = append(configOpts, config.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, err
	}
	if opts.Credentials.AccessKeyID != "" {
		cfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(
				opts.Credentials.AccessKeyID,
				opts.Credentials.SecretAccessKey,
				opts.Credentials.SessionToken,
			),
		)
	}
	return cfg, nil
}

func (s *S3Source) listKeys(ctx context.Context) error {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.opts.Bucket),
		MaxKeys: &s.opts.MaxKeys,
	}
	if s.opts.Prefix != "" {
		input.Prefix = aws.String(s.opts.Prefix)
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if s.opts.Suffix != "" && !strings.HasSuffix(key, s.opts.Suffix) {
				continue
			}
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	s.mu.Lock()
	s.keys = keys
	s.stats.ObjectsListed = int64(len(keys))
	s.mu.Unlock()
	return nil
}

// S3LineIterator yields the lines of a key list one object at a time. An
// object that fails to open is counted and skipped so one bad key does not
// sink the whole run.
type S3LineIterator struct {
	src     *S3Source
	keys    []string
	index   int
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func (it *S3LineIterator) Next(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			it.closeBody()
			return "", err
		}
		if it.scanner == nil {
			if it.index >= len(it.keys) {
				return "", io.EOF
			}
			body, err := it.src.Open(ctx, it.keys[it.index])
			it.index++
			if err != nil {
				continue
			}
			it.body = body
			it.scanner = bufio.NewScanner(body)
			it.scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		}
		if it.scanner.Scan() {
			it.src.mu.Lock()
			it.src.stats.LinesRead++
			it.src.mu.Unlock()
			return it.scanner.Text(), nil
		}
		if err := it.scanner.Err(); err != nil {
			it.closeBody()
			return "", &S3Error{Op: "read", Err: err}
		}
		it.closeBody()
	}
}

// Close releases the currently open object, if any.
func (it *S3LineIterator) Close() error {
	return it.closeBody()
}

func (it *S3LineIterator) closeBody() error {
	var err error
	if it.body != nil {
		err = it.body.Close()
		it.body = nil
	}
	it.scanner = nil
	return err
}
