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
	"bufio"
	"context"
	"io"
	"os"
	"strings"
)

const defaultMaxCountBytes = 32 << 20

type fileConfig struct {
	skipLines     int
	keepSpace     bool
	keepEmpty     bool
	maxCountBytes int64
	streamOpts    []StreamOption
}

// FileOption configures a FileStreamProcessor.
type FileOption func(*fileConfig)

// WithSkipLines skips the first n lines of every input, header rows for
// example.
func WithSkipLines(n int) FileOption {
	return func(c *fileConfig) {
		if n > 0 {
			c.skipLines = n
		}
	}
}

// WithKeepWhitespace disables the default trimming of leading and trailing
// whitespace on each line.
func WithKeepWhitespace() FileOption {
	return func(c *fileConfig) {
		c.keepSpace = true
	}
}

// WithKeepEmptyLines passes blank lines through instead of dropping them.
func WithKeepEmptyLines() FileOption {
	return func(c *fileConfig) {
		c.keepEmpty = true
	}
}

// WithMaxCountBytes caps the file size up to which ProcessTextFile pre-counts
// lines for progress totals. Defaults to 32 MiB.
func WithMaxCountBytes(n int64) FileOption {
	return func(c *fileConfig) {
		if n > 0 {
			c.maxCountBytes = n
		}
	}
}

// WithStream forwards options to the underlying StreamProcessor.
func WithStream(opts ...StreamOption) FileOption {
	return func(c *fileConfig) {
		c.streamOpts = append(c.streamOpts, opts...)
	}
}

// FileStreamProcessor processes line-oriented text through a StreamProcessor
// without ever holding the whole file in memory.
type FileStreamProcessor[R any] struct {
	cfg    fileConfig
	stream *StreamProcessor[string, R]
}

// NewFileStreamProcessor constructs a FileStreamProcessor from the given
// options.
func NewFileStreamProcessor[R any](opts ...FileOption) *FileStreamProcessor[R] {
	cfg := fileConfig{maxCountBytes: defaultMaxCountBytes}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &FileStreamProcessor[R]{
		cfg:    cfg,
		stream: NewStreamProcessor[string, R](cfg.streamOpts...),
	}
}

// ProcessLines streams lines from r through fn. Pass the line count as
// totalCount when known so progress can report percent; pass 0 otherwise.
func (p *FileStreamProcessor[R]) ProcessLines(ctx context.Context, r io.Reader, fn ProcessorFunc[string, R], out OutputHandler[R], totalCount int) *ProcessingResult {
	return p.stream.ProcessStream(ctx, p.newLineIterator(r), fn, out, totalCount)
}

// ProcessTextFile streams the file at path through fn. When progress is
// enabled and the file is small enough, lines are counted up front so
// progress can report percent and ETA; larger files stream with a running
// count only.
func (p *FileStreamProcessor[R]) ProcessTextFile(ctx context.Context, path string, fn ProcessorFunc[string, R], out OutputHandler[R]) *ProcessingResult {
	f, err := os.Open(path)
	if err != nil {
		result := NewResult()
		p.stream.cfg.handler.HandleFailure(err, CategorySystem, SeverityCritical, nil, "",
			map[string]any{"path": path}, result)
		result.SetSuccess(false)
		return result
	}
	defer f.Close()

	total := 0
	if p.stream.cfg.showProgress {
		if info, statErr := f.Stat(); statErr == nil && info.Size() <= p.cfg.maxCountBytes {
			if n, countErr := p.countLines(ctx, f); countErr == nil {
				total = n
			}
			if _, seekErr := f.Seek(0, io.SeekStart); seekErr != nil {
				result := NewResult()
				p.stream.cfg.handler.HandleFailure(seekErr, CategorySystem, SeverityCritical, nil, "",
					map[string]any{"path": path}, result)
				result.SetSuccess(false)
				return result
			}
		}
	}
	return p.ProcessLines(ctx, f, fn, out, total)
}

// countLines counts the lines the iterator would actually yield, so the
// total matches skip and blank-line settings.
func (p *FileStreamProcessor[R]) countLines(ctx context.Context, r io.Reader) (int, error) {
	it := p.newLineIterator(r)
	n := 0
	for {
		_, err := it.Next(ctx)
		if err != nil {
			if err == io.EOF {
				return n, nil
			}
			return 0, err
		}
		n++
	}
}

func (p *FileStreamProcessor[R]) newLineIterator(r io.Reader) *lineIterator {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &lineIterator{scanner: sc, cfg: &p.cfg}
}

type lineIterator struct {
	scanner *bufio.Scanner
	cfg     *fileConfig
	skipped int
}

func (it *lineIterator) Next(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if !it.scanner.Scan() {
			if err := it.scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		line := it.scanner.Text()
		if it.skipped < it.cfg.skipLines {
			it.skipped++
			continue
		}
		if !it.cfg.keepSpace {
			line = strings.TrimSpace(line)
		}
		if !it.cfg.keepEmpty && line == "" {
			continue
		}
		return line, nil
	}
}
