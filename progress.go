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
	"time"

	"go.uber.org/zap"
)

// progressReporter logs a progress line on a fixed interval while a stream
// run is underway. Percent and ETA are only reported when the total is known.
type progressReporter struct {
	done chan struct{}
	wg   sync.WaitGroup
}

func startProgressReporter(logger *zap.Logger, result *ProcessingResult, total int, every time.Duration) *progressReporter {
	if every <= 0 {
		every = 5 * time.Second
	}
	r := &progressReporter{done: make(chan struct{})}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		start := time.Now()
		last := 0
		for {
			select {
			case <-r.done:
				logger.Info("stream finished",
					zap.Int("processed", result.ProcessedCount()),
					zap.Int("succeeded", result.SuccessCount()),
					zap.Int("skipped", result.SkippedCount()),
					zap.Duration("elapsed", time.Since(start)))
				return
			case <-ticker.C:
				processed := result.ProcessedCount()
				elapsed := time.Since(start)
				fields := []zap.Field{
					zap.Int("processed", processed),
					zap.Float64("items_per_sec", float64(processed-last)/every.Seconds()),
					zap.Duration("elapsed", elapsed),
				}
				if total > 0 {
					fields = append(fields, zap.Int("percent", processed*100/total))
					if processed > 0 && processed < total {
						eta := time.Duration(float64(elapsed) / float64(processed) * float64(total-processed))
						fields = append(fields, zap.Duration("eta", eta))
					}
				}
				last = processed
				logger.Info("progress", fields...)
			}
		}
	}()
	return r
}

func (r *progressReporter) stop() {
	close(r.done)
	r.wg.Wait()
}
