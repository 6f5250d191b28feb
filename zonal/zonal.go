// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package zonal aggregates raster values inside polygons.
package zonal

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/2dChan/windpotential/raster"
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const defaultBatchSize = 50

// Stats summarises the valid pixels of one polygon. Std is the population
// standard deviation. A polygon without valid pixels has Count 0 and NaN
// statistics.
type Stats struct {
	Count int
	Min   float64
	Max   float64
	Mean  float64
	Std   float64
}

// Options controls Compute.
type Options struct {
	// Workers is the number of goroutines; 0 means runtime.NumCPU().
	Workers int
	// BatchSize is the number of polygons handed to a worker at once.
	BatchSize int
	// Progress, when set, is called after each batch with the number of
	// finished and total batches. Calls are serialized.
	Progress func(done, total int)
	// Observe, when set, receives the duration of each batch. It may be
	// called concurrently.
	Observe func(time.Duration)
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{Workers: runtime.NumCPU(), BatchSize: defaultBatchSize}
}

// Of computes the statistics of the pixels whose centre lies in mp.
// Nodata and NaN pixels are skipped.
func Of(r *raster.Raster, mp orb.MultiPolygon) Stats {
	var values []float64
	r.Cover(mp, r.Window(mp.Bound()), func(col, row int) {
		if v, ok := r.Value(col, row); ok {
			values = append(values, v)
		}
	})
	return summarize(values)
}

func summarize(values []float64) Stats {
	if len(values) == 0 {
		nan := math.NaN()
		return Stats{Min: nan, Max: nan, Mean: nan, Std: nan}
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	return Stats{
		Count: len(values),
		Min:   floats.Min(values),
		Max:   floats.Max(values),
		Mean:  mean,
		Std:   std,
	}
}

// Compute returns the statistics of every polygon in geoms, in input order.
// Polygons are processed in batches by a pool of workers; a cancelled
// context stops the remaining batches and returns the context's error.
func Compute(ctx context.Context, r *raster.Raster, geoms []orb.MultiPolygon, opts Options) ([]Stats, error) {
	if r == nil {
		return nil, fmt.Errorf("zonal: nil raster")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	size := opts.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}

	out := make([]Stats, len(geoms))
	total := (len(geoms) + size - 1) / size

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)
	ch := make(chan int, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range ch {
				if ctx.Err() != nil {
					continue
				}
				start := time.Now()
				lo, hi := b*size, min((b+1)*size, len(geoms))
				for i := lo; i < hi; i++ {
					out[i] = Of(r, geoms[i])
				}
				if opts.Observe != nil {
					opts.Observe(time.Since(start))
				}
				if opts.Progress != nil {
					mu.Lock()
					done++
					opts.Progress(done, total)
					mu.Unlock()
				}
			}
		}()
	}

feed:
	for b := range total {
		select {
		case ch <- b:
		case <-ctx.Done():
			break feed
		}
	}
	close(ch)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
