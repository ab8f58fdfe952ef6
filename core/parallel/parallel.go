// Package parallel splits row ranges of a batch across CPU cores.
package parallel

import (
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// chunks returns the [start, end) ranges covering items, one per worker.
func chunks(items int) [][2]int {
	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}
	chunkSize := (items + numWorkers - 1) / numWorkers

	ranges := make([][2]int, 0, numWorkers)
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}
		ranges = append(ranges, [2]int{start, end})
	}
	return ranges
}

// Parallelize runs fn on contiguous ranges of [0, items), one goroutine per
// CPU core, and waits for all of them.
func Parallelize(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, r := range chunks(items) {
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(r[0], r[1])
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn sequentially when items <= threshold.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// SumWithThreshold gives each range its own zeroed accumulator of length size
// and returns the element-wise sum of all accumulators. fn must only write to
// the accumulator it is handed.
func SumWithThreshold(items, threshold, size int, fn func(start, end int, acc []float64)) []float64 {
	total := make([]float64, size)
	if items <= threshold {
		fn(0, items, total)
		return total
	}
	if items == 0 {
		return total
	}

	ranges := chunks(items)
	partial := make([][]float64, len(ranges))
	var wg sync.WaitGroup
	for i, r := range ranges {
		partial[i] = make([]float64, size)
		wg.Add(1)
		go func(acc []float64, s, e int) {
			defer wg.Done()
			fn(s, e, acc)
		}(partial[i], r[0], r[1])
	}
	wg.Wait()

	for _, acc := range partial {
		floats.Add(total, acc)
	}
	return total
}
