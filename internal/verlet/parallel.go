package verlet

import (
	"runtime"
	"sync"
)

// minChunk is the smallest slot range worth handing to its own goroutine.
const minChunk = 256

// DefaultWorkers is the worker count used when none is configured.
func DefaultWorkers() int {
	return runtime.NumCPU()
}

// ParallelFor executes fn over disjoint sub-ranges of [0, n) and returns once
// every range is done.
func ParallelFor(n, workers int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if workers <= 1 || n <= minChunk {
		fn(0, n)
		return
	}

	if n/minChunk < workers {
		workers = n / minChunk
	}
	if workers < 1 {
		workers = 1
	}

	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()
}
