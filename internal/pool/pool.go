// Package pool runs batches of independent tasks under a bounded number
// of goroutines.
package pool

import "sync"

// Run executes task(i) for every i in [0, n) using at most width
// concurrent goroutines and returns once all tasks finished. Tasks write
// their results positionally into caller-owned slices; nothing is merged
// until Run returns.
func Run(width, n int, task func(i int)) {
	if width < 1 {
		width = 1
	}
	sem := make(chan struct{}, width)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			task(i)
		}(i)
	}
	wg.Wait()
}
