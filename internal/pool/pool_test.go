package pool

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunExecutesEveryTask(t *testing.T) {
	results := make([]int, 100)
	Run(8, len(results), func(i int) {
		results[i] = i * 2
	})
	for i, v := range results {
		assert.Equal(t, i*2, v)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	var active, peak int32
	Run(3, 50, func(i int) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		atomic.AddInt32(&active, -1)
	})
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestRunZeroTasks(t *testing.T) {
	called := false
	Run(4, 0, func(i int) { called = true })
	assert.False(t, called)
}

func TestRunWidthBelowOne(t *testing.T) {
	results := make([]int, 5)
	Run(0, len(results), func(i int) { results[i] = 1 })
	for _, v := range results {
		assert.Equal(t, 1, v)
	}
}
