// Package alloc is a size-classed buffer pool. Requests round up to a fixed
// class; each class keeps freed buffers in a sync.Pool, whose per-P caches
// play the role of per-thread magazines over a central depot. Oversize
// requests fall through to the garbage collector.
package alloc

import (
	"sync"
	"sync/atomic"
)

// classSizes are the supported buffer classes in bytes.
var classSizes = [...]int{64, 96, 128, 256, 512, 1024, 2048, 4096, 8192}

// MaxClassSize is the largest pooled buffer size; larger requests are plain
// allocations.
const MaxClassSize = 8192

type classPool struct {
	size int
	pool sync.Pool

	allocated atomic.Int64
	released  atomic.Int64
}

var classes = func() [len(classSizes)]*classPool {
	var out [len(classSizes)]*classPool
	for i, size := range classSizes {
		c := &classPool{size: size}
		c.pool.New = func() any {
			buf := make([]byte, c.size)
			return &buf
		}
		out[i] = c
	}
	return out
}()

func classFor(n int) *classPool {
	for _, c := range classes {
		if n <= c.size {
			return c
		}
	}
	return nil
}

// Allocate returns a zero-length buffer with capacity at least n, drawn from
// the smallest fitting class.
func Allocate(n int) []byte {
	c := classFor(n)
	if c == nil {
		return make([]byte, 0, n)
	}
	c.allocated.Add(1)
	buf := *c.pool.Get().(*[]byte)
	return buf[:0]
}

// Release returns a buffer obtained from Allocate to its class pool. Buffers
// whose capacity matches no class (including oversize allocations) are left
// to the garbage collector.
func Release(buf []byte) {
	c := classFor(cap(buf))
	if c == nil || c.size != cap(buf) {
		return
	}
	c.released.Add(1)
	full := buf[:cap(buf)]
	c.pool.Put(&full)
}

// ClassStats reports per-class counters.
type ClassStats struct {
	Size        int
	Allocated   int64
	Released    int64
	Outstanding int64
}

// Stats returns a snapshot of every class's counters.
func Stats() []ClassStats {
	out := make([]ClassStats, len(classes))
	for i, c := range classes {
		a, r := c.allocated.Load(), c.released.Load()
		out[i] = ClassStats{Size: c.size, Allocated: a, Released: r, Outstanding: a - r}
	}
	return out
}
