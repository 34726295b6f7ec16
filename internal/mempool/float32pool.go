// Package mempool recycles float32 tensor buffers between inference calls.
package mempool

import "sync"

const bucketStep = 4096

var pools sync.Map // bucket size -> *sync.Pool

// bucket rounds n up to a multiple of bucketStep.
func bucket(n int) int {
	if n <= bucketStep {
		return bucketStep
	}
	return (n + bucketStep - 1) / bucketStep * bucketStep
}

func poolFor(size int) *sync.Pool {
	p, _ := pools.LoadOrStore(size, &sync.Pool{New: func() any {
		buf := make([]float32, size)
		return &buf
	}})
	return p.(*sync.Pool)
}

// Get returns a buffer of length n. Contents are not zeroed. Hand it back
// with Put once the tensor built on it has been destroyed.
func Get(n int) []float32 {
	if n <= 0 {
		return nil
	}
	size := bucket(n)
	bp := poolFor(size).Get().(*[]float32)
	buf := *bp
	if cap(buf) < n {
		buf = make([]float32, size)
	}
	return buf[:n]
}

// Put returns buf to its pool. Nil or foreign-sized slices are dropped.
func Put(buf []float32) {
	c := cap(buf)
	if c == 0 || c%bucketStep != 0 {
		return
	}
	buf = buf[:c]
	poolFor(c).Put(&buf)
}
