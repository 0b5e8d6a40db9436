package vm

import (
	"fmt"
	"sort"
)

// pool is a contiguous free region of the heap, [Ptr, Ptr+Size).
type pool struct {
	ptr  uint64
	size uint64
}

// allocator hands out regions of a single growing byte buffer, reusing freed
// regions. Freed neighbours merge so the pool list stays short.
type allocator struct {
	mem            *[]byte
	pools          []pool // ordered by ptr, non-adjacent
	bytesAllocated uint64
}

func (a *allocator) allocate(size uint64) uint64 {
	a.bytesAllocated += size

	for i := range a.pools {
		p := &a.pools[i]
		if size <= p.size {
			// Take the tail of the pool and shrink it.
			ptr := p.ptr + p.size - size
			p.size -= size
			if p.size == 0 {
				a.pools = append(a.pools[:i], a.pools[i+1:]...)
			}
			return ptr
		}
	}

	// A too-small pool at the very end of the buffer can still be used up by
	// growing the buffer to cover the remainder.
	if n := len(a.pools); n > 0 {
		last := a.pools[n-1]
		if last.ptr+last.size == uint64(len(*a.mem)) {
			*a.mem = append(*a.mem, make([]byte, size-last.size)...)
			a.pools = a.pools[:n-1]
			return last.ptr
		}
	}

	ptr := uint64(len(*a.mem))
	*a.mem = append(*a.mem, make([]byte, size)...)
	return ptr
}

func (a *allocator) free(ptr, size uint64) error {
	a.bytesAllocated -= size

	i := sort.Search(len(a.pools), func(i int) bool { return a.pools[i].ptr >= ptr })
	if i < len(a.pools) && a.pools[i].ptr == ptr {
		return fmt.Errorf("double deallocation of ptr=%d", ptr)
	}
	a.pools = append(a.pools, pool{})
	copy(a.pools[i+1:], a.pools[i:])
	a.pools[i] = pool{ptr: ptr, size: size}

	if i+1 < len(a.pools) && a.pools[i].ptr+a.pools[i].size == a.pools[i+1].ptr {
		a.pools[i].size += a.pools[i+1].size
		a.pools = append(a.pools[:i+1], a.pools[i+2:]...)
	}
	if i > 0 && a.pools[i-1].ptr+a.pools[i-1].size == a.pools[i].ptr {
		a.pools[i-1].size += a.pools[i].size
		a.pools = append(a.pools[:i], a.pools[i+1:]...)
	}
	return nil
}

// Arenas bump-allocate out of chunks reserved from the shared allocator.
// Individual objects are never reclaimed; deleting the arena returns every
// chunk to the pool at once.

const arenaChunkSize = 1024

type chunk struct {
	ptr  uint64
	size uint64
	used uint64
}

type arenaState struct {
	chunks []chunk
}

func (a *arenaState) alloc(heap *allocator, size uint64) uint64 {
	if n := len(a.chunks); n > 0 {
		c := &a.chunks[n-1]
		if c.used+size <= c.size {
			ptr := c.ptr + c.used
			c.used += size
			return ptr
		}
	}
	csize := max(size, arenaChunkSize)
	ptr := heap.allocate(csize)
	a.chunks = append(a.chunks, chunk{ptr: ptr, size: csize, used: size})
	return ptr
}

func (a *arenaState) release(heap *allocator) error {
	for i := len(a.chunks) - 1; i >= 0; i-- {
		if err := heap.free(a.chunks[i].ptr, a.chunks[i].size); err != nil {
			return err
		}
	}
	a.chunks = nil
	return nil
}

// bytesUsed is what the language-level arena size query reports.
func (a *arenaState) bytesUsed() uint64 {
	var n uint64
	for _, c := range a.chunks {
		n += c.used
	}
	return n
}

// capacity is the total reserved chunk space.
func (a *arenaState) capacity() uint64 {
	var n uint64
	for _, c := range a.chunks {
		n += c.size
	}
	return n
}
