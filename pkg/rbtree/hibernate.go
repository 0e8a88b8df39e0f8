package rbtree

import (
	"errors"
	"sync"
)

// Link columns of a hibernated arena.
const (
	columnParent = iota
	columnLeft
	columnRight
	columnColor
	columnGaps
	columnCount
)

// hibernatedArena keeps the structural fields LZ4-packed column by column.
// Items stay uncompressed since their layout is unknown to the arena.
type hibernatedArena[K, V any] struct {
	columns  [columnCount][]byte
	items    []Item[K, V]
	gapCount int
}

// Hibernate compresses the arena's links and colors. Trees bound to the
// allocator must not be touched until Boot is called. Arenas smaller than
// HibernationThreshold are left as they are.
func (allocator *Allocator[K, V]) Hibernate() error {
	if allocator.hibernated != nil {
		panic("cannot hibernate an already hibernated Allocator")
	}

	if len(allocator.storage) < allocator.HibernationThreshold {
		return nil
	}

	buffers := [columnCount][]uint32{}
	for idx := range columnGaps {
		buffers[idx] = make([]uint32, len(allocator.storage))
	}

	items := make([]Item[K, V], len(allocator.storage))

	// We deinterleave to achieve a better compression ratio.
	for idx, nd := range allocator.storage {
		items[idx] = nd.item
		buffers[columnParent][idx] = nd.parent
		buffers[columnLeft][idx] = nd.left
		buffers[columnRight][idx] = nd.right

		if nd.color == red {
			buffers[columnColor][idx] = 1
		}
	}

	// Gaps are shared with the live arena until compression succeeds.
	buffers[columnGaps] = append([]uint32(nil), allocator.gaps...)

	hibernated := &hibernatedArena[K, V]{items: items, gapCount: len(allocator.gaps)}
	errs := make([]error, columnCount)

	wg := &sync.WaitGroup{}
	wg.Add(columnCount)

	for idx := range buffers {
		go func(column int) {
			defer wg.Done()

			DeltaEncodeUInt32Slice(buffers[column])
			hibernated.columns[column], errs[column] = CompressUInt32Slice(buffers[column])
		}(idx)
	}

	wg.Wait()

	err := errors.Join(errs...)
	if err != nil {
		return err
	}

	allocator.hibernated = hibernated
	allocator.storage = nil
	allocator.gaps = nil

	return nil
}

// Boot performs the opposite of Hibernate. Booting an awake allocator is a no-op.
func (allocator *Allocator[K, V]) Boot() error {
	hibernated := allocator.hibernated
	if hibernated == nil {
		return nil
	}

	arenaLen := len(hibernated.items)
	buffers := [columnCount][]uint32{}
	errs := make([]error, columnCount)

	wg := &sync.WaitGroup{}
	wg.Add(columnCount)

	for idx := range buffers {
		go func(column int) {
			defer wg.Done()

			size := arenaLen
			if column == columnGaps {
				size = hibernated.gapCount
			}

			buffers[column] = make([]uint32, size)
			errs[column] = DecompressUInt32Slice(hibernated.columns[column], buffers[column])
			DeltaDecodeUInt32Slice(buffers[column])
		}(idx)
	}

	wg.Wait()

	err := errors.Join(errs...)
	if err != nil {
		return err
	}

	storage := make([]node[K, V], arenaLen, max(arenaLen, initialArenaCapacity))
	for idx := range storage {
		nd := &storage[idx]
		nd.item = hibernated.items[idx]
		nd.parent = buffers[columnParent][idx]
		nd.left = buffers[columnLeft][idx]
		nd.right = buffers[columnRight][idx]
		nd.color = buffers[columnColor][idx] > 0
	}

	allocator.storage = storage
	allocator.gaps = buffers[columnGaps]
	allocator.hibernated = nil

	return nil
}
