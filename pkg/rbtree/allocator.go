package rbtree

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/Sumatoshi-tech/ordtree/pkg/safeconv"
)

// maxNodeIndex is the first index the allocator will never hand out.
const maxNodeIndex = math.MaxUint32

// initialArenaCapacity is the capacity of a fresh arena, sentinel included.
const initialArenaCapacity = 16

// Allocator is the node arena backing one or more trees. Slot 0 is reserved
// for the shared sentinel; freed slots are recycled in LIFO order.
//
// An Allocator is not safe for concurrent mutation. Trees sharing an
// allocator must be mutated from one goroutine at a time.
type Allocator[K, V any] struct {
	storage []node[K, V]
	gaps    []uint32

	// NodeLimit caps the number of real nodes the allocator will hold at once.
	// Zero means no limit other than the index space.
	NodeLimit int

	// HibernationThreshold is the minimal arena size Hibernate compresses.
	// Smaller arenas are left as they are.
	HibernationThreshold int

	hibernated *hibernatedArena[K, V]
}

// AllocatorOption configures an Allocator.
type AllocatorOption func(*allocatorOptions)

type allocatorOptions struct {
	nodeLimit            int
	hibernationThreshold int
}

// WithNodeLimit caps the number of real nodes. Zero means no limit.
func WithNodeLimit(limit int) AllocatorOption {
	return func(opts *allocatorOptions) {
		opts.nodeLimit = limit
	}
}

// WithHibernationThreshold sets the minimal arena size Hibernate compresses.
func WithHibernationThreshold(threshold int) AllocatorOption {
	return func(opts *allocatorOptions) {
		opts.hibernationThreshold = threshold
	}
}

// NewAllocator creates an empty arena with the sentinel slot reserved.
func NewAllocator[K, V any](opts ...AllocatorOption) *Allocator[K, V] {
	settings := allocatorOptions{}
	for _, opt := range opts {
		opt(&settings)
	}

	storage := make([]node[K, V], 1, initialArenaCapacity)

	return &Allocator[K, V]{
		storage:              storage,
		gaps:                 []uint32{},
		NodeLimit:            settings.nodeLimit,
		HibernationThreshold: settings.hibernationThreshold,
	}
}

// NodeSize returns the in-memory size of one arena slot for the given key
// and value types, not counting memory the key or value point to.
func NodeSize[K, V any]() int {
	return int(unsafe.Sizeof(node[K, V]{}))
}

// Size returns the number of slots in the arena, sentinel and gaps included.
func (allocator *Allocator[K, V]) Size() int {
	return len(allocator.storage)
}

// Used returns the number of occupied slots, sentinel included.
func (allocator *Allocator[K, V]) Used() int {
	allocator.mustBeAwake()

	return len(allocator.storage) - len(allocator.gaps)
}

// Hibernated reports whether the arena is currently compressed.
func (allocator *Allocator[K, V]) Hibernated() bool {
	return allocator.storage == nil
}

// Clone copies the arena slot for slot. Trees bound to the original can be
// rebound to the clone with Tree.CloneShallow.
func (allocator *Allocator[K, V]) Clone() *Allocator[K, V] {
	if allocator.storage == nil {
		panic("cannot clone a hibernated allocator")
	}

	clone := &Allocator[K, V]{
		storage:              make([]node[K, V], len(allocator.storage), cap(allocator.storage)),
		gaps:                 make([]uint32, len(allocator.gaps)),
		NodeLimit:            allocator.NodeLimit,
		HibernationThreshold: allocator.HibernationThreshold,
	}
	copy(clone.storage, allocator.storage)
	copy(clone.gaps, allocator.gaps)

	return clone
}

func (allocator *Allocator[K, V]) mustBeAwake() {
	if allocator.storage == nil {
		panic("hibernated allocators cannot be used")
	}
}

// malloc hands out a zeroed slot. A failed malloc changes nothing.
func (allocator *Allocator[K, V]) malloc() (uint32, error) {
	allocator.mustBeAwake()

	if allocator.NodeLimit > 0 && allocator.Used()-1 >= allocator.NodeLimit {
		return sentinel, fmt.Errorf("%w: limit of %d nodes reached", ErrArenaExhausted, allocator.NodeLimit)
	}

	if gapCount := len(allocator.gaps); gapCount > 0 {
		nodeIdx := allocator.gaps[gapCount-1]
		allocator.gaps = allocator.gaps[:gapCount-1]

		return nodeIdx, nil
	}

	nodeLen := len(allocator.storage)
	if uint64(nodeLen) >= maxNodeIndex {
		return sentinel, fmt.Errorf("%w: uint32 index space used up", ErrArenaExhausted)
	}

	allocator.storage = append(allocator.storage, node[K, V]{})

	return safeconv.MustIntToUint32(nodeLen), nil
}

func (allocator *Allocator[K, V]) free(nodeIdx uint32) {
	allocator.mustBeAwake()

	if nodeIdx == sentinel {
		panic("node #0 is the sentinel and cannot be deallocated")
	}

	allocator.storage[nodeIdx] = node[K, V]{}
	allocator.gaps = append(allocator.gaps, nodeIdx)
}
