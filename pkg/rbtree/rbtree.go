// Package rbtree provides an ordered associative container built on a
// red-black tree whose nodes live in an index-addressed arena.
//
// Slot 0 of every arena is a shared black sentinel standing in for all nil
// links, so no link is ever unset. Keys are ordered by a single strict weak
// ordering; two keys are equivalent when neither is less than the other.
//
// A Tree is not synchronized. Any number of readers may use it concurrently
// as long as no Insert, Delete, or Clear runs at the same time.
package rbtree

import (
	"cmp"
	"fmt"
	"iter"
)

// Less reports whether a orders strictly before b. It must be a strict weak
// ordering; anything else leaves the tree's behavior undefined.
type Less[K any] func(a, b K) bool

// Option configures a Tree.
type Option[K, V any] func(*Tree[K, V])

// WithAllocator binds the tree to an existing arena, which may be shared
// with other trees.
func WithAllocator[K, V any](allocator *Allocator[K, V]) Option[K, V] {
	return func(tree *Tree[K, V]) {
		tree.allocator = allocator
	}
}

// Tree is a red-black tree with an API similar to C++ STL's std::map.
type Tree[K, V any] struct {
	// Nodes allocator.
	allocator *Allocator[K, V]

	less Less[K]

	// Root of the tree, the sentinel when empty.
	root uint32

	// Number of real nodes under root.
	count int

	counters counters
}

// New creates an empty tree ordered by cmp.Less.
func New[K cmp.Ordered, V any](opts ...Option[K, V]) *Tree[K, V] {
	return NewFunc(cmp.Less[K], opts...)
}

// NewSet creates an empty tree with no payload.
func NewSet[K cmp.Ordered](opts ...Option[K, struct{}]) *Tree[K, struct{}] {
	return New(opts...)
}

// NewFunc creates an empty tree ordered by less.
func NewFunc[K, V any](less Less[K], opts ...Option[K, V]) *Tree[K, V] {
	tree := &Tree[K, V]{less: less, root: sentinel}

	for _, opt := range opts {
		opt(tree)
	}

	if tree.allocator == nil {
		tree.allocator = NewAllocator[K, V]()
	}

	return tree
}

func (tree *Tree[K, V]) storage() []node[K, V] {
	tree.allocator.mustBeAwake()

	return tree.allocator.storage
}

// Allocator returns the bound nodes allocator.
func (tree *Tree[K, V]) Allocator() *Allocator[K, V] {
	return tree.allocator
}

// LessFunc returns the ordering the tree was built with.
func (tree *Tree[K, V]) LessFunc() Less[K] {
	return tree.less
}

// Len returns the number of elements in the tree.
func (tree *Tree[K, V]) Len() int {
	return tree.count
}

// Empty reports whether the tree holds no elements.
func (tree *Tree[K, V]) Empty() bool {
	return tree.count == 0
}

// locate descends from the root. It returns the node equivalent to key with
// found set, or else the last real node visited, which is the parent a new
// node for key must hang from. On an empty tree it returns the sentinel.
func (tree *Tree[K, V]) locate(key K) (nodeIdx uint32, found bool) {
	alloc := tree.storage()
	parent := sentinel

	for cursor := tree.root; cursor != sentinel; {
		parent = cursor

		switch {
		case tree.less(key, alloc[cursor].item.Key):
			cursor = alloc[cursor].left
		case tree.less(alloc[cursor].item.Key, key):
			cursor = alloc[cursor].right
		default:
			return cursor, true
		}
	}

	return parent, false
}

// Insert adds key with value unless an equivalent key is present. It returns
// the position of the key and whether a node was created. An existing key
// keeps its old value.
//
// The only failure is arena exhaustion, which leaves the tree untouched.
func (tree *Tree[K, V]) Insert(key K, value V) (Iterator[K, V], bool, error) {
	parent, found := tree.locate(key)
	if found {
		tree.counters.duplicates++

		return Iterator[K, V]{tree, parent}, false, nil
	}

	// Nothing is linked before the allocation succeeds.
	nodeIdx, err := tree.allocator.malloc()
	if err != nil {
		return tree.End(), false, fmt.Errorf("insert: %w", err)
	}

	alloc := tree.storage()
	alloc[nodeIdx] = node[K, V]{
		item:   Item[K, V]{Key: key, Value: value},
		parent: parent,
		left:   sentinel,
		right:  sentinel,
		color:  red,
	}

	switch {
	case parent == sentinel:
		tree.root = nodeIdx
	case tree.less(key, alloc[parent].item.Key):
		alloc[parent].left = nodeIdx
	default:
		alloc[parent].right = nodeIdx
	}

	tree.count++
	tree.counters.inserts++
	tree.insertFixup(nodeIdx)

	return Iterator[K, V]{tree, nodeIdx}, true, nil
}

// Search finds the element equivalent to key.
func (tree *Tree[K, V]) Search(key K) (Iterator[K, V], bool) {
	nodeIdx, found := tree.locate(key)
	if !found {
		return tree.End(), false
	}

	return Iterator[K, V]{tree, nodeIdx}, true
}

// Get is a convenience function for reading the value stored under key.
func (tree *Tree[K, V]) Get(key K) (V, bool) {
	nodeIdx, found := tree.locate(key)
	if !found {
		var zero V

		return zero, false
	}

	return tree.storage()[nodeIdx].item.Value, true
}

// Contains reports whether an element equivalent to key is present.
func (tree *Tree[K, V]) Contains(key K) bool {
	_, found := tree.locate(key)

	return found
}

// LowerBound finds the smallest element N such that N >= key. If no such
// element exists, it returns End().
func (tree *Tree[K, V]) LowerBound(key K) Iterator[K, V] {
	alloc := tree.storage()
	result := sentinel

	for cursor := tree.root; cursor != sentinel; {
		if tree.less(alloc[cursor].item.Key, key) {
			cursor = alloc[cursor].right
		} else {
			result = cursor
			cursor = alloc[cursor].left
		}
	}

	return Iterator[K, V]{tree, result}
}

// Floor finds the largest element N such that N <= key. If no such element
// exists, it returns REnd().
func (tree *Tree[K, V]) Floor(key K) Iterator[K, V] {
	alloc := tree.storage()
	result := sentinel

	for cursor := tree.root; cursor != sentinel; {
		if tree.less(key, alloc[cursor].item.Key) {
			cursor = alloc[cursor].left
		} else {
			result = cursor
			cursor = alloc[cursor].right
		}
	}

	return Iterator[K, V]{tree, result}
}

// Min points at the smallest element, or End() when the tree is empty.
func (tree *Tree[K, V]) Min() Iterator[K, V] {
	return Iterator[K, V]{tree, minimum(tree.root, tree.storage())}
}

// Max points at the largest element, or REnd() when the tree is empty.
func (tree *Tree[K, V]) Max() Iterator[K, V] {
	return Iterator[K, V]{tree, maximum(tree.root, tree.storage())}
}

// Begin is the first position of a forward scan.
func (tree *Tree[K, V]) Begin() Iterator[K, V] { return tree.Min() }

// End is the position past the last element. It wraps the sentinel.
func (tree *Tree[K, V]) End() Iterator[K, V] { return Iterator[K, V]{tree, sentinel} }

// RBegin is the first position of a backward scan.
func (tree *Tree[K, V]) RBegin() Iterator[K, V] { return tree.Max() }

// REnd is the position before the first element. It is the same sentinel
// position as End.
func (tree *Tree[K, V]) REnd() Iterator[K, V] { return Iterator[K, V]{tree, sentinel} }

// All yields the elements in ascending key order.
func (tree *Tree[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for it := tree.Begin(); it.Valid(); it = it.Next() {
			if !yield(it.Key(), it.Value()) {
				return
			}
		}
	}
}

// Backward yields the elements in descending key order.
func (tree *Tree[K, V]) Backward() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for it := tree.RBegin(); it.Valid(); it = it.Prev() {
			if !yield(it.Key(), it.Value()) {
				return
			}
		}
	}
}

// Keys returns the keys in ascending order.
func (tree *Tree[K, V]) Keys() []K {
	keys := make([]K, 0, tree.count)
	for key := range tree.All() {
		keys = append(keys, key)
	}

	return keys
}

// Height returns the number of real nodes on the longest root-to-leaf path,
// 0 for an empty tree.
func (tree *Tree[K, V]) Height() int {
	type frame struct {
		nodeIdx uint32
		depth   int
	}

	alloc := tree.storage()
	height := 0
	stack := []frame{{tree.root, 1}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.nodeIdx == sentinel {
			continue
		}

		height = max(height, top.depth)
		stack = append(stack,
			frame{alloc[top.nodeIdx].left, top.depth + 1},
			frame{alloc[top.nodeIdx].right, top.depth + 1})
	}

	return height
}

// Clear returns every node to the allocator in post-order and leaves the
// tree empty. The sentinel is kept.
func (tree *Tree[K, V]) Clear() {
	alloc := tree.storage()
	order := make([]uint32, 0, tree.count)
	stack := []uint32{tree.root}

	// Root-right-left pre-order reversed gives left-right-root post-order.
	for len(stack) > 0 {
		nodeIdx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if nodeIdx == sentinel {
			continue
		}

		order = append(order, nodeIdx)
		stack = append(stack, alloc[nodeIdx].left, alloc[nodeIdx].right)
	}

	for idx := len(order) - 1; idx >= 0; idx-- {
		tree.allocator.free(order[idx])
	}

	tree.root = sentinel
	tree.count = 0
}

// Clone builds an independent tree holding the same elements by inserting
// them one by one in pre-order. Without options the clone gets its own
// allocator.
func (tree *Tree[K, V]) Clone(opts ...Option[K, V]) (*Tree[K, V], error) {
	clone := NewFunc(tree.less, opts...)
	alloc := tree.storage()
	stack := []uint32{tree.root}

	for len(stack) > 0 {
		nodeIdx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if nodeIdx == sentinel {
			continue
		}

		item := alloc[nodeIdx].item

		_, _, err := clone.Insert(item.Key, item.Value)
		if err != nil {
			clone.Clear()

			return nil, fmt.Errorf("clone: %w", err)
		}

		// Storage may have grown if the clone shares this allocator.
		alloc = tree.storage()
		stack = append(stack, alloc[nodeIdx].right, alloc[nodeIdx].left)
	}

	return clone, nil
}

// CloneShallow rebinds a copy of the tree to allocator, which must already
// hold the tree's nodes at the same indices (see Allocator.Clone).
func (tree *Tree[K, V]) CloneShallow(allocator *Allocator[K, V]) *Tree[K, V] {
	clone := *tree
	clone.allocator = allocator

	return &clone
}
