package rbtree

// sentinel is the arena slot every tree uses for its nil links. It is never
// written after the allocator reserves it, so its color stays black.
const sentinel uint32 = 0

// color is the two-valued tag of a node. The zero value is black, which is
// what makes the reserved sentinel slot black without any initialization.
type color bool

const (
	black color = false
	red   color = true
)

func (c color) String() string {
	if c == red {
		return "red"
	}

	return "black"
}

// Item is the value record stored in each node. Trees used as sets carry
// struct{} values.
type Item[K, V any] struct {
	Key   K
	Value V
}

// node is the structural record: links are arena indices, never pointers.
type node[K, V any] struct {
	item                Item[K, V]
	parent, left, right uint32
	color               color
}

func isLeftChild[K, V any](nodeIdx uint32, alloc []node[K, V]) bool {
	return nodeIdx == alloc[alloc[nodeIdx].parent].left
}

func isRightChild[K, V any](nodeIdx uint32, alloc []node[K, V]) bool {
	return nodeIdx == alloc[alloc[nodeIdx].parent].right
}

// sibling returns the other child of nodeIdx's parent.
//
// REQUIRES: nodeIdx is not the root.
func sibling[K, V any](nodeIdx uint32, alloc []node[K, V]) uint32 {
	parentIdx := alloc[nodeIdx].parent
	doAssert(parentIdx != sentinel)

	if alloc[parentIdx].left == nodeIdx {
		return alloc[parentIdx].right
	}

	return alloc[parentIdx].left
}

func doAssert(condition bool) {
	if !condition {
		panic("rbtree internal assertion failed")
	}
}
