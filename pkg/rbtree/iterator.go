package rbtree

// Iterator is a position in a Tree: a node, or the sentinel standing for
// both ends. It stays valid until its element is deleted or the tree is
// cleared. Iterators are values and can be compared with Equal.
type Iterator[K, V any] struct {
	tree *Tree[K, V]
	node uint32
}

// Valid reports whether the iterator points at an element.
func (iter Iterator[K, V]) Valid() bool {
	return iter.tree != nil && iter.node != sentinel
}

func (iter Iterator[K, V]) deref() *node[K, V] {
	if !iter.Valid() {
		panic("cannot dereference the end iterator")
	}

	return &iter.tree.storage()[iter.node]
}

// Key returns the key at the current position.
func (iter Iterator[K, V]) Key() K {
	return iter.deref().item.Key
}

// Value returns the value at the current position.
func (iter Iterator[K, V]) Value() V {
	return iter.deref().item.Value
}

// Item returns the element at the current position.
func (iter Iterator[K, V]) Item() Item[K, V] {
	return iter.deref().item
}

// SetValue replaces the value at the current position. Keys are immutable.
func (iter Iterator[K, V]) SetValue(value V) {
	iter.deref().item.Value = value
}

// Next moves to the in-order successor. The last element steps to End, and
// End stays put.
func (iter Iterator[K, V]) Next() Iterator[K, V] {
	if iter.tree == nil {
		return iter
	}

	return Iterator[K, V]{iter.tree, doNext(iter.node, iter.tree.storage())}
}

// Prev moves to the in-order predecessor. The first element steps to REnd,
// and REnd stays put.
func (iter Iterator[K, V]) Prev() Iterator[K, V] {
	if iter.tree == nil {
		return iter
	}

	return Iterator[K, V]{iter.tree, doPrev(iter.node, iter.tree.storage())}
}

// Equal reports whether both iterators denote the same position of the same
// tree.
func (iter Iterator[K, V]) Equal(other Iterator[K, V]) bool {
	return iter.tree == other.tree && iter.node == other.node
}
