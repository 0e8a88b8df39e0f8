package rbtree

// Delete removes the element equivalent to key. It reports whether one was
// present.
func (tree *Tree[K, V]) Delete(key K) bool {
	nodeIdx, found := tree.locate(key)
	if !found {
		return false
	}

	tree.deleteNode(nodeIdx)

	return true
}

// DeleteAt removes the element it points at and returns the position of its
// successor. Iterators to every other element stay valid.
//
// REQUIRES: it is a dereferenceable position of this tree.
func (tree *Tree[K, V]) DeleteAt(it Iterator[K, V]) Iterator[K, V] {
	if it.tree != tree {
		panic("iterator belongs to another tree")
	}

	if it.node == sentinel {
		panic("cannot delete the end position")
	}

	next := doNext(it.node, tree.storage())
	tree.deleteNode(it.node)

	return Iterator[K, V]{tree, next}
}

// deleteNode unlinks nodeIdx and frees its slot. A node with two children is
// first moved structurally into its in-order predecessor's place, so no
// other element changes slots.
func (tree *Tree[K, V]) deleteNode(nodeIdx uint32) {
	alloc := tree.storage()

	if alloc[nodeIdx].left != sentinel && alloc[nodeIdx].right != sentinel {
		tree.swapWithPredecessor(nodeIdx)
	}

	child := alloc[nodeIdx].right
	if child == sentinel {
		child = alloc[nodeIdx].left
	}

	if alloc[nodeIdx].color == black {
		if child != sentinel {
			// A black node with a single child always has a red one.
			doAssert(alloc[child].color == red)
			alloc[child].color = black
			tree.counters.recolors++
		} else {
			// Rebalance while the doomed leaf is still linked, so the
			// sentinel never has to carry a parent link.
			tree.deleteFixup(nodeIdx)
		}
	}

	parent := alloc[nodeIdx].parent
	tree.replaceChild(parent, nodeIdx, child)

	if child != sentinel {
		alloc[child].parent = parent
	}

	tree.allocator.free(nodeIdx)
	tree.count--
	tree.counters.deletes++

	if tree.root != sentinel && alloc[tree.root].color != black {
		alloc[tree.root].color = black
		tree.counters.recolors++
	}
}

// swapWithPredecessor exchanges the tree positions and colors of nodeIdx and
// the maximum of its left subtree. Items stay in their slots.
//
// REQUIRES: nodeIdx has two children.
func (tree *Tree[K, V]) swapWithPredecessor(nodeIdx uint32) {
	alloc := tree.storage()
	pred := maximum(alloc[nodeIdx].left, alloc)
	doAssert(alloc[pred].right == sentinel)

	parent, left, right, nodeColor := alloc[nodeIdx].parent, alloc[nodeIdx].left, alloc[nodeIdx].right, alloc[nodeIdx].color
	predParent, predLeft, predColor := alloc[pred].parent, alloc[pred].left, alloc[pred].color

	tree.replaceChild(parent, nodeIdx, pred)
	alloc[pred].parent = parent
	alloc[pred].right = right
	alloc[right].parent = pred
	alloc[pred].color = nodeColor

	if predParent == nodeIdx {
		alloc[pred].left = nodeIdx
		alloc[nodeIdx].parent = pred
	} else {
		alloc[pred].left = left
		alloc[left].parent = pred
		alloc[predParent].right = nodeIdx
		alloc[nodeIdx].parent = predParent
	}

	alloc[nodeIdx].left = predLeft
	if predLeft != sentinel {
		alloc[predLeft].parent = nodeIdx
	}

	alloc[nodeIdx].right = sentinel
	alloc[nodeIdx].color = predColor
}

// deleteFixup resolves the missing black on the path through nodeIdx, a
// black node about to lose one unit of black height.
func (tree *Tree[K, V]) deleteFixup(nodeIdx uint32) {
	alloc := tree.storage()

	for nodeIdx != tree.root && alloc[nodeIdx].color == black {
		tree.counters.fixupSteps++

		parent := alloc[nodeIdx].parent
		isLeft := isLeftChild(nodeIdx, alloc)
		sib := sibling(nodeIdx, alloc)

		if alloc[sib].color == red {
			alloc[sib].color = black
			alloc[parent].color = red
			tree.counters.recolors += 2
			tree.rotateDirection(parent, isLeft)
			sib = sibling(nodeIdx, alloc)
		}

		doAssert(sib != sentinel)

		near, far := alloc[sib].right, alloc[sib].left
		if isLeft {
			near, far = far, near
		}

		if alloc[near].color == black && alloc[far].color == black {
			alloc[sib].color = red
			tree.counters.recolors++

			if alloc[parent].color == red {
				alloc[parent].color = black
				tree.counters.recolors++

				return
			}

			nodeIdx = parent

			continue
		}

		if alloc[far].color == black {
			alloc[near].color = black
			alloc[sib].color = red
			tree.counters.recolors += 2
			tree.rotateDirection(sib, !isLeft)
			sib = sibling(nodeIdx, alloc)
			far = alloc[sib].left
			if isLeft {
				far = alloc[sib].right
			}
		}

		alloc[sib].color = alloc[parent].color
		alloc[parent].color = black
		alloc[far].color = black
		tree.counters.recolors += 3
		tree.rotateDirection(parent, isLeft)

		return
	}
}
