package rbtree

// rotateLeft lifts nodeIdx's right child into its place.
func (tree *Tree[K, V]) rotateLeft(nodeIdx uint32) {
	tree.rotateDirection(nodeIdx, true)
}

// rotateRight lifts nodeIdx's left child into its place.
func (tree *Tree[K, V]) rotateRight(nodeIdx uint32) {
	tree.rotateDirection(nodeIdx, false)
}

// rotateDirection implements both rotations. The child on the opposite side
// of the rotation takes nodeIdx's position; its inner subtree moves across.
// The sentinel's fields are never written.
func (tree *Tree[K, V]) rotateDirection(nodeIdx uint32, left bool) {
	alloc := tree.storage()

	var pivot uint32
	if left {
		pivot = alloc[nodeIdx].right
	} else {
		pivot = alloc[nodeIdx].left
	}

	doAssert(pivot != sentinel)

	var inner uint32
	if left {
		inner = alloc[pivot].left
		alloc[nodeIdx].right = inner
	} else {
		inner = alloc[pivot].right
		alloc[nodeIdx].left = inner
	}

	if inner != sentinel {
		alloc[inner].parent = nodeIdx
	}

	tree.replaceChild(alloc[nodeIdx].parent, nodeIdx, pivot)
	alloc[pivot].parent = alloc[nodeIdx].parent

	if left {
		alloc[pivot].left = nodeIdx
	} else {
		alloc[pivot].right = nodeIdx
	}

	alloc[nodeIdx].parent = pivot
	tree.counters.rotations++
}

// replaceChild points parentIdx's link to oldIdx at newIdx instead, or moves
// the root when parentIdx is the sentinel. newIdx's parent link is left alone.
func (tree *Tree[K, V]) replaceChild(parentIdx, oldIdx, newIdx uint32) {
	if parentIdx == sentinel {
		tree.root = newIdx

		return
	}

	alloc := tree.storage()
	if alloc[parentIdx].left == oldIdx {
		alloc[parentIdx].left = newIdx
	} else {
		doAssert(alloc[parentIdx].right == oldIdx)
		alloc[parentIdx].right = newIdx
	}
}

// insertFixup restores the coloring rules after nodeIdx was linked in red.
//
// While the parent is red the grandparent exists and is black, since a red
// root is impossible at that point:
//
//	A: the uncle is red. Recolor parent and uncle black, the grandparent red,
//	   and continue from the grandparent.
//	B: nodeIdx is an inner grandchild. Rotate at the parent toward the outside,
//	   which turns it into case C with the old parent as nodeIdx.
//	C: nodeIdx is an outer grandchild. Recolor the parent black and the
//	   grandparent red, then rotate at the grandparent the other way. Done.
//
// The root is recolored black at the end.
func (tree *Tree[K, V]) insertFixup(nodeIdx uint32) {
	alloc := tree.storage()

	for alloc[alloc[nodeIdx].parent].color == red {
		tree.counters.fixupSteps++

		parent := alloc[nodeIdx].parent
		grandparent := alloc[parent].parent
		parentIsLeft := parent == alloc[grandparent].left

		uncle := alloc[grandparent].left
		if parentIsLeft {
			uncle = alloc[grandparent].right
		}

		if alloc[uncle].color == red {
			alloc[parent].color = black
			alloc[uncle].color = black
			alloc[grandparent].color = red
			tree.counters.recolors += 3
			nodeIdx = grandparent

			continue
		}

		if parentIsLeft == isRightChild(nodeIdx, alloc) {
			tree.rotateDirection(parent, parentIsLeft)
			nodeIdx = parent
			parent = alloc[nodeIdx].parent
		}

		alloc[parent].color = black
		alloc[grandparent].color = red
		tree.counters.recolors += 2
		tree.rotateDirection(grandparent, !parentIsLeft)

		break
	}

	if alloc[tree.root].color != black {
		alloc[tree.root].color = black
		tree.counters.recolors++
	}
}
