package rbtree

// Link navigation. Every function here is a pure read of the arena and
// treats the sentinel as a fixed point.

// minimum follows left links down from nodeIdx.
func minimum[K, V any](nodeIdx uint32, alloc []node[K, V]) uint32 {
	if nodeIdx == sentinel {
		return sentinel
	}

	for alloc[nodeIdx].left != sentinel {
		nodeIdx = alloc[nodeIdx].left
	}

	return nodeIdx
}

// maximum follows right links down from nodeIdx.
func maximum[K, V any](nodeIdx uint32, alloc []node[K, V]) uint32 {
	if nodeIdx == sentinel {
		return sentinel
	}

	for alloc[nodeIdx].right != sentinel {
		nodeIdx = alloc[nodeIdx].right
	}

	return nodeIdx
}

// doNext returns the in-order successor of nodeIdx, or the sentinel when
// nodeIdx is the maximum.
func doNext[K, V any](nodeIdx uint32, alloc []node[K, V]) uint32 {
	if nodeIdx == sentinel {
		return sentinel
	}

	if alloc[nodeIdx].right != sentinel {
		return minimum(alloc[nodeIdx].right, alloc)
	}

	parentIdx := alloc[nodeIdx].parent
	for parentIdx != sentinel && nodeIdx == alloc[parentIdx].right {
		nodeIdx = parentIdx
		parentIdx = alloc[parentIdx].parent
	}

	return parentIdx
}

// doPrev returns the in-order predecessor of nodeIdx, or the sentinel when
// nodeIdx is the minimum.
func doPrev[K, V any](nodeIdx uint32, alloc []node[K, V]) uint32 {
	if nodeIdx == sentinel {
		return sentinel
	}

	if alloc[nodeIdx].left != sentinel {
		return maximum(alloc[nodeIdx].left, alloc)
	}

	parentIdx := alloc[nodeIdx].parent
	for parentIdx != sentinel && nodeIdx == alloc[parentIdx].left {
		nodeIdx = parentIdx
		parentIdx = alloc[parentIdx].parent
	}

	return parentIdx
}
