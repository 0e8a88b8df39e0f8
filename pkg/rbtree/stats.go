package rbtree

type counters struct {
	inserts    uint64
	duplicates uint64
	deletes    uint64
	rotations  uint64
	recolors   uint64
	fixupSteps uint64
}

// Stats is a snapshot of a tree's shape and of the work done on it since it
// was created or its stats were last reset.
type Stats struct {
	Len         int
	Height      int
	BlackHeight int

	Inserts    uint64
	Duplicates uint64
	Deletes    uint64
	Rotations  uint64
	Recolors   uint64
	FixupSteps uint64

	// ArenaSize counts every slot; ArenaUsed excludes gaps. Both include the
	// sentinel and the nodes of other trees sharing the allocator.
	ArenaSize int
	ArenaUsed int
}

// Stats collects the current statistics. It walks the tree once.
func (tree *Tree[K, V]) Stats() Stats {
	return Stats{
		Len:         tree.count,
		Height:      tree.Height(),
		BlackHeight: tree.blackHeight(),
		Inserts:     tree.counters.inserts,
		Duplicates:  tree.counters.duplicates,
		Deletes:     tree.counters.deletes,
		Rotations:   tree.counters.rotations,
		Recolors:    tree.counters.recolors,
		FixupSteps:  tree.counters.fixupSteps,
		ArenaSize:   tree.allocator.Size(),
		ArenaUsed:   tree.allocator.Used(),
	}
}

// ResetStats zeroes the operation counters.
func (tree *Tree[K, V]) ResetStats() {
	tree.counters = counters{}
}

// blackHeight counts black nodes along the leftmost path. On a valid tree
// every path gives the same count.
func (tree *Tree[K, V]) blackHeight() int {
	alloc := tree.storage()
	blacks := 0

	for nodeIdx := tree.root; nodeIdx != sentinel; nodeIdx = alloc[nodeIdx].left {
		if alloc[nodeIdx].color == black {
			blacks++
		}
	}

	return blacks
}
