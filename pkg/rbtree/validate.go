package rbtree

import "fmt"

// Validate checks every structural rule of the tree and returns the first
// violation found, wrapped around one of the Err* sentinels. It is O(n) and
// meant for tests and diagnostics.
func (tree *Tree[K, V]) Validate() error {
	alloc := tree.storage()

	guard := alloc[sentinel]
	if guard.color != black || guard.parent != sentinel || guard.left != sentinel || guard.right != sentinel {
		return fmt.Errorf("%w: color %v, links %d/%d/%d",
			ErrSentinelMutated, guard.color, guard.parent, guard.left, guard.right)
	}

	if tree.root == sentinel {
		if tree.count != 0 {
			return fmt.Errorf("%w: empty tree reports %d elements", ErrSize, tree.count)
		}

		return nil
	}

	if alloc[tree.root].parent != sentinel {
		return fmt.Errorf("%w: root #%d has parent #%d", ErrBrokenLink, tree.root, alloc[tree.root].parent)
	}

	if alloc[tree.root].color != black {
		return fmt.Errorf("%w: root #%d", ErrRootNotBlack, tree.root)
	}

	visited, err := tree.validateShape(alloc)
	if err != nil {
		return err
	}

	if visited != tree.count {
		return fmt.Errorf("%w: counted %d nodes, tree reports %d", ErrSize, visited, tree.count)
	}

	return tree.validateOrder(alloc)
}

// validateShape walks the tree depth-first checking links, colors, and black
// heights. It stops once more nodes than the arena holds have been seen.
func (tree *Tree[K, V]) validateShape(alloc []node[K, V]) (int, error) {
	type frame struct {
		nodeIdx uint32
		blacks  int
	}

	budget := len(alloc)
	visited := 0
	leafBlacks := -1
	stack := []frame{{tree.root, 0}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.nodeIdx == sentinel {
			if leafBlacks < 0 {
				leafBlacks = top.blacks
			} else if leafBlacks != top.blacks {
				return visited, fmt.Errorf("%w: paths with %d and %d black nodes",
					ErrBlackHeight, leafBlacks, top.blacks)
			}

			continue
		}

		visited++
		if visited > budget {
			return visited, fmt.Errorf("%w: cycle reachable from the root", ErrBrokenLink)
		}

		if int(top.nodeIdx) >= len(alloc) {
			return visited, fmt.Errorf("%w: link to #%d beyond arena of %d", ErrBrokenLink, top.nodeIdx, len(alloc))
		}

		current := alloc[top.nodeIdx]
		blacks := top.blacks

		if current.color == black {
			blacks++
		}

		for _, child := range [2]uint32{current.left, current.right} {
			if child == sentinel {
				continue
			}

			if int(child) >= len(alloc) {
				return visited, fmt.Errorf("%w: link to #%d beyond arena of %d", ErrBrokenLink, child, len(alloc))
			}

			if alloc[child].parent != top.nodeIdx {
				return visited, fmt.Errorf("%w: #%d is a child of #%d but points to #%d",
					ErrBrokenLink, child, top.nodeIdx, alloc[child].parent)
			}

			if current.color == red && alloc[child].color == red {
				return visited, fmt.Errorf("%w: #%d and its child #%d", ErrRedRed, top.nodeIdx, child)
			}
		}

		stack = append(stack, frame{current.left, blacks}, frame{current.right, blacks})
	}

	return visited, nil
}

func (tree *Tree[K, V]) validateOrder(alloc []node[K, V]) error {
	prev := minimum(tree.root, alloc)

	for nodeIdx := doNext(prev, alloc); nodeIdx != sentinel; nodeIdx = doNext(nodeIdx, alloc) {
		if !tree.less(alloc[prev].item.Key, alloc[nodeIdx].item.Key) {
			return fmt.Errorf("%w: #%d does not order before its successor #%d", ErrOrder, prev, nodeIdx)
		}

		prev = nodeIdx
	}

	return nil
}
