package rbtree

import "errors"

// ErrArenaExhausted is returned by Insert when the allocator cannot hand out
// another node, either because NodeLimit is reached or because the uint32
// index space is used up. The tree is left exactly as it was.
var ErrArenaExhausted = errors.New("node arena exhausted")

// ErrCorruptColumn is returned when a hibernated arena column cannot be
// restored to its original length.
var ErrCorruptColumn = errors.New("corrupt hibernated column")

// Validation errors reported by Tree.Validate.
var (
	ErrSentinelMutated = errors.New("sentinel node was modified")
	ErrRootNotBlack    = errors.New("root is not black")
	ErrRedRed          = errors.New("red node has a red child")
	ErrBlackHeight     = errors.New("black height mismatch")
	ErrOrder           = errors.New("in-order keys are not strictly increasing")
	ErrBrokenLink      = errors.New("child does not point back to its parent")
	ErrSize            = errors.New("size does not match the reachable node count")
)
