package worktree

import "errors"

// ErrCapacityExhausted is returned by Allocate when maxPerRepo is reached
// for a repo and no released/stale allocation could be reclaimed.
var ErrCapacityExhausted = errors.New("worktree: capacity exhausted")

// ErrBranchConflict is returned when the target branch already exists on
// another tracked worktree.
var ErrBranchConflict = errors.New("worktree: branch conflict")

// ErrPathConflict is returned when the chosen worktree path is already
// occupied on disk.
var ErrPathConflict = errors.New("worktree: path conflict")

// ErrNotFound is returned by allocation-scoped operations (Release,
// MarkDirty, Touch) given an unknown allocation id. Get reports an unknown
// id through its boolean result instead.
var ErrNotFound = errors.New("worktree: allocation not found")
