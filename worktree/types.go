// Package worktree implements the Worktree Manager (C5): it allocates
// per-agent git worktrees from a pool of directories under a configured
// base directory, tracks their lifecycle in memory, and reclaims stale or
// released ones.
//
// Grounded on the teacher's entire session/git package (worktree.go,
// worktree_ops.go, worktree_pattern.go, worktree_sync.go) plus
// session/vcs.go for branch sanitization and repo-root discovery. The git
// primitive itself lives in the sibling gitcmd package.
package worktree

import "time"

// Status is the lifecycle classification of an Allocation. Only Active and
// Released are ever stored; Dirty and Stale are derived classifications
// computed on read, per the spec's "stale is a classification, not
// persisted independently" invariant.
type Status string

const (
	StatusActive   Status = "active"
	StatusDirty    Status = "dirty"
	StatusStale    Status = "stale"
	StatusReleased Status = "released"
)

// Allocation is a record coupling an id, a worktree path, and the owning
// agent/feature.
type Allocation struct {
	ID           string
	RepoPath     string
	WorktreePath string
	BranchName   string
	BaseBranch   string
	AgentID      string
	FeatureID    string
	CreatedAt    time.Time
	LastUsedAt   time.Time
	Dirty        bool

	// status holds only StatusActive or StatusReleased; Classify derives
	// the full four-value enum against a clock and threshold.
	status Status
}

// Classify returns the Allocation's effective status: Released is terminal
// and always wins; otherwise Dirty beats Stale (an uncommitted allocation
// is never silently called merely "stale"), and Active is the default.
func (a *Allocation) Classify(now time.Time, staleThreshold time.Duration) Status {
	if a.status == StatusReleased {
		return StatusReleased
	}
	if a.Dirty {
		return StatusDirty
	}
	if staleThreshold > 0 && now.Sub(a.LastUsedAt) > staleThreshold {
		return StatusStale
	}
	return StatusActive
}

// AllocateOptions parameterizes Allocate.
type AllocateOptions struct {
	RepoPath   string
	BaseBranch string
	AgentID    string
	FeatureID  string
	// BranchName overrides the default agent/feature/tmp naming scheme.
	BranchName string
}

// Stats is the snapshot returned by Manager.Stats.
type Stats struct {
	TotalAllocations  int
	ActiveAllocations int
	DirtyAllocations  int
	ByRepo            map[string]int
	ByFeature         map[string]int
}

// SyncResult is returned by Manager.SyncWithDisk.
type SyncResult struct {
	// Removed counts allocations dropped because their worktree directory
	// no longer exists.
	Removed int
	// BranchMismatched counts allocations dropped because the worktree
	// directory exists but is no longer on the tracked branch.
	BranchMismatched int
	Orphaned         []string
}
