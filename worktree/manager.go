package worktree

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ByteMirror/hivemind/config"
	"github.com/ByteMirror/hivemind/events"
	"github.com/ByteMirror/hivemind/ids"
	corelog "github.com/ByteMirror/hivemind/log"
	"github.com/ByteMirror/hivemind/worktree/gitcmd"
)

// ReleaseOptions parameterizes Release.
type ReleaseOptions struct {
	// KeepBranch skips deleting the allocation's branch after the
	// worktree directory is removed.
	KeepBranch bool
	// Force removes the worktree even if it is known dirty. Ignored when
	// the allocation is already clean (git needs no -f there).
	Force bool
}

// Manager owns the allocation table for the Worktree Manager (C5): the
// only writer, from this core, of directories under cfg.BaseDir. The zero
// value is not usable; construct with New.
type Manager struct {
	mu    sync.Mutex
	cfg   config.WorktreePoolConfig
	bus   *events.Bus
	clock Clock
	git   gitcmd.Runner

	byID map[string]*Allocation

	stopAutoCleanup context.CancelFunc
}

// New constructs a Manager. bus may be nil; clock defaults to RealClock.
func New(cfg config.WorktreePoolConfig, git gitcmd.Runner, bus *events.Bus, clock Clock) *Manager {
	if clock == nil {
		clock = RealClock{}
	}
	return &Manager{
		cfg:   cfg,
		bus:   bus,
		clock: clock,
		git:   git,
		byID:  make(map[string]*Allocation),
	}
}

// Initialize ensures cfg.BaseDir exists. It does not yet know about any
// worktree on disk; call SyncWithDisk separately to reconcile.
func (m *Manager) Initialize() error {
	return os.MkdirAll(m.cfg.BaseDir, 0o755)
}

// Allocate reserves a worktree path and branch name under lock, creates the
// worktree via the git primitive outside the lock, then finalizes (or rolls
// back) under lock. Grounded on GitWorktree.Setup's same
// decide-then-shell-out-then-record split.
func (m *Manager) Allocate(opts AllocateOptions) (*Allocation, error) {
	m.mu.Lock()
	if err := m.reserveCapacityLocked(opts.RepoPath); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	id := ids.New(ids.Worktree)
	branch := opts.BranchName
	if branch == "" {
		branch = defaultBranchName(opts.AgentID, opts.FeatureID, id)
	}
	if m.branchInUseLocked(opts.RepoPath, branch) {
		m.mu.Unlock()
		return nil, ErrBranchConflict
	}

	path := worktreePath(m.cfg.BaseDir, opts.RepoPath, id)
	now := m.clock.Now()
	alloc := &Allocation{
		ID:           id,
		RepoPath:     opts.RepoPath,
		WorktreePath: path,
		BranchName:   branch,
		BaseBranch:   opts.BaseBranch,
		AgentID:      opts.AgentID,
		FeatureID:    opts.FeatureID,
		CreatedAt:    now,
		LastUsedAt:   now,
		status:       StatusActive,
	}
	m.byID[id] = alloc // reserved: counts toward capacity, not yet on disk
	m.mu.Unlock()

	if _, err := os.Stat(path); err == nil {
		m.rollbackLocked(id)
		return nil, ErrPathConflict
	}

	if err := m.git.AddWorktree(opts.RepoPath, path, branch, opts.BaseBranch); err != nil {
		m.rollbackLocked(id)
		m.emit(events.KindWorktreeAllocationFailed, "", opts.AgentID, opts.FeatureID, path, branch)
		return nil, err
	}

	m.emit(events.KindWorktreeAllocated, id, opts.AgentID, opts.FeatureID, path, branch)
	return alloc, nil
}

// reserveCapacityLocked enforces maxPerRepo, reclaiming the oldest
// released or stale (and, per TreatDirtyAsBlocking, non-dirty) allocation
// for repoPath if the repo is already at capacity. Caller holds m.mu.
func (m *Manager) reserveCapacityLocked(repoPath string) error {
	if m.countLiveLocked(repoPath) < m.cfg.MaxPerRepo {
		return nil
	}

	candidate := m.reclaimCandidateLocked(repoPath)
	if candidate == nil {
		return ErrCapacityExhausted
	}

	delete(m.byID, candidate.ID)
	m.mu.Unlock()
	if err := m.git.RemoveWorktree(candidate.RepoPath, candidate.WorktreePath, true); err != nil {
		corelog.WarningLog.Printf("worktree: reclaim cleanup of %s failed: %v", candidate.WorktreePath, err)
	}
	m.mu.Lock()
	return nil
}

func (m *Manager) countLiveLocked(repoPath string) int {
	n := 0
	for _, a := range m.byID {
		if a.RepoPath == repoPath && a.status != StatusReleased {
			n++
		}
	}
	return n
}

func (m *Manager) branchInUseLocked(repoPath, branch string) bool {
	for _, a := range m.byID {
		if a.RepoPath == repoPath && a.status != StatusReleased && a.BranchName == branch {
			return true
		}
	}
	return false
}

// reclaimCandidateLocked returns the oldest (by LastUsedAt) released or
// reclaimable-stale allocation for repoPath, or nil.
func (m *Manager) reclaimCandidateLocked(repoPath string) *Allocation {
	now := m.clock.Now()
	var best *Allocation
	for _, a := range m.byID {
		if a.RepoPath != repoPath {
			continue
		}
		switch a.Classify(now, m.cfg.StaleThreshold) {
		case StatusReleased, StatusStale:
		case StatusDirty:
			// Classify reports Dirty ahead of Stale, so a dirty
			// allocation's staleness is checked here directly.
			if m.cfg.TreatDirtyAsBlocking || m.cfg.StaleThreshold <= 0 || now.Sub(a.LastUsedAt) <= m.cfg.StaleThreshold {
				continue
			}
		default:
			continue
		}
		if best == nil || a.LastUsedAt.Before(best.LastUsedAt) {
			best = a
		}
	}
	return best
}

func (m *Manager) rollbackLocked(id string) {
	m.mu.Lock()
	delete(m.byID, id)
	m.mu.Unlock()
}

// Release removes the worktree via the git primitive and marks the
// allocation released. A non-existent directory is swallowed (status set
// to released anyway); any other removal failure is returned and the
// allocation stays active so the caller can retry or force.
func (m *Manager) Release(allocationID string, opts ReleaseOptions) error {
	m.mu.Lock()
	alloc, ok := m.byID[allocationID]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	repoPath, path, branch := alloc.RepoPath, alloc.WorktreePath, alloc.BranchName
	m.mu.Unlock()

	if err := m.git.RemoveWorktree(repoPath, path, opts.Force); err != nil {
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			corelog.WarningLog.Printf("worktree: remove of already-gone directory %s swallowed: %v", path, err)
		} else {
			return err
		}
	}

	if !opts.KeepBranch {
		if err := m.git.DeleteBranch(repoPath, branch); err != nil {
			corelog.WarningLog.Printf("worktree: branch cleanup for %s failed: %v", branch, err)
		}
	}

	m.mu.Lock()
	alloc.status = StatusReleased
	m.mu.Unlock()

	m.emit(events.KindWorktreeReleased, allocationID, alloc.AgentID, alloc.FeatureID, path, branch)
	return nil
}

// MarkDirty updates the allocation's dirty flag without moving its status.
func (m *Manager) MarkDirty(allocationID string, dirty bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	alloc, ok := m.byID[allocationID]
	if !ok {
		return ErrNotFound
	}
	alloc.Dirty = dirty
	return nil
}

// Touch refreshes the allocation's LastUsedAt, keeping it out of the
// stale-reclaim pool.
func (m *Manager) Touch(allocationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	alloc, ok := m.byID[allocationID]
	if !ok {
		return ErrNotFound
	}
	alloc.LastUsedAt = m.clock.Now()
	return nil
}

// Get returns the allocation for id, if tracked.
func (m *Manager) Get(id string) (*Allocation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	return a, ok
}

// FindByPath returns the tracked allocation whose WorktreePath is path.
func (m *Manager) FindByPath(path string) (*Allocation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.WorktreePath == path {
			return a, true
		}
	}
	return nil, false
}

// ListByRepo returns every allocation (any status) for repoPath.
func (m *Manager) ListByRepo(repoPath string) []*Allocation {
	return m.filter(func(a *Allocation) bool { return a.RepoPath == repoPath })
}

// ListByAgent returns every allocation for agentID.
func (m *Manager) ListByAgent(agentID string) []*Allocation {
	return m.filter(func(a *Allocation) bool { return a.AgentID == agentID })
}

// ListByFeature returns every allocation for featureID.
func (m *Manager) ListByFeature(featureID string) []*Allocation {
	return m.filter(func(a *Allocation) bool { return a.FeatureID == featureID })
}

func (m *Manager) filter(pred func(*Allocation) bool) []*Allocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Allocation
	for _, a := range m.byID {
		if pred(a) {
			out = append(out, a)
		}
	}
	return out
}

// CleanupStale releases every allocation whose LastUsedAt exceeds
// StaleThreshold and that is not dirty (when TreatDirtyAsBlocking is set),
// returning how many were released.
func (m *Manager) CleanupStale() int {
	now := m.clock.Now()
	var targets []string
	m.mu.Lock()
	for id, a := range m.byID {
		if a.status == StatusReleased {
			continue
		}
		if m.cfg.StaleThreshold <= 0 || now.Sub(a.LastUsedAt) <= m.cfg.StaleThreshold {
			continue
		}
		if m.cfg.TreatDirtyAsBlocking && a.Dirty {
			continue
		}
		targets = append(targets, id)
	}
	m.mu.Unlock()

	count := 0
	for _, id := range targets {
		if err := m.Release(id, ReleaseOptions{Force: true}); err != nil {
			corelog.WarningLog.Printf("worktree: cleanupStale release of %s failed: %v", id, err)
			continue
		}
		count++
	}
	return count
}

// CleanupFeature releases every allocation for featureID.
func (m *Manager) CleanupFeature(featureID string) int {
	return m.cleanupMatching(func(a *Allocation) bool { return a.FeatureID == featureID })
}

// CleanupAgent releases every allocation for agentID.
func (m *Manager) CleanupAgent(agentID string) int {
	return m.cleanupMatching(func(a *Allocation) bool { return a.AgentID == agentID })
}

func (m *Manager) cleanupMatching(pred func(*Allocation) bool) int {
	m.mu.Lock()
	var targets []string
	for id, a := range m.byID {
		if a.status != StatusReleased && pred(a) {
			targets = append(targets, id)
		}
	}
	m.mu.Unlock()

	count := 0
	for _, id := range targets {
		if err := m.Release(id, ReleaseOptions{}); err != nil {
			corelog.WarningLog.Printf("worktree: cleanup release of %s failed: %v", id, err)
			continue
		}
		count++
	}
	return count
}

// SyncWithDisk drops records whose directory has disappeared or whose
// checked-out branch no longer matches the tracked BranchName, and collects
// worktree directories under BaseDir that aren't tracked. Reconcile errors
// downgrade to per-entry warnings; SyncWithDisk never aborts wholesale.
func (m *Manager) SyncWithDisk() SyncResult {
	m.mu.Lock()
	ids := make([]string, 0, len(m.byID))
	tracked := make(map[string]struct{}, len(m.byID))
	for id, a := range m.byID {
		ids = append(ids, id)
		tracked[a.WorktreePath] = struct{}{}
	}
	m.mu.Unlock()

	result := SyncResult{}
	for _, id := range ids {
		m.mu.Lock()
		a, ok := m.byID[id]
		m.mu.Unlock()
		if !ok || a.status == StatusReleased {
			continue
		}
		if _, err := os.Stat(a.WorktreePath); os.IsNotExist(err) {
			m.mu.Lock()
			delete(m.byID, id)
			m.mu.Unlock()
			result.Removed++
			continue
		}
		branch, err := m.git.CurrentBranch(a.WorktreePath)
		if err != nil {
			corelog.WarningLog.Printf("worktree: syncWithDisk could not read current branch for %s: %v", a.WorktreePath, err)
			continue
		}
		if branch != a.BranchName {
			m.mu.Lock()
			delete(m.byID, id)
			m.mu.Unlock()
			result.BranchMismatched++
		}
	}

	repoDirs, err := os.ReadDir(m.cfg.BaseDir)
	if err != nil {
		corelog.WarningLog.Printf("worktree: syncWithDisk could not read base dir: %v", err)
		return result
	}
	for _, repoDir := range repoDirs {
		if !repoDir.IsDir() {
			continue
		}
		repoPath := filepath.Join(m.cfg.BaseDir, repoDir.Name())
		entries, err := os.ReadDir(repoPath)
		if err != nil {
			corelog.WarningLog.Printf("worktree: syncWithDisk could not read %s: %v", repoPath, err)
			continue
		}
		for _, entry := range entries {
			path := filepath.Join(repoPath, entry.Name())
			if _, ok := tracked[path]; !ok {
				result.Orphaned = append(result.Orphaned, path)
			}
		}
	}
	return result
}

// Stats returns a snapshot of the allocation table's counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{ByRepo: make(map[string]int), ByFeature: make(map[string]int)}
	now := m.clock.Now()
	for _, a := range m.byID {
		s.TotalAllocations++
		if a.status == StatusReleased {
			continue
		}
		s.ActiveAllocations++
		if a.Classify(now, m.cfg.StaleThreshold) == StatusDirty {
			s.DirtyAllocations++
		}
		s.ByRepo[a.RepoPath]++
		if a.FeatureID != "" {
			s.ByFeature[a.FeatureID]++
		}
	}
	return s
}

// StartAutoCleanup launches a background ticker that calls CleanupStale
// every interval, if cfg.AutoCleanup is set. It is a no-op otherwise.
// Grounded on concurrency.LoadMonitor's ticker-driven background loop.
// The returned cancel func stops the loop; ctx cancellation also stops it.
func (m *Manager) StartAutoCleanup(ctx context.Context, interval time.Duration) context.CancelFunc {
	if !m.cfg.AutoCleanup {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.CleanupStale()
			case <-ctx.Done():
				return
			}
		}
	}()
	return cancel
}

func (m *Manager) emit(kind events.Kind, allocationID, agentID, featureID, path, branch string) {
	if m.bus == nil {
		return
	}
	m.bus.Emit(events.Event{
		Kind:         kind,
		AgentID:      agentID,
		FeatureID:    featureID,
		AllocationID: allocationID,
		WorktreePath: path,
		BranchName:   branch,
	})
}
