package worktree

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ByteMirror/hivemind/config"
	"github.com/ByteMirror/hivemind/worktree/gitcmd"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(0, 0)} }

func testCfg(t *testing.T) config.WorktreePoolConfig {
	return config.WorktreePoolConfig{
		BaseDir:              t.TempDir(),
		MaxPerRepo:           2,
		StaleThreshold:       time.Hour,
		AutoCleanup:          false,
		TreatDirtyAsBlocking: true,
	}
}

func TestAllocateCreatesWorktreeAndTracksIt(t *testing.T) {
	m := New(testCfg(t), gitcmd.NewFake(), nil, newFakeClock())
	require.NoError(t, m.Initialize())

	alloc, err := m.Allocate(AllocateOptions{RepoPath: "/repo", AgentID: "agt_1"})
	require.NoError(t, err)
	require.Equal(t, "agent/agt-1", alloc.BranchName)
	require.DirExists(t, alloc.WorktreePath)

	found, ok := m.FindByPath(alloc.WorktreePath)
	require.True(t, ok)
	require.Equal(t, alloc.ID, found.ID)
}

func TestAllocateRejectsDuplicateBranch(t *testing.T) {
	m := New(testCfg(t), gitcmd.NewFake(), nil, newFakeClock())
	_, err := m.Allocate(AllocateOptions{RepoPath: "/repo", BranchName: "agent/dup"})
	require.NoError(t, err)

	_, err = m.Allocate(AllocateOptions{RepoPath: "/repo", BranchName: "agent/dup"})
	require.ErrorIs(t, err, ErrBranchConflict)
}

func TestAllocateExhaustsCapacityWithoutReclaimableCandidate(t *testing.T) {
	cfg := testCfg(t)
	cfg.MaxPerRepo = 1
	m := New(cfg, gitcmd.NewFake(), nil, newFakeClock())

	_, err := m.Allocate(AllocateOptions{RepoPath: "/repo", AgentID: "agt_1"})
	require.NoError(t, err)

	_, err = m.Allocate(AllocateOptions{RepoPath: "/repo", AgentID: "agt_2"})
	require.ErrorIs(t, err, ErrCapacityExhausted)
}

func TestAllocateReclaimsStaleWhenAtCapacity(t *testing.T) {
	cfg := testCfg(t)
	cfg.MaxPerRepo = 1
	clock := newFakeClock()
	m := New(cfg, gitcmd.NewFake(), nil, clock)

	first, err := m.Allocate(AllocateOptions{RepoPath: "/repo", AgentID: "agt_1"})
	require.NoError(t, err)

	clock.advance(2 * time.Hour)

	second, err := m.Allocate(AllocateOptions{RepoPath: "/repo", AgentID: "agt_2"})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	_, ok := m.Get(first.ID)
	require.False(t, ok, "reclaimed allocation should no longer be tracked")
}

func TestAllocateDoesNotReclaimDirtyStaleWhenBlocking(t *testing.T) {
	cfg := testCfg(t)
	cfg.MaxPerRepo = 1
	clock := newFakeClock()
	m := New(cfg, gitcmd.NewFake(), nil, clock)

	first, err := m.Allocate(AllocateOptions{RepoPath: "/repo", AgentID: "agt_1"})
	require.NoError(t, err)
	require.NoError(t, m.MarkDirty(first.ID, true))

	clock.advance(2 * time.Hour)

	_, err = m.Allocate(AllocateOptions{RepoPath: "/repo", AgentID: "agt_2"})
	require.ErrorIs(t, err, ErrCapacityExhausted)
}

func TestAllocateReclaimsDirtyStaleWhenNotBlocking(t *testing.T) {
	cfg := testCfg(t)
	cfg.MaxPerRepo = 1
	cfg.TreatDirtyAsBlocking = false
	clock := newFakeClock()
	m := New(cfg, gitcmd.NewFake(), nil, clock)

	first, err := m.Allocate(AllocateOptions{RepoPath: "/repo", AgentID: "agt_1"})
	require.NoError(t, err)
	require.NoError(t, m.MarkDirty(first.ID, true))

	clock.advance(2 * time.Hour)

	_, err = m.Allocate(AllocateOptions{RepoPath: "/repo", AgentID: "agt_2"})
	require.NoError(t, err)
}

func TestReleaseRemovesWorktreeAndBranch(t *testing.T) {
	fake := gitcmd.NewFake()
	m := New(testCfg(t), fake, nil, newFakeClock())

	alloc, err := m.Allocate(AllocateOptions{RepoPath: "/repo", AgentID: "agt_1"})
	require.NoError(t, err)

	require.NoError(t, m.Release(alloc.ID, ReleaseOptions{}))
	require.NoDirExists(t, alloc.WorktreePath)

	exists, err := fake.BranchExists("/repo", alloc.BranchName)
	require.NoError(t, err)
	require.False(t, exists)

	got, ok := m.Get(alloc.ID)
	require.True(t, ok)
	require.Equal(t, StatusReleased, got.status)
}

func TestReleaseKeepsBranchWhenRequested(t *testing.T) {
	fake := gitcmd.NewFake()
	m := New(testCfg(t), fake, nil, newFakeClock())

	alloc, err := m.Allocate(AllocateOptions{RepoPath: "/repo", AgentID: "agt_1"})
	require.NoError(t, err)

	require.NoError(t, m.Release(alloc.ID, ReleaseOptions{KeepBranch: true}))

	exists, err := fake.BranchExists("/repo", alloc.BranchName)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestCleanupStaleReleasesOnlyStaleNonDirty(t *testing.T) {
	cfg := testCfg(t)
	cfg.MaxPerRepo = 10
	clock := newFakeClock()
	m := New(cfg, gitcmd.NewFake(), nil, clock)

	stale, err := m.Allocate(AllocateOptions{RepoPath: "/repo", AgentID: "agt_1"})
	require.NoError(t, err)
	dirtyStale, err := m.Allocate(AllocateOptions{RepoPath: "/repo", AgentID: "agt_2"})
	require.NoError(t, err)
	require.NoError(t, m.MarkDirty(dirtyStale.ID, true))

	clock.advance(2 * time.Hour)

	fresh, err := m.Allocate(AllocateOptions{RepoPath: "/repo", AgentID: "agt_3"})
	require.NoError(t, err)

	n := m.CleanupStale()
	require.Equal(t, 1, n)

	got, _ := m.Get(stale.ID)
	require.Equal(t, StatusReleased, got.status)
	got, _ = m.Get(dirtyStale.ID)
	require.Equal(t, StatusActive, got.status)
	got, _ = m.Get(fresh.ID)
	require.Equal(t, StatusActive, got.status)
}

func TestCleanupFeatureReleasesAllMatching(t *testing.T) {
	cfg := testCfg(t)
	cfg.MaxPerRepo = 10
	m := New(cfg, gitcmd.NewFake(), nil, newFakeClock())

	a1, err := m.Allocate(AllocateOptions{RepoPath: "/repo", FeatureID: "ftr_1", AgentID: "agt_1"})
	require.NoError(t, err)
	a2, err := m.Allocate(AllocateOptions{RepoPath: "/repo", FeatureID: "ftr_1", AgentID: "agt_2"})
	require.NoError(t, err)
	other, err := m.Allocate(AllocateOptions{RepoPath: "/repo", FeatureID: "ftr_2", AgentID: "agt_3"})
	require.NoError(t, err)

	n := m.CleanupFeature("ftr_1")
	require.Equal(t, 2, n)

	got, _ := m.Get(a1.ID)
	require.Equal(t, StatusReleased, got.status)
	got, _ = m.Get(a2.ID)
	require.Equal(t, StatusReleased, got.status)
	got, _ = m.Get(other.ID)
	require.Equal(t, StatusActive, got.status)
}

func TestSyncWithDiskDropsMissingAndFindsOrphans(t *testing.T) {
	m := New(testCfg(t), gitcmd.NewFake(), nil, newFakeClock())
	alloc, err := m.Allocate(AllocateOptions{RepoPath: "/repo", AgentID: "agt_1"})
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(alloc.WorktreePath))
	orphan := filepath.Join(m.cfg.BaseDir, "0000deadbeef", "wta_orphan")
	require.NoError(t, os.MkdirAll(orphan, 0o755))

	result := m.SyncWithDisk()
	require.Equal(t, 1, result.Removed)
	require.Equal(t, []string{orphan}, result.Orphaned)
	_, ok := m.Get(alloc.ID)
	require.False(t, ok)
}

func TestSyncWithDiskStillTrackedWhenBranchMatches(t *testing.T) {
	m := New(testCfg(t), gitcmd.NewFake(), nil, newFakeClock())
	alloc, err := m.Allocate(AllocateOptions{RepoPath: "/repo", AgentID: "agt_1"})
	require.NoError(t, err)

	result := m.SyncWithDisk()
	require.Equal(t, 0, result.Removed)
	require.Equal(t, 0, result.BranchMismatched)
	_, ok := m.Get(alloc.ID)
	require.True(t, ok)
}

func TestSyncWithDiskDropsBranchMismatch(t *testing.T) {
	fake := gitcmd.NewFake()
	m := New(testCfg(t), fake, nil, newFakeClock())
	alloc, err := m.Allocate(AllocateOptions{RepoPath: "/repo", AgentID: "agt_1"})
	require.NoError(t, err)

	fake.SetCurrentBranch(alloc.WorktreePath, "someone-else/checked-out-this-branch")

	result := m.SyncWithDisk()
	require.Equal(t, 1, result.BranchMismatched)
	_, ok := m.Get(alloc.ID)
	require.False(t, ok)
}

func TestStatsCountsActiveAndDirty(t *testing.T) {
	cfg := testCfg(t)
	cfg.MaxPerRepo = 10
	m := New(cfg, gitcmd.NewFake(), nil, newFakeClock())

	a1, err := m.Allocate(AllocateOptions{RepoPath: "/repo", FeatureID: "ftr_1", AgentID: "agt_1"})
	require.NoError(t, err)
	_, err = m.Allocate(AllocateOptions{RepoPath: "/repo", FeatureID: "ftr_1", AgentID: "agt_2"})
	require.NoError(t, err)
	require.NoError(t, m.MarkDirty(a1.ID, true))

	stats := m.Stats()
	require.Equal(t, 2, stats.ActiveAllocations)
	require.Equal(t, 1, stats.DirtyAllocations)
	require.Equal(t, 2, stats.ByRepo["/repo"])
	require.Equal(t, 2, stats.ByFeature["ftr_1"])
}

func TestStartAutoCleanupIsNoopWhenDisabled(t *testing.T) {
	cfg := testCfg(t)
	cfg.AutoCleanup = false
	m := New(cfg, gitcmd.NewFake(), nil, newFakeClock())
	cancel := m.StartAutoCleanup(context.Background(), time.Millisecond)
	cancel()
}
