package gitcmd

import (
	"fmt"
	"os"
	"sync"
)

// Fake is an in-memory Runner for tests: AddWorktree creates the directory
// on the real filesystem (so os.Stat-based checks in callers behave), and
// RemoveWorktree deletes it; branch existence and the branch checked out at
// each worktree path are tracked purely in memory.
type Fake struct {
	mu       sync.Mutex
	branches map[string]map[string]bool
	byPath   map[string]string
	dirty    map[string]bool

	// FailAdd, when set, is returned by AddWorktree for the given path.
	FailAdd map[string]error
}

// NewFake returns a ready-to-use Fake.
func NewFake() *Fake {
	return &Fake{
		branches: make(map[string]map[string]bool),
		byPath:   make(map[string]string),
		dirty:    make(map[string]bool),
		FailAdd:  make(map[string]error),
	}
}

func (f *Fake) SetDirty(worktreePath string, dirty bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirty[worktreePath] = dirty
}

func (f *Fake) AddWorktree(repoPath, worktreePath, branchName, baseBranch string) error {
	f.mu.Lock()
	if err := f.FailAdd[worktreePath]; err != nil {
		f.mu.Unlock()
		return err
	}
	if f.branches[repoPath] == nil {
		f.branches[repoPath] = make(map[string]bool)
	}
	f.branches[repoPath][branchName] = true
	f.byPath[worktreePath] = branchName
	f.mu.Unlock()

	return os.MkdirAll(worktreePath, 0o755)
}

func (f *Fake) RemoveWorktree(repoPath, worktreePath string, force bool) error {
	f.mu.Lock()
	dirty := f.dirty[worktreePath]
	f.mu.Unlock()
	if dirty && !force {
		return fmt.Errorf("worktree %s has uncommitted changes", worktreePath)
	}
	f.mu.Lock()
	delete(f.byPath, worktreePath)
	f.mu.Unlock()
	return os.RemoveAll(worktreePath)
}

// SetCurrentBranch overrides the branch CurrentBranch reports for
// worktreePath, simulating an out-of-band checkout inside the worktree.
func (f *Fake) SetCurrentBranch(worktreePath, branchName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byPath[worktreePath] = branchName
}

func (f *Fake) Prune(repoPath string) error { return nil }

func (f *Fake) List(repoPath string) ([]Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var infos []Info
	for branch := range f.branches[repoPath] {
		infos = append(infos, Info{Branch: branch})
	}
	return infos, nil
}

func (f *Fake) IsDirty(worktreePath string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirty[worktreePath], nil
}

func (f *Fake) BranchExists(repoPath, branchName string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.branches[repoPath][branchName], nil
}

func (f *Fake) CurrentBranch(worktreePath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	branch, ok := f.byPath[worktreePath]
	if !ok {
		return "", fmt.Errorf("no worktree tracked at %s", worktreePath)
	}
	return branch, nil
}

func (f *Fake) DeleteBranch(repoPath, branchName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.branches[repoPath], branchName)
	return nil
}

var _ Runner = (*Fake)(nil)
