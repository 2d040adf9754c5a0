// Package gitcmd implements the "git primitive" external collaborator that
// the Worktree Manager (C5) calls but does not own the policy of: create a
// worktree on a new or existing branch, remove one, list the ones that
// exist, prune stale administrative entries, and report whether a worktree
// has uncommitted changes.
//
// Grounded on the teacher's session/git package, which mixes go-git (for
// branch/ref introspection that doesn't require shelling out) with direct
// `git` subprocess calls for the worktree porcelain commands go-git itself
// does not implement (worktree add/remove/prune) — the exact hybrid used
// here.
package gitcmd

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Info describes one worktree as reported by `git worktree list --porcelain`.
type Info struct {
	Path   string
	Branch string
}

// Runner is the git primitive the Worktree Manager calls. A real
// implementation shells out to the git binary (via exec.Command) and to
// go-git for ref inspection; tests substitute a fake.
type Runner interface {
	// AddWorktree creates repoPath's worktree at worktreePath on
	// branchName. If branchName does not yet exist, it is created from
	// baseBranch (or HEAD if baseBranch is empty); if it already exists,
	// the existing branch is checked out instead.
	AddWorktree(repoPath, worktreePath, branchName, baseBranch string) error
	// RemoveWorktree removes worktreePath. If force is false and the
	// worktree has uncommitted changes, git refuses and the error is
	// returned verbatim (gitFailure).
	RemoveWorktree(repoPath, worktreePath string, force bool) error
	// Prune removes stale worktree administrative entries.
	Prune(repoPath string) error
	// List returns every worktree git currently tracks for repoPath.
	List(repoPath string) ([]Info, error)
	// IsDirty reports whether worktreePath has uncommitted changes.
	IsDirty(worktreePath string) (bool, error)
	// BranchExists reports whether branchName exists in repoPath.
	BranchExists(repoPath, branchName string) (bool, error)
	// CurrentBranch returns the branch checked out at worktreePath.
	CurrentBranch(worktreePath string) (string, error)
	// DeleteBranch removes branchName from repoPath. Used when a released
	// allocation's caller did not ask to keep the branch.
	DeleteBranch(repoPath, branchName string) error
}

// Exec is the production Runner, grounded on
// session/git.GitWorktree.{Setup,SetupNewWorktree,SetupFromExistingBranch,
// Cleanup,Remove,Prune,IsDirty} and session/vcs.findGitRepoRoot/IsGitRepo.
type Exec struct{}

// GitFailure wraps a non-zero git subprocess exit, preserving its exit code
// and combined stdout/stderr verbatim per the spec's gitFailure error kind.
type GitFailure struct {
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *GitFailure) Error() string {
	return fmt.Sprintf("git %s: exit %d: %s", strings.Join(e.Args, " "), e.ExitCode, e.Output)
}

func (e *GitFailure) Unwrap() error { return e.Err }

func run(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		exitCode := -1
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		return string(out), &GitFailure{Args: args, ExitCode: exitCode, Output: string(out), Err: err}
	}
	return string(out), nil
}

func (Exec) AddWorktree(repoPath, worktreePath, branchName, baseBranch string) error {
	exists, err := (Exec{}).BranchExists(repoPath, branchName)
	if err != nil {
		return err
	}
	if exists {
		_, err := run(repoPath, "worktree", "add", worktreePath, branchName)
		return err
	}

	start := baseBranch
	if start == "" {
		start = "HEAD"
	}
	_, err = run(repoPath, "worktree", "add", "-b", branchName, worktreePath, start)
	return err
}

func (Exec) RemoveWorktree(repoPath, worktreePath string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, worktreePath)
	_, err := run(repoPath, args...)
	return err
}

func (Exec) Prune(repoPath string) error {
	_, err := run(repoPath, "worktree", "prune")
	return err
}

func (Exec) List(repoPath string) ([]Info, error) {
	out, err := run(repoPath, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parsePorcelain(out), nil
}

func (Exec) IsDirty(worktreePath string) (bool, error) {
	out, err := run(worktreePath, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

func (Exec) BranchExists(repoPath, branchName string) (bool, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return false, fmt.Errorf("open repository %s: %w", repoPath, err)
	}
	_, err = repo.Reference(plumbing.NewBranchReferenceName(branchName), false)
	if err == nil {
		return true, nil
	}
	if err == plumbing.ErrReferenceNotFound {
		return false, nil
	}
	return false, fmt.Errorf("check branch %s: %w", branchName, err)
}

func (Exec) CurrentBranch(worktreePath string) (string, error) {
	out, err := run(worktreePath, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (Exec) DeleteBranch(repoPath, branchName string) error {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return fmt.Errorf("open repository %s: %w", repoPath, err)
	}
	if err := repo.Storer.RemoveReference(plumbing.NewBranchReferenceName(branchName)); err != nil && err != plumbing.ErrReferenceNotFound {
		return fmt.Errorf("delete branch %s: %w", branchName, err)
	}
	return nil
}

func parsePorcelain(output string) []Info {
	var infos []Info
	var cur Info
	for _, line := range strings.Split(output, "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			if cur.Path != "" {
				infos = append(infos, cur)
			}
			cur = Info{Path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "branch "):
			cur.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		}
	}
	if cur.Path != "" {
		infos = append(infos, cur)
	}
	return infos
}
