package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// userConfigSubdir mirrors the teacher's GetConfigDir pattern of a single
// fixed subdirectory under the user's home.
const userConfigSubdir = "squadcore"

// UserConfigFileName is the YAML file name within the user config
// directory.
const UserConfigFileName = "config.yaml"

// ProjectConfigRelPath is the project config location relative to a
// project's root, per the persisted state layout.
const ProjectConfigRelPath = ".claude/squad.yaml"

// projectMarkers are the directory names that, when found in an ancestor,
// identify that ancestor as the project root. Grounded on
// session/vcs.findGitRepoRoot's upward walk for ".git", generalized with
// the tool's own ".claude" directory as a second marker.
var projectMarkers = []string{".git", ".claude"}

// GetUserConfigDir returns the directory where user-level config is
// stored, creating nothing — callers check existence themselves.
func GetUserConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config directory: %w", err)
	}
	return filepath.Join(home, "."+userConfigSubdir), nil
}

// UserConfigPath returns the fixed path to the user-level config file.
func UserConfigPath() (string, error) {
	dir, err := GetUserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, UserConfigFileName), nil
}

// ProjectConfigPath returns the fixed path to the project-level config
// file given a resolved project root.
func ProjectConfigPath(projectRoot string) string {
	return filepath.Join(projectRoot, ProjectConfigRelPath)
}

// FindProjectRoot walks upward from startDir looking for a marker
// directory. It returns the first ancestor (inclusive of startDir) that
// contains one, or startDir itself if none is found.
func FindProjectRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolve start directory: %w", err)
	}

	current := abs
	for {
		if hasMarker(current) {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return abs, nil
}

// defaultWorktreeBaseDir returns the default location for managed worktree
// directories: a per-user cache path, mirroring GetUserConfigDir's
// home-relative resolution.
func defaultWorktreeBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), userConfigSubdir, "worktrees")
	}
	return filepath.Join(home, "."+userConfigSubdir, "worktrees")
}

func hasMarker(dir string) bool {
	for _, marker := range projectMarkers {
		if info, err := os.Stat(filepath.Join(dir, marker)); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}
