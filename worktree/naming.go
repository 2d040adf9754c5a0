package worktree

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"text/template"
)

// pathPattern is the fixed worktree-path template: baseDir / <short repo
// hash> / <unique id>, per §4.5. Grounded on worktree_pattern.go's
// text/template-based parseWorktreePattern, generalized from the teacher's
// user-configurable {repo_root}/{repo_name}/... variables down to the two
// variables this spec's fixed scheme calls for.
var pathPattern = template.Must(template.New("worktree-path").Parse("{{.BaseDir}}/{{.RepoHash}}/{{.ID}}"))

type pathVars struct {
	BaseDir  string
	RepoHash string
	ID       string
}

// worktreePath renders baseDir/<repo hash>/<id> through pathPattern.
func worktreePath(baseDir, repoPath, id string) string {
	var b strings.Builder
	// Template execution against a fixed, compile-time-checked pattern
	// cannot fail; ignoring the error matches parseWorktreePattern's own
	// fallback-on-error posture without needing a fallback path here.
	_ = pathPattern.Execute(&b, pathVars{BaseDir: baseDir, RepoHash: shortRepoHash(repoPath), ID: id})
	return b.String()
}

// shortRepoHash returns a short, filesystem-safe hash of repoPath used to
// group a repo's worktrees under one subdirectory. crypto/sha256 is
// stdlib: no pack dependency offers repo-path hashing, and the teacher
// itself never reaches for a hashing library for this class of problem, so
// there is nothing to wire here beyond the standard library (see
// DESIGN.md).
func shortRepoHash(repoPath string) string {
	sum := sha256.Sum256([]byte(repoPath))
	return hex.EncodeToString(sum[:])[:12]
}

var idSuffixPattern = regexp.MustCompile(`[^a-z0-9]+`)

// defaultBranchName derives agent/<suffix>, feature/<suffix>, or
// tmp/<suffix> from whichever of agentID/featureID/id is available, per
// §4.5. Sanitization is grounded on session/vcs.SanitizeBranchName
// (lowercase, safe-character allow-list, dash collapsing).
func defaultBranchName(agentID, featureID, id string) string {
	switch {
	case agentID != "":
		return "agent/" + sanitizeSuffix(agentID)
	case featureID != "":
		return "feature/" + sanitizeSuffix(featureID)
	default:
		return "tmp/" + sanitizeSuffix(id)
	}
}

func sanitizeSuffix(s string) string {
	s = strings.ToLower(s)
	s = idSuffixPattern.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 40 {
		s = s[len(s)-40:]
	}
	return s
}
