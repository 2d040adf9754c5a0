package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix is the fixed prefix all environment variables consumed by C2
// carry.
const EnvPrefix = "SQUAD_"

// Environment variable names. Grounded on ollama/config.go's
// EnvOllama*-style enumeration: each field this loader overlays gets one
// fixed, documented variable name rather than a generically-parsed
// recursive dotted path (see DESIGN.md for why the generic form the
// distilled spec gestures at is under-specified and this enumerated form
// is the idiomatic equivalent already used in this codebase).
const (
	EnvProjectName            = EnvPrefix + "PROJECT_NAME"
	EnvPoolMaxConcurrent      = EnvPrefix + "POOL_MAX_CONCURRENT"
	EnvPoolQueueStrategy      = EnvPrefix + "POOL_QUEUE_STRATEGY"
	EnvInterventionTimeoutMS  = EnvPrefix + "INTERVENTION_DEFAULT_TIMEOUT_MS"
	EnvInterventionMaxPending = EnvPrefix + "INTERVENTION_MAX_PENDING_PER_AGENT"
	EnvInterventionTimeoutsOn = EnvPrefix + "INTERVENTION_TIMEOUTS_ENABLED"
	EnvWorktreeBaseDir        = EnvPrefix + "WORKTREE_BASE_DIR"
	EnvWorktreeMaxPerRepo     = EnvPrefix + "WORKTREE_MAX_PER_REPO"
	EnvWorktreeStaleThreshold = EnvPrefix + "WORKTREE_STALE_THRESHOLD_MS"
	EnvWorktreeAutoCleanup    = EnvPrefix + "WORKTREE_AUTO_CLEANUP"
	EnvWorktreeDirtyBlocking  = EnvPrefix + "WORKTREE_TREAT_DIRTY_AS_BLOCKING"
)

// typedValue parses raw as bool, then integer, then comma-list, then
// falls back to the raw string, in that priority order, matching the
// spec's overlay semantics.
func typedValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	switch strings.ToLower(trimmed) {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.Atoi(trimmed); err == nil {
		return i
	}
	if strings.Contains(trimmed, ",") {
		parts := strings.Split(trimmed, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return trimmed
}

// lookupEnv is a package-level indirection so tests can inject a fake
// environment instead of mutating the real process environment.
var lookupEnv = os.LookupEnv

// applyEnvOverlay overlays environment variables onto cfg, returning the
// names of every variable that was applied (for sources[] diagnostics).
func applyEnvOverlay(cfg *Config) []string {
	var applied []string

	if v, ok := lookupEnv(EnvProjectName); ok {
		if s, isStr := typedValue(v).(string); isStr && s != "" {
			cfg.ProjectName = s
			applied = append(applied, EnvProjectName)
		}
	}
	if v, ok := lookupEnv(EnvPoolMaxConcurrent); ok {
		if n, isInt := typedValue(v).(int); isInt {
			cfg.Pool.MaxConcurrent = n
			applied = append(applied, EnvPoolMaxConcurrent)
		}
	}
	if v, ok := lookupEnv(EnvPoolQueueStrategy); ok {
		if s, isStr := typedValue(v).(string); isStr && s != "" {
			cfg.Pool.QueueStrategy = strings.ToLower(s)
			applied = append(applied, EnvPoolQueueStrategy)
		}
	}
	if v, ok := lookupEnv(EnvInterventionTimeoutMS); ok {
		if n, isInt := typedValue(v).(int); isInt {
			cfg.Intervention.DefaultTimeout = time.Duration(n) * time.Millisecond
			applied = append(applied, EnvInterventionTimeoutMS)
		}
	}
	if v, ok := lookupEnv(EnvInterventionMaxPending); ok {
		if n, isInt := typedValue(v).(int); isInt {
			cfg.Intervention.MaxPendingPerAgent = n
			applied = append(applied, EnvInterventionMaxPending)
		}
	}
	if v, ok := lookupEnv(EnvInterventionTimeoutsOn); ok {
		if b, isBool := typedValue(v).(bool); isBool {
			cfg.Intervention.TimeoutsEnabled = b
			applied = append(applied, EnvInterventionTimeoutsOn)
		}
	}
	if v, ok := lookupEnv(EnvWorktreeBaseDir); ok {
		if s, isStr := typedValue(v).(string); isStr && s != "" {
			cfg.Worktree.BaseDir = s
			applied = append(applied, EnvWorktreeBaseDir)
		}
	}
	if v, ok := lookupEnv(EnvWorktreeMaxPerRepo); ok {
		if n, isInt := typedValue(v).(int); isInt {
			cfg.Worktree.MaxPerRepo = n
			applied = append(applied, EnvWorktreeMaxPerRepo)
		}
	}
	if v, ok := lookupEnv(EnvWorktreeStaleThreshold); ok {
		if n, isInt := typedValue(v).(int); isInt {
			cfg.Worktree.StaleThreshold = time.Duration(n) * time.Millisecond
			applied = append(applied, EnvWorktreeStaleThreshold)
		}
	}
	if v, ok := lookupEnv(EnvWorktreeAutoCleanup); ok {
		if b, isBool := typedValue(v).(bool); isBool {
			cfg.Worktree.AutoCleanup = b
			applied = append(applied, EnvWorktreeAutoCleanup)
		}
	}
	if v, ok := lookupEnv(EnvWorktreeDirtyBlocking); ok {
		if b, isBool := typedValue(v).(bool); isBool {
			cfg.Worktree.TreatDirtyAsBlocking = b
			applied = append(applied, EnvWorktreeDirtyBlocking)
		}
	}

	return applied
}
