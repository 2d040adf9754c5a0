package config

import "time"

const (
	// QueueFIFO dequeues pool waiters in insertion order.
	QueueFIFO = "fifo"
	// QueuePriority dequeues pool waiters by descending priority, ties
	// broken by insertion order.
	QueuePriority = "priority"
)

// PoolConfig parameterizes the Process Pool (C3).
type PoolConfig struct {
	MaxConcurrent int    `yaml:"max_concurrent"`
	QueueStrategy string `yaml:"queue_strategy"`
}

// InterventionConfig parameterizes the Intervention Handler (C4).
type InterventionConfig struct {
	DefaultTimeout     time.Duration `yaml:"default_timeout"`
	MaxPendingPerAgent int           `yaml:"max_pending_per_agent"`
	TimeoutsEnabled    bool          `yaml:"timeouts_enabled"`
}

// WorktreePoolConfig parameterizes the Worktree Manager (C5).
type WorktreePoolConfig struct {
	BaseDir        string        `yaml:"base_dir"`
	MaxPerRepo     int           `yaml:"max_per_repo"`
	StaleThreshold time.Duration `yaml:"stale_threshold"`
	AutoCleanup    bool          `yaml:"auto_cleanup"`
	// TreatDirtyAsBlocking resolves spec.md's open question on whether a
	// dirty allocation may be reclaimed by cleanupStale/allocate's
	// reclaim-oldest path. Default true: never silently discard
	// uncommitted work.
	TreatDirtyAsBlocking bool `yaml:"treat_dirty_as_blocking"`
}

// Config is the Effective Config produced by Load: the merged, validated
// record consumed read-only by C3, C4, C5, and the surrounding
// orchestrator.
type Config struct {
	ProjectName  string             `yaml:"project_name"`
	Pool         PoolConfig         `yaml:"pool"`
	Intervention InterventionConfig `yaml:"intervention"`
	Worktree     WorktreePoolConfig `yaml:"worktree"`
}

// Default returns the built-in base layer merging starts from.
func Default() *Config {
	return &Config{
		Pool: PoolConfig{
			MaxConcurrent: 4,
			QueueStrategy: QueueFIFO,
		},
		Intervention: InterventionConfig{
			DefaultTimeout:     5 * time.Minute,
			MaxPendingPerAgent: 10,
			TimeoutsEnabled:    true,
		},
		Worktree: WorktreePoolConfig{
			BaseDir:              defaultWorktreeBaseDir(),
			MaxPerRepo:           8,
			StaleThreshold:       24 * time.Hour,
			AutoCleanup:          true,
			TreatDirtyAsBlocking: true,
		},
	}
}
