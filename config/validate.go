package config

import "fmt"

// Validate checks a merged Config against the schema: types, enum
// membership, numeric ranges. It returns every offending path at once
// rather than stopping at the first.
func Validate(cfg *Config) error {
	var errs []FieldError

	if cfg.Pool.MaxConcurrent < 1 {
		errs = append(errs, FieldError{
			Path:   "pool.max_concurrent",
			Reason: fmt.Sprintf("must be >= 1, got %d", cfg.Pool.MaxConcurrent),
		})
	}
	switch cfg.Pool.QueueStrategy {
	case QueueFIFO, QueuePriority:
	default:
		errs = append(errs, FieldError{
			Path:   "pool.queue_strategy",
			Reason: fmt.Sprintf("must be %q or %q, got %q", QueueFIFO, QueuePriority, cfg.Pool.QueueStrategy),
		})
	}

	if cfg.Intervention.DefaultTimeout <= 0 {
		errs = append(errs, FieldError{
			Path:   "intervention.default_timeout",
			Reason: "must be positive",
		})
	}
	if cfg.Intervention.MaxPendingPerAgent < 1 {
		errs = append(errs, FieldError{
			Path:   "intervention.max_pending_per_agent",
			Reason: fmt.Sprintf("must be >= 1, got %d", cfg.Intervention.MaxPendingPerAgent),
		})
	}

	if cfg.Worktree.BaseDir == "" {
		errs = append(errs, FieldError{
			Path:   "worktree.base_dir",
			Reason: "must not be empty",
		})
	}
	if cfg.Worktree.MaxPerRepo < 1 {
		errs = append(errs, FieldError{
			Path:   "worktree.max_per_repo",
			Reason: fmt.Sprintf("must be >= 1, got %d", cfg.Worktree.MaxPerRepo),
		})
	}
	if cfg.Worktree.StaleThreshold <= 0 {
		errs = append(errs, FieldError{
			Path:   "worktree.stale_threshold",
			Reason: "must be positive",
		})
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}
