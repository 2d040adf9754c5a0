package config

import "path/filepath"

// Load runs the C2 procedure: locate the project root, merge built-in
// defaults with the user config, the project config, and environment
// overrides, derive projectName if still absent, and validate the
// result.
//
// It never falls back silently on a parse failure or schema violation —
// both are returned as errors (sourceUnreadable / configInvalid per the
// error taxonomy) and are fatal to startup, matching the teacher's own
// config.LoadConfig only falling back to defaults on a missing file, never
// on a corrupt one silently succeeding.
func Load(startDir string) (*Config, []string, string, error) {
	projectPath, err := FindProjectRoot(startDir)
	if err != nil {
		return nil, nil, "", err
	}

	cfg := Default()
	var sources []string

	userPath, err := UserConfigPath()
	if err != nil {
		return nil, nil, "", err
	}
	if ok, err := overlayFile(cfg, userPath); err != nil {
		return nil, nil, "", err
	} else if ok {
		sources = append(sources, userPath)
	}

	projectConfigPath := ProjectConfigPath(projectPath)
	if ok, err := overlayFile(cfg, projectConfigPath); err != nil {
		return nil, nil, "", err
	} else if ok {
		sources = append(sources, projectConfigPath)
	}

	if applied := applyEnvOverlay(cfg); len(applied) > 0 {
		sources = append(sources, applied...)
	}

	if cfg.ProjectName == "" {
		cfg.ProjectName = filepath.Base(projectPath)
	}

	if err := Validate(cfg); err != nil {
		return nil, nil, "", err
	}

	return cfg, sources, projectPath, nil
}
