package config

import (
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// overlayFile reads path (if present) as YAML and deep-merges it onto cfg
// with override semantics: maps merge key-wise, non-map values and
// sequences are replaced wholesale rather than concatenated. It reports
// whether the file existed and contributed.
func overlayFile(cfg *Config, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &SourceError{Path: path, Err: err}
	}

	// Decode onto a copy of cfg: keys the file omits keep their current
	// values, and keys it sets replace them even when the value is zero
	// (false, 0, "").
	layer := *cfg
	if err := yaml.Unmarshal(data, &layer); err != nil {
		return false, &SourceError{Path: path, Err: err}
	}

	if err := mergo.Merge(cfg, layer, mergo.WithOverride, mergo.WithOverwriteWithEmptyValue); err != nil {
		return false, &SourceError{Path: path, Err: err}
	}
	return true, nil
}
