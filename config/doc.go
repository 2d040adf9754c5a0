// Package config implements the core's configuration loader (C2): a
// one-shot merge of built-in defaults, a user-level YAML file, a
// project-level YAML file, and environment variable overrides, producing a
// validated Effective Config plus a diagnostic trail of which layers
// contributed.
//
// Loading is grounded on the teacher's config.LoadConfig/DefaultConfig
// shape (GetConfigDir under the user's home directory, create-on-first-use
// semantics) and on ollama/config.go's environment-variable overlay
// pattern, generalized from a fixed set of OLLAMA_* variables to this
// package's SQUAD_* set. Deep-merge uses dario.cat/mergo with override
// semantics, and files are parsed with gopkg.in/yaml.v3.
package config
