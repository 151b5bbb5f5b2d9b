// Package configs provides the embedded configuration templates written by
// `amanrag config init`.
//
// Templates are embedded at build time so they ship with every binary.
//
//   - project-config.example.yaml: written to .amanrag.yaml in the project dir
//   - user-config.example.yaml: written to ~/.config/amanrag/config.yaml
//
// Both parse as valid configuration: every setting is commented out, so a
// fresh file changes nothing until a key is uncommented.
package configs

import _ "embed"

// UserConfigTemplate is the template for machine-level configuration
// (embedder, reranker and logging).
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is the template for project-level configuration
// (index layout and retrieval parameters).
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
