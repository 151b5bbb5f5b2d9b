package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanrag/configs"
	"github.com/Aman-CERP/amanrag/internal/config"
)

func TestConfigInit_CreatesProjectConfig(t *testing.T) {
	// Given: a project without a config file
	isolate(t)
	dir := t.TempDir()

	// When: running config init
	stdout, _, err := execute(t, "--dir", dir, "config", "init")

	// Then: the project template is written
	require.NoError(t, err)
	assert.Contains(t, stdout, "Created configuration")
	data, err := os.ReadFile(filepath.Join(dir, config.ProjectConfigFile))
	require.NoError(t, err)
	assert.Equal(t, configs.ProjectConfigTemplate, string(data))
}

func TestConfigInit_User(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, "--dir", t.TempDir(), "config", "init", "--user")

	require.NoError(t, err)
	data, err := os.ReadFile(config.GetUserConfigPath())
	require.NoError(t, err)
	assert.Equal(t, configs.UserConfigTemplate, string(data))
}

func TestConfigInit_ExistingFile(t *testing.T) {
	// Given: an existing project config
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, config.ProjectConfigFile)
	require.NoError(t, os.WriteFile(path, []byte("search:\n  dense_k: 7\n"), 0o644))

	// When: running init without --force
	stdout, _, err := execute(t, "--dir", dir, "config", "init")

	// Then: the file is untouched
	require.NoError(t, err)
	assert.Contains(t, stdout, "already exists")
	data, _ := os.ReadFile(path)
	assert.Equal(t, "search:\n  dense_k: 7\n", string(data))

	// When: running init with --force
	stdout, _, err = execute(t, "--dir", dir, "config", "init", "--force")

	// Then: the file is replaced and the old one backed up
	require.NoError(t, err)
	assert.Contains(t, stdout, "Backup:")
	data, _ = os.ReadFile(path)
	assert.Equal(t, configs.ProjectConfigTemplate, string(data))

	backups, err := config.ListBackups(path)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	old, _ := os.ReadFile(backups[0])
	assert.Equal(t, "search:\n  dense_k: 7\n", string(old))
}

func TestConfigInit_WorksWithInvalidConfig(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ProjectConfigFile), []byte("bogus: 1\n"), 0o644))

	_, _, err := execute(t, "--dir", dir, "config", "init", "--force")

	assert.NoError(t, err)
}

func TestConfigShow_Sources(t *testing.T) {
	// Given: user and project configs plus an env override
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Dir(config.GetUserConfigPath()), 0o755))
	require.NoError(t, os.WriteFile(config.GetUserConfigPath(), []byte("search:\n  lexical_k: 60\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ProjectConfigFile), []byte("search:\n  dense_k: 11\n"), 0o644))
	t.Setenv("AMANRAG_SEARCH_DEFAULT_K", "4")

	tests := []struct {
		source   string
		lexicalK int
		denseK   int
		defaultK int
	}{
		{"merged", 60, 11, 4},
		{"user", 60, 25, 8},
		{"project", 40, 11, 8},
		{"defaults", 40, 25, 8},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			stdout, _, err := execute(t, "--dir", dir, "config", "show", "--json", "--source", tt.source)
			require.NoError(t, err)

			var cfg config.Config
			require.NoError(t, json.Unmarshal([]byte(stdout), &cfg))
			assert.Equal(t, tt.lexicalK, cfg.Search.LexicalK)
			assert.Equal(t, tt.denseK, cfg.Search.DenseK)
			assert.Equal(t, tt.defaultK, cfg.Search.DefaultK)
		})
	}
}

func TestConfigShow_YAML(t *testing.T) {
	isolate(t)

	stdout, _, err := execute(t, "--dir", t.TempDir(), "config", "show")

	require.NoError(t, err)
	assert.Contains(t, stdout, "Configuration source: merged")
	assert.Contains(t, stdout, "fusion_weight: 0.35")
}

func TestConfigShow_InvalidSource(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, "--dir", t.TempDir(), "config", "show", "--source", "nope")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid source")
}

func TestConfigPath(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	stdout, _, err := execute(t, "--dir", dir, "config", "path")

	require.NoError(t, err)
	assert.Contains(t, stdout, config.GetUserConfigPath())
	assert.Contains(t, stdout, filepath.Join(dir, config.ProjectConfigFile))
}
