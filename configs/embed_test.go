package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanrag/internal/config"
)

func TestTemplates_LoadAsDefaults(t *testing.T) {
	tests := []struct {
		name     string
		template string
	}{
		{"project", ProjectConfigTemplate},
		{"user", UserConfigTemplate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a project whose config file is the untouched template
			dir := t.TempDir()
			t.Setenv("XDG_CONFIG_HOME", t.TempDir())
			require.NotEmpty(t, tt.template)
			require.NoError(t, os.WriteFile(filepath.Join(dir, config.ProjectConfigFile), []byte(tt.template), 0o644))

			// When: loading the configuration
			cfg, err := config.Load(dir)

			// Then: it parses and yields the defaults
			require.NoError(t, err)
			assert.Equal(t, config.NewConfig(), cfg)
		})
	}
}
