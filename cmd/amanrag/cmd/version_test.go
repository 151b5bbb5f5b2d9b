package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanrag/pkg/version"
)

func TestVersionCmd(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, out string)
	}{
		{
			name: "default",
			args: []string{"version"},
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "amanrag "+version.Version)
			},
		},
		{
			name: "short",
			args: []string{"version", "--short"},
			check: func(t *testing.T, out string) {
				assert.Equal(t, version.Version, strings.TrimSpace(out))
			},
		},
		{
			name: "json",
			args: []string{"version", "--json"},
			check: func(t *testing.T, out string) {
				var info version.BuildInfo
				require.NoError(t, json.Unmarshal([]byte(out), &info))
				assert.Equal(t, version.Version, info.Version)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)

			stdout, _, err := execute(t, tt.args...)

			require.NoError(t, err)
			tt.check(t, stdout)
		})
	}
}

func TestVersionCmd_IgnoresInvalidConfig(t *testing.T) {
	// Given: an environment override that fails validation
	isolate(t)
	t.Setenv("AMANRAG_SEARCH_FUSION_WEIGHT", "7")

	// When/Then: version still works
	_, _, err := execute(t, "version")
	assert.NoError(t, err)
}
