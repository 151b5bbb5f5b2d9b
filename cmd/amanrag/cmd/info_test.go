package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/amanrag/internal/errors"
	"github.com/Aman-CERP/amanrag/internal/search"
)

func TestInfoCmd_JSON(t *testing.T) {
	dir := builtProject(t)

	stdout, _, err := execute(t, "--dir", dir, "info", "--json")
	require.NoError(t, err)

	var info indexInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, 4, info.Chunks)
	assert.True(t, info.Consistent)
	assert.Empty(t, info.Problems)
	assert.Equal(t, 4, info.Manifest.ChunkCount)
	assert.Equal(t, search.LexicalRerankerModel, info.Manifest.RerankModel)
	assert.NotEmpty(t, info.Manifest.IndexID)
}

func TestInfoCmd_Text(t *testing.T) {
	dir := builtProject(t)

	stdout, _, err := execute(t, "--dir", dir, "info")

	require.NoError(t, err)
	assert.Contains(t, stdout, "Index ID")
	assert.Contains(t, stdout, "All components consistent")
}

func TestInfoCmd_NoIndex(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, "--dir", t.TempDir(), "info")

	assert.ErrorIs(t, err, amerrors.ErrIndexNotReady)
}
