package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoColorStyles_RenderUnchanged(t *testing.T) {
	styles := NoColorStyles()

	for _, s := range []string{"", "Chunk", "✓ Build complete"} {
		assert.Equal(t, s, styles.Header.Render(s))
		assert.Equal(t, s, styles.Error.Render(s))
		assert.Equal(t, s, styles.Label.Render(s))
	}
}

func TestDefaultStyles_HeaderIsBold(t *testing.T) {
	assert.True(t, DefaultStyles().Header.GetBold())
	assert.True(t, DefaultStyles().Active.GetBold())
	assert.False(t, DefaultStyles().Label.GetBold())
}

func TestGetStyles(t *testing.T) {
	assert.False(t, GetStyles(true).Header.GetBold())
	assert.True(t, GetStyles(false).Header.GetBold())
}
