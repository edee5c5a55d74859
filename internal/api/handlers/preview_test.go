package handlers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aegis-gateway/aegis/internal/models"
)

func TestHashPreview_IsDeterministicAndNeverRaw(t *testing.T) {
	h1 := hashPreview("my secret prompt")
	h2 := hashPreview("my secret prompt")
	assert.Equal(t, h1, h2)
	assert.NotContains(t, h1, "secret")
	assert.Len(t, h1, 64)
}

func TestTruncatePreview_LeavesShortPromptUntouched(t *testing.T) {
	assert.Equal(t, "short", truncatePreview("short"))
}

func TestTruncatePreview_CapsAtMaxPreviewLen(t *testing.T) {
	long := strings.Repeat("a", models.MaxPreviewLen+50)
	got := truncatePreview(long)
	assert.Len(t, got, models.MaxPreviewLen)
}
