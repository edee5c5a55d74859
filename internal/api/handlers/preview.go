package handlers

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/aegis-gateway/aegis/internal/models"
)

// hashPreview and truncatePreview implement spec.md §3's "raw prompt
// text is never stored" contract for every Decision API path that
// writes an audit Event, mirroring internal/proxy's identical helpers
// for the MITM path.
func hashPreview(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

func truncatePreview(prompt string) string {
	if len(prompt) <= models.MaxPreviewLen {
		return prompt
	}
	return prompt[:models.MaxPreviewLen]
}
