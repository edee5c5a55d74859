package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadRemote_DisabledByDefault(t *testing.T) {
	_, err := LoadRemote(false, "")
	assert.ErrorIs(t, err, ErrRemoteDisabled)
}

func TestLoadRemote_EnabledWithoutURL(t *testing.T) {
	_, err := LoadRemote(true, "")
	assert.ErrorIs(t, err, ErrRemoteUnconfigured)
}
