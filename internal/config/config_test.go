package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "aegis.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FillsDefaultsWhenFileIsEmptyObject(t *testing.T) {
	path := writeTempConfig(t, `{}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8765, cfg.API.Port)
	assert.Equal(t, 8766, cfg.Proxy.Port)
	assert.Equal(t, "allow", cfg.Proxy.WarnMode)
	assert.Equal(t, "allow", cfg.Rules.ProxyWarnMode)
	assert.Equal(t, 5, cfg.API.LoginRateLimit)
	assert.Equal(t, "closed", cfg.Browser.FailMode)
	assert.Equal(t, 900, cfg.Session.TTLSeconds)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Profiles.ForbidUnrestricted)
	assert.False(t, cfg.Registry.RemoteEnabled)
	assert.NotEmpty(t, cfg.Storage.DataDir)
}

func TestLoad_PreservesExplicitValues(t *testing.T) {
	path := writeTempConfig(t, `{
		"proxy": {"port": 9000, "warn_mode": "block"},
		"registry": {"remote_enabled": true, "remote_feed_url": "https://example.com/sites.json"},
		"profiles": {"forbid_unrestricted": true}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Proxy.Port)
	assert.Equal(t, "block", cfg.Proxy.WarnMode)
	assert.Equal(t, "block", cfg.Rules.ProxyWarnMode)
	assert.True(t, cfg.Registry.RemoteEnabled)
	assert.Equal(t, "https://example.com/sites.json", cfg.Registry.RemoteFeedURL)
	assert.True(t, cfg.Profiles.ForbidUnrestricted)
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
