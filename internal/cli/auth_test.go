package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-gateway/aegis/internal/config"
	"github.com/aegis-gateway/aegis/internal/logging"
	"github.com/aegis-gateway/aegis/internal/store"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestAuthSetPasswordCommand_CreatesAdminOnFirstRun(t *testing.T) {
	dir := t.TempDir()
	configPath = writeMinimalConfig(t, dir)

	old := readPassword
	readPassword = func(fd int) ([]byte, error) { return []byte("hunter22"), nil }
	defer func() { readPassword = old }()

	require.NoError(t, authSetPasswordCommand(nil, nil))

	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	st, err := store.Open(context.Background(), filepath.Join(cfg.Storage.DataDir, "aegis.db"), logging.Nop())
	require.NoError(t, err)
	defer st.Close()

	_, err = st.Authenticate(context.Background(), "admin", "hunter22")
	assert.NoError(t, err)
}

func TestAuthSetPasswordCommand_UpdatesExistingAdmin(t *testing.T) {
	dir := t.TempDir()
	configPath = writeMinimalConfig(t, dir)

	old := readPassword
	defer func() { readPassword = old }()

	readPassword = func(fd int) ([]byte, error) { return []byte("firstpass"), nil }
	require.NoError(t, authSetPasswordCommand(nil, nil))

	readPassword = func(fd int) ([]byte, error) { return []byte("secondpass"), nil }
	require.NoError(t, authSetPasswordCommand(nil, nil))

	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	st, err := store.Open(context.Background(), filepath.Join(cfg.Storage.DataDir, "aegis.db"), logging.Nop())
	require.NoError(t, err)
	defer st.Close()

	_, err = st.Authenticate(context.Background(), "admin", "firstpass")
	assert.Error(t, err)
	_, err = st.Authenticate(context.Background(), "admin", "secondpass")
	assert.NoError(t, err)
}

func writeMinimalConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "aegis.json")
	body := `{"storage":{"data_dir":"` + filepath.Join(dir, "data") + `"}}`
	writeFile(t, path, body)
	return path
}
