package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aegis-gateway/aegis/internal/classifier"
	"github.com/aegis-gateway/aegis/internal/config"
	"github.com/aegis-gateway/aegis/internal/logging"
	"github.com/aegis-gateway/aegis/internal/models"
	"github.com/aegis-gateway/aegis/internal/profilemgr"
	"github.com/aegis-gateway/aegis/internal/rules"
	"github.com/aegis-gateway/aegis/internal/store"
)

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

// stubProfileSource lets tests control which profiles the Profile
// Manager sees without touching the store.
type stubProfileSource struct {
	profiles []models.Profile
}

func (s stubProfileSource) ListProfiles(context.Context) ([]models.Profile, error) {
	return s.profiles, nil
}

func testDeps(t *testing.T) *Deps {
	t.Helper()
	s, err := store.Open(context.Background(), ":memory:", logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	profiles := profilemgr.New(stubProfileSource{}, false, logging.Nop())
	require.NoError(t, profiles.Refresh(context.Background()))

	return &Deps{
		Store:      s,
		Profiles:   profiles,
		Classifier: classifier.New(nil, logging.Nop()),
		Engine:     rules.New(),
		Cfg:        &config.Config{},
		Log:        logging.Nop(),
	}
}
