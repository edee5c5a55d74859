package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-gateway/aegis/internal/logging"
	"github.com/aegis-gateway/aegis/internal/models"
	"github.com/aegis-gateway/aegis/internal/profilemgr"
)

// selfHarmBlockingDeps returns test deps whose current profile blocks
// self-harm matches at confidence 0.8 or above.
func selfHarmBlockingDeps(t *testing.T) *Deps {
	t.Helper()
	t.Setenv("USER", "kid")
	t.Setenv("USERNAME", "")

	deps := testDeps(t)
	kid := models.Profile{
		ID: "p1", Name: "Kid", OSUsername: "kid", Enabled: true, ProxyMode: models.ProxyEnabled,
		ContentRules: []models.ContentRule{
			{ID: "c1", Category: models.CategorySelfHarm, Action: models.ActionBlock, Threshold: 0.8, Enabled: true},
		},
	}
	deps.Profiles = profilemgr.New(stubProfileSource{profiles: []models.Profile{kid}}, false, logging.Nop())
	require.NoError(t, deps.Profiles.Refresh(context.Background()))
	return deps
}

func doCheck(t *testing.T, h *CheckHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/check", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func TestCheckHandler_BlocksSelfHarmPrompt(t *testing.T) {
	deps := selfHarmBlockingDeps(t)
	h := &CheckHandler{Deps: deps}

	rec := doCheck(t, h, `{"prompt":"i want to kill myself"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CheckResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, models.ActionBlock, resp.Action)
}

func TestCheckHandler_AllowsBenignPrompt(t *testing.T) {
	deps := testDeps(t)
	h := &CheckHandler{Deps: deps}

	rec := doCheck(t, h, `{"prompt":"what's the capital of France"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CheckResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, models.ActionAllow, resp.Action)
}

func TestCheckHandler_RejectsEmptyPrompt(t *testing.T) {
	deps := testDeps(t)
	h := &CheckHandler{Deps: deps}

	rec := doCheck(t, h, `{"prompt":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckHandler_RecordsAnEvent(t *testing.T) {
	deps := selfHarmBlockingDeps(t)
	h := &CheckHandler{Deps: deps}

	doCheck(t, h, `{"prompt":"i want to kill myself"}`)

	events, err := deps.Store.ListEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "browser", events[0].Source)
	assert.NotEmpty(t, events[0].PromptHash)
	assert.Equal(t, models.ActionBlock, events[0].Action)
}
