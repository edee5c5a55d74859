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

func testDepsWithProfile(t *testing.T) (*Deps, models.Profile) {
	t.Setenv("USER", "kid")
	t.Setenv("USERNAME", "")

	deps := testDeps(t)
	profile := models.Profile{ID: "p1", Name: "Kid", OSUsername: "kid", Enabled: true, ProxyMode: models.ProxyEnabled}
	require.NoError(t, deps.Store.PutProfile(context.Background(), profile))

	deps.Profiles = profilemgr.New(deps.Store, false, logging.Nop())
	require.NoError(t, deps.Profiles.Refresh(context.Background()))
	return deps, profile
}

func TestRulesHandler_GetReturnsCurrentProfileRules(t *testing.T) {
	deps, _ := testDepsWithProfile(t)
	h := &RulesHandler{Deps: deps}

	req := httptest.NewRequest(http.MethodGet, "/api/rules", nil)
	rec := httptest.NewRecorder()
	h.HandleGet(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body RulesBody
	decodeJSON(t, rec, &body)
	assert.Empty(t, body.ContentRules)
}

func TestRulesHandler_PutPersistsNewContentRule(t *testing.T) {
	deps, profile := testDepsWithProfile(t)
	h := &RulesHandler{Deps: deps}

	req := httptest.NewRequest(http.MethodPut, "/api/rules", strings.NewReader(`{
		"content_rules": [{"category":"violence","action":"Block","threshold":0.5,"enabled":true}],
		"time_rules": [],
		"nsfw_threshold": 0.8
	}`))
	rec := httptest.NewRecorder()
	h.HandlePut(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	saved, err := deps.Store.GetProfile(context.Background(), profile.ID)
	require.NoError(t, err)
	require.Len(t, saved.ContentRules, 1)
	assert.Equal(t, models.CategoryViolence, saved.ContentRules[0].Category)
	assert.NotEmpty(t, saved.ContentRules[0].ID)
}

func TestRulesHandler_PutRejectsUnknownCategory(t *testing.T) {
	deps, _ := testDepsWithProfile(t)
	h := &RulesHandler{Deps: deps}

	req := httptest.NewRequest(http.MethodPut, "/api/rules", strings.NewReader(`{
		"content_rules": [{"category":"not_a_category","action":"Block","threshold":0.5,"enabled":true}]
	}`))
	rec := httptest.NewRecorder()
	h.HandlePut(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRulesHandler_PutRejectsWhenNoProfileIsActive(t *testing.T) {
	deps := testDeps(t)
	h := &RulesHandler{Deps: deps}

	req := httptest.NewRequest(http.MethodPut, "/api/rules", strings.NewReader(`{"content_rules":[]}`))
	rec := httptest.NewRecorder()
	h.HandlePut(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}
