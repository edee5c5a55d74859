package proxy

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSynthesizeBlockResponse_BrowserGetsHTML(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://chat.openai.com/", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	status, contentType, body := synthesizeBlockResponse(req)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, contentType, "text/html")
	assert.Contains(t, string(body), "Blocked")
}

func TestSynthesizeBlockResponse_APICallerGetsJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "https://api.openai.com/v1/chat/completions", nil)
	req.Header.Set("Accept", "application/json")

	status, contentType, body := synthesizeBlockResponse(req)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "application/json", contentType)
	assert.Contains(t, string(body), `"error"`)
}

func TestSynthesizeBlockResponse_NoAcceptHeaderDefaultsToJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "https://api.anthropic.com/v1/messages", nil)

	_, contentType, _ := synthesizeBlockResponse(req)
	assert.Equal(t, "application/json", contentType)
}
