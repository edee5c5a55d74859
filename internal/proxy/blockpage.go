package proxy

import (
	"encoding/json"
	"net/http"
	"strings"
)

// blockMessage is the error text of the JSON block body sent to
// programmatic API callers; browser navigations get blockPageHTML
// instead.
const (
	blockMessage = "Request blocked by Aegis safety filter"
)

// synthesizeBlockResponse builds the 403 response body and content
// type for a blocked request, keyed off whether the original request
// looks like a browser page navigation (Accept: text/html) or an API
// call (anything else, notably application/json).
func synthesizeBlockResponse(req *http.Request) (status int, contentType string, body []byte) {
	if isBrowserNavigation(req) {
		return http.StatusForbidden, "text/html; charset=utf-8", []byte(blockPageHTML)
	}

	payload, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{Error: blockMessage})
	return http.StatusForbidden, "application/json", payload
}

func isBrowserNavigation(req *http.Request) bool {
	accept := req.Header.Get("Accept")
	return strings.Contains(accept, "text/html")
}

const blockPageHTML = `<!DOCTYPE html>
<html>
<head><title>Blocked</title></head>
<body>
<h1>Request blocked by Aegis safety filter</h1>
<p>This request was blocked by a parental safety rule.</p>
</body>
</html>`

// streamBlockSentinel is the chunk injected in place of the remaining
// response when a streaming check trips Block, per spec.md §4.8.
var streamBlockSentinel = []byte("data: {\"error\":\"Response blocked by Aegis safety filter\"}\n\n")
