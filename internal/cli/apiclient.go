package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aegis-gateway/aegis/internal/config"
)

// apiClientTimeout bounds every aegisctl-to-Decision-API call; these
// are loopback calls, so this is generous rather than tight.
const apiClientTimeout = 5 * time.Second

func apiBaseURL(cfg *config.Config) string {
	host := cfg.API.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d/api", host, cfg.API.Port)
}

// apiPost issues an unauthenticated POST against the local Decision
// API's protection endpoints, which spec.md §4.9 does not gate behind
// a session (pause/resume/status are always loopback-reachable so a
// parent can act without first logging into the dashboard).
func apiPost(cfg *config.Config, path string, body interface{}) (*http.Response, error) {
	client := &http.Client{Timeout: apiClientTimeout}

	var reader = strings.NewReader("{}")
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = strings.NewReader(string(encoded))
	}

	resp, err := client.Post(apiBaseURL(cfg)+path, "application/json", reader)
	if err != nil {
		return nil, fmt.Errorf("aegisd unreachable at %s: %w", apiBaseURL(cfg), err)
	}
	return resp, nil
}

func apiGet(cfg *config.Config, path string) (*http.Response, error) {
	client := &http.Client{Timeout: apiClientTimeout}
	resp, err := client.Get(apiBaseURL(cfg) + path)
	if err != nil {
		return nil, fmt.Errorf("aegisd unreachable at %s: %w", apiBaseURL(cfg), err)
	}
	return resp, nil
}
