// Package proxy implements the MITM Proxy (C8): a loopback CONNECT
// proxy that splices traffic for hosts the Site Registry doesn't
// recognize, and terminates TLS with a CA-minted leaf for hosts it
// does, running the request/response through the classifier and rule
// engine before forwarding or blocking.
//
// The CONNECT/splice/terminate shape is grounded on the pack's own
// TLS-intercepting proxy (secdev02-TLSDebug's tlsproxy.go): read the
// CONNECT line off a raw net.Conn, answer "200 Connection
// Established", then either tls.Server the client connection with a
// minted leaf or splice the raw bytes untouched.
package proxy

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aegis-gateway/aegis/internal/ca"
	"github.com/aegis-gateway/aegis/internal/classifier"
	"github.com/aegis-gateway/aegis/internal/extractor"
	"github.com/aegis-gateway/aegis/internal/logging"
	"github.com/aegis-gateway/aegis/internal/models"
	"github.com/aegis-gateway/aegis/internal/profilemgr"
	"github.com/aegis-gateway/aegis/internal/registry"
	"github.com/aegis-gateway/aegis/internal/rules"
)

// DefaultAddr is the loopback listen address from spec.md §4.8.
const DefaultAddr = "127.0.0.1:8766"

// ConnectTimeout bounds how long CONNECT handling and the upstream
// dial may take before the client is dropped.
const ConnectTimeout = 10 * time.Second

// EventSink is the narrow store dependency the proxy writes decisions
// to. It is never read from the connection hot path.
type EventSink interface {
	AppendEvent(ctx context.Context, e models.Event) (int64, error)
	AppendFlaggedEvent(ctx context.Context, e models.FlaggedEvent) error
}

// Server is the MITM proxy. One Server handles every loopback CONNECT
// tunnel for the machine; per-connection state lives only in
// handleConnect's stack.
type Server struct {
	Addr string

	CA         *ca.Authority
	Registry   *registry.Registry
	Extractor  *extractor.Registry
	Classifier *classifier.Pipeline
	Engine     *rules.Engine
	Profiles   *profilemgr.Manager
	State      *StateCache
	Events     EventSink
	Log        logging.Logger

	// WarnMode controls whether a Warn verdict on the proxy path is
	// treated as Allow or Block, per spec.md §9's Open Question #1.
	WarnMode rules.ProxyWarnMode

	upstreamDialer net.Dialer
	listener       net.Listener
}

// New builds a Server. Every field above should be set before
// ListenAndServe is called; zero-value WarnMode defaults to
// rules.WarnAsAllow.
func New() *Server {
	return &Server{Addr: DefaultAddr, WarnMode: rules.WarnAsAllow}
}

// ListenAndServe opens the loopback listener and accepts CONNECT
// tunnels until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("proxy: listen %s: %w", s.Addr, err)
	}
	s.listener = ln
	s.Log.Info(ctx, "mitm proxy listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("proxy: accept: %w", err)
		}
		go s.handleConnection(ctx, conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handleConnection(ctx context.Context, clientConn net.Conn) {
	defer clientConn.Close()

	reader := bufio.NewReader(clientConn)
	req, err := http.ReadRequest(reader)
	if err != nil {
		return
	}

	if req.Method != http.MethodConnect {
		// The extension and the OS trust store both point browsers at
		// this proxy only for CONNECT tunnels; a stray plain request
		// gets a 400 rather than being silently forwarded.
		clientConn.Write([]byte("HTTP/1.1 400 Bad Request\r\n\r\n"))
		return
	}

	host := req.Host
	if !strings.Contains(host, ":") {
		host = host + ":443"
	}
	sni := stripPort(host)

	if _, err := clientConn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		return
	}

	state, seq := s.State.Snapshot()

	entry, known := s.Registry.Lookup(sni, seq)
	if !known || !state.IsFiltering(time.Now()) {
		s.splice(ctx, clientConn, host)
		return
	}

	s.terminate(ctx, clientConn, sni, entry)
}

func stripPort(hostport string) string {
	if i := strings.LastIndex(hostport, ":"); i != -1 {
		return hostport[:i]
	}
	return hostport
}

// splice forwards raw bytes between the client and the real upstream
// with no TLS termination, per spec.md §4.8's registry-miss path:
// traffic Aegis doesn't recognize is never decrypted.
func (s *Server) splice(ctx context.Context, clientConn net.Conn, hostport string) {
	dialCtx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	upstream, err := s.upstreamDialer.DialContext(dialCtx, "tcp", hostport)
	cancel()
	if err != nil {
		s.Log.Warn(ctx, "proxy: upstream dial failed", "host", hostport, "error", err)
		return
	}
	defer upstream.Close()

	done := make(chan struct{}, 2)
	go func() { io.Copy(upstream, clientConn); done <- struct{}{} }()
	go func() { io.Copy(clientConn, upstream); done <- struct{}{} }()
	<-done
}

// terminate decrypts the tunnel with a CA-minted leaf for sni and
// runs every HTTP exchange inside it through the decision pipeline.
func (s *Server) terminate(ctx context.Context, clientConn net.Conn, sni string, entry models.SiteEntry) {
	leaf, err := s.CA.LeafFor(sni)
	if err != nil {
		s.Log.Error(ctx, "proxy: leaf mint failed", "host", sni, "error", err)
		return
	}

	tlsConn := tls.Server(clientConn, &tls.Config{
		Certificates: []tls.Certificate{leaf},
		MinVersion:   tls.VersionTLS12,
	})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		// Non-TLS data on the tunnel, or a client that declines the
		// CA: not loggable as a decision, just a dead connection.
		return
	}
	defer tlsConn.Close()

	reader := bufio.NewReader(tlsConn)
	for {
		req, err := http.ReadRequest(reader)
		if err != nil {
			return
		}
		req.URL.Scheme = "https"
		req.URL.Host = sni

		if !s.serveOne(ctx, tlsConn, req, sni, entry) {
			return
		}
	}
}

// serveOne runs one request through the pipeline and writes a
// response to client. It returns false when the connection should
// close (connection: close, or an unrecoverable forwarding error).
func (s *Server) serveOne(ctx context.Context, client io.Writer, req *http.Request, sni string, entry models.SiteEntry) bool {
	body, truncated := readCappedBody(req.Body, extractor.MaxBodyBytes)
	req.Body.Close()

	profile := s.Profiles.Current()
	verdict, prompt := s.evaluateRequest(ctx, req, body, truncated, sni, entry, profile)

	if verdict.Action == models.ActionBlock {
		s.recordDecision(ctx, profile, sni, verdict, prompt)
		return writeBlockResponse(client, req)
	}

	upstreamReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), newBodyReader(body))
	if err != nil {
		return false
	}
	upstreamReq.Header = req.Header.Clone()
	upstreamReq.Host = sni

	resp, err := s.forward(upstreamReq)
	if err != nil {
		s.Log.Warn(ctx, "proxy: upstream request failed", "host", sni, "error", err)
		writeErrorResponse(client, http.StatusBadGateway)
		return false
	}
	defer resp.Body.Close()

	s.recordDecision(ctx, profile, sni, verdict, prompt)
	return s.relayResponse(ctx, client, req, resp, profile)
}

func (s *Server) forward(req *http.Request) (*http.Response, error) {
	transport := &http.Transport{
		DialContext:         s.upstreamDialer.DialContext,
		TLSHandshakeTimeout: ConnectTimeout,
	}
	client := &http.Client{Transport: transport}
	return client.Do(req)
}

// evaluateRequest runs the extract -> classify -> evaluate chain for
// one request body. A Warn verdict is folded to Allow or Block per
// s.WarnMode, since the proxy path has no UI surface to show a
// soft warning in. It returns the verdict alongside the prompt text
// that produced it, so the caller can record a preview without
// re-deriving it from the raw (non-prompt) request body.
func (s *Server) evaluateRequest(ctx context.Context, req *http.Request, body []byte, truncated bool, host string, entry models.SiteEntry, profile models.Profile) (models.Verdict, string) {
	noneVerdict := models.Verdict{Action: models.ActionAllow, Source: models.VerdictSource{Kind: models.SourceNone}}
	if profile.ProxyMode != models.ProxyEnabled {
		noneVerdict.Reason = "profile_proxy_mode"
		return noneVerdict, ""
	}

	overall := noneVerdict
	if entry.Category == models.SiteImageGen {
		overall = s.evaluateImage(ctx, body, profile)
	}

	extraction := s.Extractor.Extract(extractor.Request{
		Body:        body,
		ContentType: req.Header.Get("Content-Type"),
		Host:        host,
		Method:      req.Method,
		ParserHint:  entry.ParserID,
		Truncated:   truncated,
	})
	if extraction.Kind == models.ExtractionNone || extraction.Kind == models.ExtractionError || len(extraction.Prompts) == 0 {
		if overall.Action == models.ActionAllow {
			overall.Reason = "no_prompt_extracted"
		}
		return overall, ""
	}

	var strongestText models.Verdict
	var strongestPrompt string
	for i, prompt := range extraction.Prompts {
		classification := s.Classifier.Classify(ctx, prompt.Text)
		s.recordFlags(ctx, profile, classification, prompt.Text)
		v := s.Engine.Evaluate(classification, time.Now(), profile, snapshotProtection(s.State))
		if v.Action == models.ActionWarn && s.WarnMode == rules.WarnAsAllow {
			v.Action = models.ActionAllow
		} else if v.Action == models.ActionWarn && s.WarnMode == rules.WarnAsBlock {
			v.Action = models.ActionBlock
		}
		if i == 0 || v.Action.Rank() > strongestText.Action.Rank() {
			strongestText = v
			strongestPrompt = prompt.Text
		}
	}

	if strongestText.Action.Rank() > overall.Action.Rank() {
		overall = strongestText
	}
	return overall, strongestPrompt
}

// evaluateImage runs the optional image sub-classifier against a raw
// request body on an image_gen site, per spec.md §4.4. Returns an
// Allow verdict whenever no image model is loaded, the same silent
// skip the text pipeline uses for an absent Tier-2 model.
func (s *Server) evaluateImage(ctx context.Context, body []byte, profile models.Profile) models.Verdict {
	score, available, err := s.Classifier.ClassifyImage(ctx, body)
	if !available {
		return models.Verdict{Action: models.ActionAllow, Source: models.VerdictSource{Kind: models.SourceNone}}
	}
	if err != nil {
		s.Log.Warn(ctx, "proxy: image classifier failed, allowing", "error", err)
		return models.Verdict{Action: models.ActionAllow, Source: models.VerdictSource{Kind: models.SourceNone}}
	}
	return s.Engine.EvaluateImage(score, time.Now(), profile, snapshotProtection(s.State))
}

func snapshotProtection(c *StateCache) models.ProtectionState {
	state, _ := c.Snapshot()
	return state
}

// recordDecision appends an audit event for a checked request. Traffic
// with no extracted prompt (static assets, non-LLM API calls on a
// registered host) arrives with an empty prompt and is not recorded,
// so the event log reflects what was actually filtered.
func (s *Server) recordDecision(ctx context.Context, profile models.Profile, host string, verdict models.Verdict, prompt string) {
	if s.Events == nil || prompt == "" {
		return
	}
	categories := make([]models.Category, 0, len(verdict.MatchedCategories))
	for _, m := range verdict.MatchedCategories {
		categories = append(categories, m.Category)
	}
	_, err := s.Events.AppendEvent(ctx, models.Event{
		Timestamp:     time.Now(),
		ProfileID:     profile.ID,
		Source:        host,
		Action:        verdict.Action,
		Categories:    categories,
		PromptHash:    hashPreview([]byte(prompt)),
		PromptPreview: truncatePreview([]byte(prompt)),
	})
	if err != nil {
		s.Log.Error(ctx, "proxy: failed to record decision", "error", err)
	}
}

// recordFlags persists every Tier-3 flag on a classification to the
// flagged_events table, mirroring the browser interceptor's
// CheckHandler.recordFlags so a flag raised by MITM-proxied traffic
// gets the same parental-review visibility as one raised by /api/check.
func (s *Server) recordFlags(ctx context.Context, profile models.Profile, c models.Classification, prompt string) {
	if s.Events == nil {
		return
	}
	for _, flag := range c.Flags {
		f := models.FlaggedEvent{
			Timestamp:     time.Now(),
			ProfileID:     profile.ID,
			Kind:          flag.Kind,
			Confidence:    flag.Confidence,
			PromptPreview: truncatePreview([]byte(prompt)),
		}
		if err := s.Events.AppendFlaggedEvent(ctx, f); err != nil {
			s.Log.Error(ctx, "proxy: failed to record flagged event", "error", err)
		}
	}
}

// relayResponse writes resp's status/headers to client and copies its
// body, running the response-stream checker for content types that
// can carry model output text.
func (s *Server) relayResponse(ctx context.Context, client io.Writer, req *http.Request, resp *http.Response, profile models.Profile) bool {
	inspect := profile.ProxyMode == models.ProxyEnabled && resp.StatusCode == http.StatusOK

	if inspect {
		// The streaming checker can replace the tail of the body with
		// a shorter block sentinel, so the original framing headers
		// no longer apply; force connection-close framing instead of
		// shipping a Content-Length the body won't match.
		resp.Header.Del("Content-Length")
		resp.Header.Del("Transfer-Encoding")
		resp.Header.Set("Connection", "close")
	}

	bw := bufio.NewWriter(client)
	fmt.Fprintf(bw, "HTTP/1.1 %d %s\r\n", resp.StatusCode, http.StatusText(resp.StatusCode))
	resp.Header.Write(bw)
	bw.WriteString("\r\n")
	bw.Flush()

	if !inspect {
		_, err := io.Copy(client, resp.Body)
		return err == nil && !resp.Close
	}

	classify := func(ctx context.Context, text string) (bool, error) {
		classification := s.Classifier.Classify(ctx, text)
		s.recordFlags(ctx, profile, classification, text)
		v := s.Engine.Evaluate(classification, time.Now(), profile, snapshotProtection(s.State))
		return v.Action == models.ActionBlock, nil
	}

	if err := CopyAndCheck(ctx, client, resp.Body, extractor.DefaultBufferConfig(), classify); err != nil && !errors.Is(err, io.EOF) {
		s.Log.Warn(ctx, "proxy: response copy failed", "error", err)
	}
	return false
}

func writeBlockResponse(client io.Writer, req *http.Request) bool {
	status, contentType, body := synthesizeBlockResponse(req)
	fmt.Fprintf(client, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status))
	fmt.Fprintf(client, "Content-Type: %s\r\n", contentType)
	fmt.Fprintf(client, "Content-Length: %d\r\n\r\n", len(body))
	client.Write(body)
	return true
}

func writeErrorResponse(client io.Writer, status int) {
	fmt.Fprintf(client, "HTTP/1.1 %d %s\r\n\r\n", status, http.StatusText(status))
}

func readCappedBody(r io.Reader, max int) (body []byte, truncated bool) {
	limited := io.LimitReader(r, int64(max)+1)
	body, _ = io.ReadAll(limited)
	if len(body) > max {
		return body[:max], true
	}
	return body, false
}

func newBodyReader(body []byte) io.Reader {
	if len(body) == 0 {
		return nil
	}
	return bytes.NewReader(body)
}

// hashPreview and truncatePreview implement spec.md §3's "raw prompt
// text is never persisted" contract: events carry an unsalted SHA-256
// hash and a preview cut to MaxPreviewLen bytes, never the body itself.
// The preview is not otherwise redacted.
func hashPreview(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func truncatePreview(body []byte) string {
	s := string(body)
	if len(s) > models.MaxPreviewLen {
		return s[:models.MaxPreviewLen]
	}
	return s
}
