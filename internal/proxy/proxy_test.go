package proxy

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-gateway/aegis/internal/classifier"
	"github.com/aegis-gateway/aegis/internal/extractor"
	"github.com/aegis-gateway/aegis/internal/logging"
	"github.com/aegis-gateway/aegis/internal/models"
	"github.com/aegis-gateway/aegis/internal/registry"
	"github.com/aegis-gateway/aegis/internal/rules"
)

type stubEventSink struct {
	events        []models.Event
	flaggedEvents []models.FlaggedEvent
}

func (s *stubEventSink) AppendEvent(ctx context.Context, e models.Event) (int64, error) {
	s.events = append(s.events, e)
	return int64(len(s.events)), nil
}

func (s *stubEventSink) AppendFlaggedEvent(ctx context.Context, e models.FlaggedEvent) error {
	s.flaggedEvents = append(s.flaggedEvents, e)
	return nil
}

type stubImageClassifier struct {
	available bool
	score     float64
}

func (s stubImageClassifier) Available() bool { return s.available }
func (s stubImageClassifier) Score(context.Context, []byte) (float64, error) {
	return s.score, nil
}

func testServer(warnMode rules.ProxyWarnMode) (*Server, *stubEventSink) {
	sink := &stubEventSink{}
	s := &Server{
		Extractor:  extractor.NewRegistry(),
		Classifier: classifier.New(nil, logging.Nop()),
		Engine:     rules.New(),
		Events:     sink,
		Log:        logging.Nop(),
		WarnMode:   warnMode,
		State:      NewStateCache(&stubStateSource{state: models.ProtectionState{Kind: models.ProtectionActive}, seq: 1}),
	}
	return s, sink
}

func blockingProfile() models.Profile {
	return models.Profile{
		ID: "p1", Name: "Kid", ProxyMode: models.ProxyEnabled, Enabled: true,
		ContentRules: []models.ContentRule{
			{ID: "c1", Category: models.CategorySelfHarm, Action: models.ActionBlock, Threshold: 0.1, Enabled: true},
		},
	}
}

func openAIRequest(body string) *http.Request {
	req, _ := http.NewRequest(http.MethodPost, "https://api.openai.com/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestEvaluateRequest_BlocksOnSelfHarmKeyword(t *testing.T) {
	s, _ := testServer(rules.WarnAsAllow)
	req := openAIRequest(`{"messages":[{"role":"user","content":"i want to kill myself"}]}`)
	body := []byte(`{"messages":[{"role":"user","content":"i want to kill myself"}]}`)

	verdict, prompt := s.evaluateRequest(context.Background(), req, body, false, "api.openai.com", models.SiteEntry{ParserID: "openai"}, blockingProfile())

	assert.Equal(t, models.ActionBlock, verdict.Action)
	assert.NotEmpty(t, prompt)
}

func TestEvaluateRequest_AllowsBenignPrompt(t *testing.T) {
	s, _ := testServer(rules.WarnAsAllow)
	body := []byte(`{"messages":[{"role":"user","content":"what's a good recipe for soup"}]}`)
	req := openAIRequest(string(body))

	verdict, _ := s.evaluateRequest(context.Background(), req, body, false, "api.openai.com", models.SiteEntry{ParserID: "openai"}, blockingProfile())

	assert.Equal(t, models.ActionAllow, verdict.Action)
}

func TestEvaluateRequest_PassthroughProfileNeverInspects(t *testing.T) {
	s, _ := testServer(rules.WarnAsAllow)
	body := []byte(`{"messages":[{"role":"user","content":"i want to kill myself"}]}`)
	req := openAIRequest(string(body))

	profile := models.Unrestricted("someone")
	verdict, prompt := s.evaluateRequest(context.Background(), req, body, false, "api.openai.com", models.SiteEntry{ParserID: "openai"}, profile)

	assert.Equal(t, models.ActionAllow, verdict.Action)
	assert.Equal(t, "profile_proxy_mode", verdict.Reason)
	assert.Empty(t, prompt)
}

func TestEvaluateRequest_WarnModeControlsFoldedAction(t *testing.T) {
	profile := models.Profile{
		ID: "p1", ProxyMode: models.ProxyEnabled, Enabled: true,
		ContentRules: []models.ContentRule{
			{ID: "c1", Category: models.CategoryViolence, Action: models.ActionWarn, Threshold: 0.1, Enabled: true},
		},
	}
	body := []byte(`{"messages":[{"role":"user","content":"how do i kill someone"}]}`)
	req := openAIRequest(string(body))

	allowServer, _ := testServer(rules.WarnAsAllow)
	v, _ := allowServer.evaluateRequest(context.Background(), req, body, false, "api.openai.com", models.SiteEntry{ParserID: "openai"}, profile)
	assert.Equal(t, models.ActionAllow, v.Action)

	blockServer, _ := testServer(rules.WarnAsBlock)
	v2, _ := blockServer.evaluateRequest(context.Background(), req, body, false, "api.openai.com", models.SiteEntry{ParserID: "openai"}, profile)
	assert.Equal(t, models.ActionBlock, v2.Action)
}

func TestEvaluateRequest_ImageGenSiteBlocksAboveNSFWThreshold(t *testing.T) {
	s, _ := testServer(rules.WarnAsAllow)
	s.Classifier.SetImageClassifier(stubImageClassifier{available: true, score: 0.9})
	profile := models.Profile{ID: "p1", ProxyMode: models.ProxyEnabled, Enabled: true, NSFWThreshold: 0.5}
	body := []byte("raw-image-bytes")
	req, _ := http.NewRequest(http.MethodPost, "https://gen.example.com/v1/images", bytes.NewReader(body))

	verdict, _ := s.evaluateRequest(context.Background(), req, body, false, "gen.example.com", models.SiteEntry{Category: models.SiteImageGen}, profile)

	assert.Equal(t, models.ActionBlock, verdict.Action)
}

func TestEvaluateRequest_ImageGenSiteAllowsBelowNSFWThreshold(t *testing.T) {
	s, _ := testServer(rules.WarnAsAllow)
	s.Classifier.SetImageClassifier(stubImageClassifier{available: true, score: 0.2})
	profile := models.Profile{ID: "p1", ProxyMode: models.ProxyEnabled, Enabled: true, NSFWThreshold: 0.5}
	body := []byte("raw-image-bytes")
	req, _ := http.NewRequest(http.MethodPost, "https://gen.example.com/v1/images", bytes.NewReader(body))

	verdict, _ := s.evaluateRequest(context.Background(), req, body, false, "gen.example.com", models.SiteEntry{Category: models.SiteImageGen}, profile)

	assert.Equal(t, models.ActionAllow, verdict.Action)
}

func TestEvaluateRequest_PersistsTier3FlagsToEventSink(t *testing.T) {
	s, sink := testServer(rules.WarnAsAllow)
	body := []byte(`{"messages":[{"role":"user","content":"I feel so hopeless and worthless lately"}]}`)
	req := openAIRequest(string(body))

	verdict, _ := s.evaluateRequest(context.Background(), req, body, false, "api.openai.com", models.SiteEntry{ParserID: "openai"}, blockingProfile())

	assert.Equal(t, models.ActionAllow, verdict.Action)
	require.NotEmpty(t, sink.flaggedEvents)
	assert.Equal(t, "p1", sink.flaggedEvents[0].ProfileID)
}

func TestReadCappedBody_TruncatesOversizedBody(t *testing.T) {
	body := bytes.Repeat([]byte("a"), 10)
	got, truncated := readCappedBody(bytes.NewReader(body), 5)
	assert.True(t, truncated)
	assert.Equal(t, 5, len(got))
}

func TestReadCappedBody_PassesSmallBodyThrough(t *testing.T) {
	body := []byte("hello")
	got, truncated := readCappedBody(bytes.NewReader(body), 1024)
	assert.False(t, truncated)
	assert.Equal(t, body, got)
}

func TestHashAndTruncatePreview(t *testing.T) {
	h1 := hashPreview([]byte("abc"))
	h2 := hashPreview([]byte("abc"))
	h3 := hashPreview([]byte("abd"))
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)

	long := strings.Repeat("x", models.MaxPreviewLen+50)
	assert.Len(t, truncatePreview([]byte(long)), models.MaxPreviewLen)
}

func TestStripPort(t *testing.T) {
	assert.Equal(t, "api.openai.com", stripPort("api.openai.com:443"))
	assert.Equal(t, "api.openai.com", stripPort("api.openai.com"))
}

// TestSplice_ForwardsRawBytesBothWays exercises the registry-miss path
// end to end over real loopback sockets: a fake upstream echoes
// whatever it receives, and the proxy's splice must relay it
// untouched in both directions.
func TestSplice_ForwardsRawBytesBothWays(t *testing.T) {
	upstreamLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer upstreamLn.Close()

	go func() {
		conn, err := upstreamLn.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io.Copy(conn, conn)
	}()

	s, _ := testServer(rules.WarnAsAllow)
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	done := make(chan struct{})
	go func() {
		s.splice(context.Background(), serverConn, upstreamLn.Addr().String())
		close(done)
	}()

	_, err = clientConn.Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := io.ReadFull(clientConn, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))

	clientConn.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("splice did not return after client closed")
	}
}

// TestHandleConnection_UnknownHostSplicesWithoutTLS drives the full
// CONNECT handshake over a real TCP loopback pair against an unknown
// host, verifying the tunnel is established and raw bytes are echoed
// back without any TLS handshake on the wire.
func TestHandleConnection_UnknownHostSplicesWithoutTLS(t *testing.T) {
	upstreamLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer upstreamLn.Close()
	upstreamAddr := upstreamLn.Addr().(*net.TCPAddr)

	go func() {
		conn, err := upstreamLn.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io.Copy(conn, conn)
	}()

	s, _ := testServer(rules.WarnAsAllow)
	s.Registry = registry.New()

	clientConn, serverConn := net.Pipe()
	go s.handleConnection(context.Background(), serverConn)

	host := "127.0.0.1"
	_, err = clientConn.Write([]byte("CONNECT " + host + ":" + strconv.Itoa(upstreamAddr.Port) + " HTTP/1.1\r\nHost: " + host + "\r\n\r\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(clientConn)
	statusLine, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, statusLine, "200")

	// drain the blank line after headers
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if line == "\r\n" {
			break
		}
	}

	_, err = clientConn.Write([]byte("raw-bytes"))
	require.NoError(t, err)

	buf := make([]byte, len("raw-bytes"))
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := io.ReadFull(reader, buf)
	require.NoError(t, err)
	assert.Equal(t, "raw-bytes", string(buf[:n]))

	clientConn.Close()
}
