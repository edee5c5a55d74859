package proxy

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-gateway/aegis/internal/extractor"
)

func allowAll(context.Context, string) (bool, error) { return false, nil }

func TestCopyAndCheck_FlushesAllowedStreamVerbatim(t *testing.T) {
	src := strings.NewReader("hello world, nothing objectionable here")
	var dst bytes.Buffer

	cfg := extractor.BufferConfig{MaxBytes: 500, Timeout: time.Second}
	err := CopyAndCheck(context.Background(), &dst, src, cfg, allowAll)

	require.NoError(t, err)
	assert.Equal(t, "hello world, nothing objectionable here", dst.String())
}

func TestCopyAndCheck_BlocksOnFirstWindow(t *testing.T) {
	src := strings.NewReader("this trips the filter")
	var dst bytes.Buffer

	blockAll := func(context.Context, string) (bool, error) { return true, nil }
	cfg := extractor.BufferConfig{MaxBytes: 500, Timeout: time.Second}
	err := CopyAndCheck(context.Background(), &dst, src, cfg, blockAll)

	require.NoError(t, err)
	assert.Equal(t, string(streamBlockSentinel), dst.String())
}

func TestCopyAndCheck_OnlyChecksFirstWindowThenForwardsUnchecked(t *testing.T) {
	calls := 0
	classify := func(ctx context.Context, text string) (bool, error) {
		calls++
		return false, nil
	}

	big := strings.Repeat("x", 2000)
	src := strings.NewReader(big)
	var dst bytes.Buffer

	cfg := extractor.BufferConfig{MaxBytes: 100, Timeout: time.Second}
	err := CopyAndCheck(context.Background(), &dst, src, cfg, classify)

	require.NoError(t, err)
	assert.Equal(t, big, dst.String())
	assert.Equal(t, 1, calls)
}

func TestCopyAndCheck_ChecksOnTimeoutWhenStreamIsSlow(t *testing.T) {
	server, client := net.Pipe()
	var dst bytes.Buffer
	checked := make(chan struct{}, 1)

	classify := func(ctx context.Context, text string) (bool, error) {
		checked <- struct{}{}
		return false, nil
	}

	cfg := extractor.BufferConfig{MaxBytes: 1 << 20, Timeout: 20 * time.Millisecond}
	done := make(chan error, 1)
	go func() { done <- CopyAndCheck(context.Background(), &dst, server, cfg, classify) }()

	client.Write([]byte("partial"))

	select {
	case <-checked:
	case <-time.After(time.Second):
		t.Fatal("classify was never invoked on timeout")
	}

	client.Close()
	require.NoError(t, <-done)
	assert.Equal(t, "partial", dst.String())
}

func TestCopyAndCheck_ClassifyErrorNeverBlocksStream(t *testing.T) {
	src := strings.NewReader("some response text")
	var dst bytes.Buffer

	erroring := func(context.Context, string) (bool, error) { return false, errors.New("model unavailable") }
	cfg := extractor.BufferConfig{MaxBytes: 500, Timeout: time.Second}
	err := CopyAndCheck(context.Background(), &dst, src, cfg, erroring)

	require.NoError(t, err)
	assert.Equal(t, "some response text", dst.String())
}
