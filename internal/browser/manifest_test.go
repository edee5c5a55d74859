package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-gateway/aegis/internal/models"
)

type stubRegistry struct{ entries []models.SiteEntry }

func (r stubRegistry) All() []models.SiteEntry { return r.entries }

type stubSeqSource struct {
	seq int64
	err error
}

func (s stubSeqSource) CurrentSeq(context.Context) (int64, error) { return s.seq, s.err }

func TestBuilder_BuildProjectsSiteEntriesAndFailMode(t *testing.T) {
	reg := stubRegistry{entries: []models.SiteEntry{
		{Pattern: "chat.openai.com", ServiceName: "ChatGPT", Category: models.SiteConsumer, ParserID: "openai-web"},
		{Pattern: "*.anthropic.com", ServiceName: "Claude", Category: models.SiteConsumer, ParserID: "anthropic-web"},
	}}
	b := NewBuilder(reg, stubSeqSource{seq: 7}, FailClosed, 10000)

	m, err := b.Build(context.Background(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, int64(7), m.Seq)
	assert.Equal(t, FailClosed, m.FailMode)
	assert.Equal(t, 10000, m.TimeoutMs)
	require.Len(t, m.Sites, 2)
	assert.Equal(t, "chat.openai.com", m.Sites[0].Pattern)
}

func TestBuilder_BuildPropagatesSeqSourceError(t *testing.T) {
	b := NewBuilder(stubRegistry{}, stubSeqSource{err: assert.AnError}, FailOpen, 10000)

	_, err := b.Build(context.Background(), time.Now())
	assert.Error(t, err)
}
