package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-gateway/aegis/internal/models"
)

func TestRegistry_OpenAIChatCompletion(t *testing.T) {
	body := []byte(`{"model":"gpt-4","messages":[
		{"role":"system","content":"be helpful"},
		{"role":"user","content":"what is the capital of france"}
	]}`)
	r := NewRegistry()
	result := r.Extract(Request{Body: body, ContentType: "application/json", Host: "api.openai.com"})

	require.Equal(t, models.ExtractionOK, result.Kind)
	require.Len(t, result.Prompts, 1)
	assert.Equal(t, "what is the capital of france", result.Prompts[0].Text)
	assert.True(t, result.Prompts[0].IsCurrent)
}

func TestRegistry_AnthropicMessages(t *testing.T) {
	body := []byte(`{"model":"claude","system":"be terse","messages":[
		{"role":"user","content":[{"type":"text","text":"hello there"}]}
	]}`)
	r := NewRegistry()
	result := r.Extract(Request{Body: body, ContentType: "application/json", Host: "api.anthropic.com"})

	require.Equal(t, models.ExtractionOK, result.Kind)
	require.Len(t, result.Prompts, 1)
	assert.Equal(t, "hello there", result.Prompts[0].Text)
}

func TestRegistry_GeminiContents(t *testing.T) {
	body := []byte(`{"contents":[{"role":"user","parts":[{"text":"explain photosynthesis"}]}]}`)
	r := NewRegistry()
	result := r.Extract(Request{Body: body, ContentType: "application/json", Host: "generativelanguage.googleapis.com"})

	require.Equal(t, models.ExtractionOK, result.Kind)
	require.Len(t, result.Prompts, 1)
	assert.Equal(t, "explain photosynthesis", result.Prompts[0].Text)
}

func TestRegistry_FormURLEncoded(t *testing.T) {
	body := []byte(`message=what+time+is+it`)
	r := NewRegistry()
	result := r.Extract(Request{Body: body, ContentType: "application/x-www-form-urlencoded", Host: "example.com"})

	require.Equal(t, models.ExtractionOK, result.Kind)
	require.Len(t, result.Prompts, 1)
	assert.Equal(t, "what time is it", result.Prompts[0].Text)
}

func TestRegistry_UnknownHostFallsBackToPrintableScan(t *testing.T) {
	body := []byte(`\x00\x01{"weird":"this is a reasonably long embedded string of text"}\x00`)
	r := NewRegistry()
	result := r.Extract(Request{Body: body, ContentType: "application/octet-stream", Host: "unknown.example.com"})

	require.Equal(t, models.ExtractionOK, result.Kind)
	require.NotEmpty(t, result.Prompts)
}

func TestRegistry_EmptyBodyIsNone(t *testing.T) {
	r := NewRegistry()
	result := r.Extract(Request{Body: nil, ContentType: "application/json", Host: "api.openai.com"})
	assert.Equal(t, models.ExtractionNone, result.Kind)
}

func TestRegistry_TruncatesOversizedBody(t *testing.T) {
	big := make([]byte, MaxBodyBytes+1000)
	for i := range big {
		big[i] = 'a'
	}
	r := NewRegistry()
	result := r.Extract(Request{Body: big, ContentType: "application/octet-stream", Host: "unknown.example.com"})
	require.Equal(t, models.ExtractionTruncated, result.Kind)
}

func TestCopilotParser_SignalRFrames(t *testing.T) {
	body := "\x1e" + `{"type":1,"target":"chat","arguments":[{"message":{"text":"help me write an essay"}}]}` + "\x1e"
	p := CopilotParser{}
	result := p.Parse([]byte(body))
	require.Equal(t, models.ExtractionOK, result.Kind)
	assert.Equal(t, "help me write an essay", result.Prompts[0].Text)
}

func TestPoeParser_GraphQLVariables(t *testing.T) {
	body := []byte(`{"query":"mutation SendMessage","variables":{"messages":[{"contentType":"text","content":"summarize this article"}]}}`)
	p := PoeParser{}
	result := p.Parse(body)
	require.Equal(t, models.ExtractionOK, result.Kind)
	found := false
	for _, pr := range result.Prompts {
		if pr.Text == "summarize this article" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestFallback_DeduplicatesRepeatedRuns(t *testing.T) {
	body := []byte("this is a duplicated run of text\x00\x00this is a duplicated run of text")
	result := Fallback(body)
	require.Equal(t, models.ExtractionOK, result.Kind)
	assert.Len(t, result.Prompts, 1)
}

func TestFallback_IgnoresShortRuns(t *testing.T) {
	body := []byte(`ok`)
	result := Fallback(body)
	assert.Equal(t, models.ExtractionNone, result.Kind)
}
