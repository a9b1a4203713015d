package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reply struct {
	text string
	err  error
}

// mockMessager implements AnthropicMessager, returning scripted replies in order.
type mockMessager struct {
	mu      sync.Mutex
	replies []reply
	params  []anthropic.MessageNewParams
}

func (m *mockMessager) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params = append(m.params, params)
	if len(m.replies) == 0 {
		return nil, errors.New("no scripted reply")
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	if r.err != nil {
		return nil, r.err
	}
	return &anthropic.Message{Content: []anthropic.ContentBlockUnion{{Type: "text", Text: r.text}}}, nil
}

func (m *mockMessager) prompt(i int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sb strings.Builder
	for _, msg := range m.params[i].Messages {
		for _, c := range msg.Content {
			if c.OfText != nil {
				sb.WriteString(c.OfText.Text)
			}
		}
	}
	return sb.String()
}

func withMockClient(t *testing.T, mock *mockMessager) *AnthropicCaller {
	t.Helper()
	old := newAnthropicClient
	newAnthropicClient = func(_ string) AnthropicMessager { return mock }
	t.Cleanup(func() { newAnthropicClient = old })
	caller, err := NewAnthropicCaller("test-key", "")
	require.NoError(t, err)
	return caller
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("  {\"a\":1} "))
}

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, time.Second, backoffDelay(1))
	assert.Equal(t, 2*time.Second, backoffDelay(2))
}

func TestClassifyTransportError(t *testing.T) {
	assert.Equal(t, failureClient, classifyTransportError(errors.New("status code: 400 bad request")))
	assert.Equal(t, failureServer, classifyTransportError(errors.New("status=500 upstream error")))
	assert.Equal(t, failureRateLimit, classifyTransportError(errors.New("429 Too Many Requests")))
	assert.Equal(t, failureTimeout, classifyTransportError(context.DeadlineExceeded))
}

func TestNewAnthropicCallerRequiresKey(t *testing.T) {
	_, err := NewAnthropicCaller("  ", "")
	assert.Error(t, err)

	mock := &mockMessager{}
	caller := withMockClient(t, mock)
	assert.Equal(t, DefaultModel, caller.ModelName())
}

func TestChatAnswerOmitsLargeFields(t *testing.T) {
	mock := &mockMessager{replies: []reply{{text: "ROI is 12.5%."}}}
	chat := NewChat(withMockClient(t, mock), zerolog.Nop(), nil)

	region := map[string]any{
		"id":                 "mitte",
		"roiPercentage":      12.5,
		"detailed_report":    "### Investment Summary\nsecret-markdown",
		"polygonCoordinates": []any{map[string]any{"lat": 1.0, "lng": 2.0}},
	}
	got := chat.Answer(context.Background(), "What is the ROI?", region)
	assert.Equal(t, "ROI is 12.5%.", got)

	prompt := mock.prompt(0)
	assert.Contains(t, prompt, "What is the ROI?")
	assert.Contains(t, prompt, `"roiPercentage": 12.5`)
	assert.NotContains(t, prompt, "secret-markdown")
	assert.NotContains(t, prompt, "polygonCoordinates")
	assert.Contains(t, region, "detailed_report", "caller's map must not be modified")
}

type chatCounter struct{ outcomes []string }

func (c *chatCounter) ObserveChat(outcome string) { c.outcomes = append(c.outcomes, outcome) }

func TestChatAnswerFallbacks(t *testing.T) {
	mock := &mockMessager{replies: []reply{{text: "   "}, {err: errors.New("status code: 500")}}}
	counter := &chatCounter{}
	chat := NewChat(withMockClient(t, mock), zerolog.Nop(), counter)

	assert.Equal(t, EmptyAnswer, chat.Answer(context.Background(), "q", map[string]any{}))
	assert.Equal(t, ErrorAnswer, chat.Answer(context.Background(), "q", map[string]any{}))
	assert.Equal(t, []string{OutcomeEmpty, OutcomeError}, counter.outcomes)
}

func TestChatAnswerUnencodableRegion(t *testing.T) {
	mock := &mockMessager{}
	chat := NewChat(withMockClient(t, mock), zerolog.Nop(), nil)
	got := chat.Answer(context.Background(), "q", map[string]any{"bad": make(chan int)})
	assert.Equal(t, ErrorAnswer, got)
	assert.Empty(t, mock.params)
}
