// Package llm wraps the Anthropic Messages API for the two model-backed
// features: answering questions about a region and generating a fictional
// city report.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
)

const DefaultModel = string(anthropic.ModelClaudeSonnet4_20250514)

const maxAttempts = 3

type failureClass int

const (
	failureNone failureClass = iota
	failureParse
	failureSchema
	failureEmpty
	failureTimeout
	failureRateLimit
	failureServer
	failureClient
)

func (c failureClass) retryable() bool {
	return c == failureTimeout || c == failureRateLimit || c == failureServer
}

// Caller sends one prompt and returns the concatenated text output.
type Caller interface {
	Complete(ctx context.Context, system, prompt string, maxTokens int64) (string, error)
	ModelName() string
}

type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type AnthropicClientCreator func(apiKey string) AnthropicMessager

func defaultAnthropicCreator(apiKey string) AnthropicMessager {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &c.Messages
}

var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

type AnthropicCaller struct {
	messages AnthropicMessager
	model    string
}

func NewAnthropicCaller(apiKey, model string) (*AnthropicCaller, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY not configured")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return &AnthropicCaller{messages: newAnthropicClient(apiKey), model: model}, nil
}

func (a *AnthropicCaller) ModelName() string { return a.model }

func (a *AnthropicCaller) Complete(ctx context.Context, system, prompt string, maxTokens int64) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	resp, err := a.messages.New(ctx, params)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}

// JSONExecutor asks for a JSON document, retrying on transport failures and
// feeding parse or validation errors back into the next attempt.
type JSONExecutor struct {
	caller    Caller
	system    string
	maxTokens int64
	log       zerolog.Logger
	sleep     func(context.Context, time.Duration) error
}

func NewJSONExecutor(caller Caller, system string, maxTokens int64, log zerolog.Logger) *JSONExecutor {
	return &JSONExecutor{caller: caller, system: system, maxTokens: maxTokens, log: log, sleep: sleepCtx}
}

// Run decodes the model output into out and calls validate. It returns
// errEmptyOutput if every attempt came back blank.
func (e *JSONExecutor) Run(ctx context.Context, task, prompt string, out any, validate func() error) (int, error) {
	feedback := ""
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		fullPrompt := prompt + "\n\nRespond with only valid JSON matching the schema."
		if feedback != "" {
			fullPrompt += "\n\n" + feedback
		}

		raw, err := e.caller.Complete(ctx, e.system, fullPrompt, e.maxTokens)
		if err != nil {
			class := classifyTransportError(err)
			e.logAttempt(task, attempt, class, err)
			if class.retryable() && attempt < maxAttempts {
				if serr := e.sleep(ctx, backoffDelay(attempt)); serr != nil {
					return attempt, serr
				}
				continue
			}
			return attempt, fmt.Errorf("%s transport failure: %w", task, err)
		}

		raw = strings.TrimSpace(raw)
		if raw == "" {
			e.logAttempt(task, attempt, failureEmpty, nil)
			if attempt < maxAttempts {
				feedback = "Your previous response was empty. Respond with valid JSON."
				continue
			}
			return attempt, errEmptyOutput
		}

		if err := json.Unmarshal([]byte(stripCodeFences(raw)), out); err != nil {
			e.logAttempt(task, attempt, failureParse, err)
			if attempt < maxAttempts {
				feedback = "Your previous response was not valid JSON. Respond with only valid JSON."
				continue
			}
			return attempt, fmt.Errorf("%s failed json parse: %w", task, err)
		}
		if err := validate(); err != nil {
			e.logAttempt(task, attempt, failureSchema, err)
			if attempt < maxAttempts {
				feedback = fmt.Sprintf("Your response failed validation: %s. Fix these issues.", err)
				continue
			}
			return attempt, fmt.Errorf("%s failed validation: %w", task, err)
		}
		return attempt, nil
	}
	return maxAttempts, fmt.Errorf("%s failed after retries", task)
}

func (e *JSONExecutor) logAttempt(task string, attempt int, class failureClass, err error) {
	ev := e.log.Warn().Str("task", task).Int("attempt", attempt).Int("class", int(class))
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("llm attempt failed")
}

var errEmptyOutput = errors.New("empty model output")

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

func classifyTransportError(err error) failureClass {
	msg := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failureTimeout
	}
	switch {
	case strings.Contains(msg, "429"):
		return failureRateLimit
	case strings.Contains(msg, " 5") || strings.Contains(msg, "status code: 5") || strings.Contains(msg, "server error"):
		return failureServer
	case strings.Contains(msg, " 4") || strings.Contains(msg, "status code: 4"):
		return failureClient
	default:
		return failureServer
	}
}

func backoffDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 1 * time.Second
	}
	return 2 * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
