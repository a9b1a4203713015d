package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

const (
	EmptyAnswer = "I'm sorry, I couldn't generate a response. The AI returned an empty message."
	ErrorAnswer = "I'm sorry, I couldn't generate a response due to a server error. Please check the server console for details."
)

// Chat outcomes reported to a ChatObserver.
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

const chatMaxTokens = 1024

// Fields too large to be worth sending with every question.
var chatOmittedFields = []string{"detailed_report", "polygonCoordinates"}

type ChatObserver interface {
	ObserveChat(outcome string)
}

// Chat answers free-form questions about a single region.
type Chat struct {
	caller   Caller
	log      zerolog.Logger
	observer ChatObserver
}

func NewChat(caller Caller, log zerolog.Logger, observer ChatObserver) *Chat {
	return &Chat{caller: caller, log: log.With().Str("component", "chat").Logger(), observer: observer}
}

// Answer never fails: model errors and empty output are turned into the
// fixed apology strings and logged.
func (c *Chat) Answer(ctx context.Context, question string, region map[string]any) string {
	prompt, err := chatPrompt(question, region)
	if err != nil {
		c.log.Error().Err(err).Msg("build chat prompt")
		c.observe(OutcomeError)
		return ErrorAnswer
	}

	text, err := c.caller.Complete(ctx, "", prompt, chatMaxTokens)
	if err != nil {
		c.log.Error().Err(err).Str("model", c.caller.ModelName()).Msg("chat generation failed")
		c.observe(OutcomeError)
		return ErrorAnswer
	}
	if strings.TrimSpace(text) == "" {
		c.log.Error().Str("model", c.caller.ModelName()).Msg("chat response was empty")
		c.observe(OutcomeEmpty)
		return EmptyAnswer
	}
	c.observe(OutcomeOK)
	return text
}

func (c *Chat) observe(outcome string) {
	if c.observer != nil {
		c.observer.ObserveChat(outcome)
	}
}

func chatPrompt(question string, region map[string]any) (string, error) {
	summary := make(map[string]any, len(region))
	for k, v := range region {
		summary[k] = v
	}
	for _, k := range chatOmittedFields {
		delete(summary, k)
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode region: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are a helpful investment analyst assistant. A user is asking a question about a specific investment region report.\n")
	b.WriteString("Answer the user's question based ONLY on the data provided in the following JSON report for that region.\n")
	b.WriteString("Be concise and clear in your answer. If the report does not contain the answer, say so.\n")
	b.WriteString("Do not make up information.\n\n")
	b.WriteString("USER QUESTION:\n")
	b.WriteString(question)
	b.WriteString("\n\nREGION REPORT DATA:\n")
	b.Write(data)
	b.WriteString("\n")
	return b.String(), nil
}
