package embedding

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
)

const (
	// maxSummarizeInput bounds the transcript prefix sent to the LLM
	maxSummarizeInput = 8000

	// fallbackSummaryLen is the truncation length when the remote call fails
	fallbackSummaryLen = 500

	summarizePrompt = "Summarize the following conversation in 2-3 sentences. " +
		"Focus on what was discussed, decided, and accomplished."
)

// Summarizer condenses conversation text before it is embedded.
type Summarizer interface {
	Summarize(ctx context.Context, text string) string
}

// AnthropicSummarizer summarizes via the Anthropic messages API. Any
// failure degrades to a truncated prefix of the input; summarization
// never fails the surrounding index pass.
type AnthropicSummarizer struct {
	client anthropic.Client
	model  string
	logger zerolog.Logger
}

// NewAnthropicSummarizer creates a new remote summarizer
func NewAnthropicSummarizer(apiKey, model string, logger zerolog.Logger) *AnthropicSummarizer {
	return &AnthropicSummarizer{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		logger: logger,
	}
}

func (s *AnthropicSummarizer) Summarize(ctx context.Context, text string) string {
	prefix := text
	if len(prefix) > maxSummarizeInput {
		prefix = prefix[:maxSummarizeInput]
	}

	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	resp, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: 300,
		System: []anthropic.TextBlockParam{
			{Text: summarizePrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prefix)),
		},
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Summarization failed, using truncated text")
		return TruncatedSummary(text)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(b.Text)
		}
	}

	summary := strings.TrimSpace(out.String())
	if summary == "" {
		return TruncatedSummary(text)
	}

	return summary
}

// NoopSummarizer always returns the truncated input. Used when no
// summarization credential is configured.
type NoopSummarizer struct{}

func (NoopSummarizer) Summarize(_ context.Context, text string) string {
	return TruncatedSummary(text)
}

// TruncatedSummary is the degraded summary representation. The cut
// never splits a rune.
func TruncatedSummary(text string) string {
	if len(text) <= fallbackSummaryLen {
		return text
	}
	cut := fallbackSummaryLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
