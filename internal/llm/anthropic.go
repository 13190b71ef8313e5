package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"spendrag/internal/log"
	"spendrag/internal/router"
)

const DefaultAnthropicModel = "claude-haiku-4-5-20251001"

// messageCreator is the part of the SDK message service this package calls.
type messageCreator interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Anthropic generates answers with the Messages API. It has no embedder;
// retrieval still needs Gemini embeddings.
type Anthropic struct {
	messages messageCreator
	model    string
	logger   *log.Logger
}

var _ router.Generator = (*Anthropic)(nil)

func NewAnthropic(apiKey, model string, logger *log.Logger) *Anthropic {
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return newAnthropic(&client.Messages, model, logger)
}

func newAnthropic(messages messageCreator, model string, logger *log.Logger) *Anthropic {
	if model == "" {
		model = DefaultAnthropicModel
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Anthropic{messages: messages, model: model, logger: logger.WithComponent(log.ComponentLLM)}
}

func (a *Anthropic) Model() string { return a.model }

func (a *Anthropic) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	start := time.Now()
	msg, err := a.messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(a.model),
		MaxTokens:   int64(maxTokens),
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(prompt))},
		Temperature: sdk.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("anthropic generate: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("anthropic generate: %w", ErrEmptyResponse)
	}
	a.logger.DebugContext(ctx, "Generated answer",
		log.FieldOperation, log.OpGenerate,
		log.FieldModel, a.model,
		"output_tokens", msg.Usage.OutputTokens,
		log.FieldDuration, time.Since(start).Milliseconds())
	return text, nil
}
