// Package llm adapts hosted model APIs to the generator and embedder ports
// used by the answer path and the index builder.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"spendrag/internal/log"
	"spendrag/internal/retrieval"
	"spendrag/internal/router"
)

const (
	DefaultGeminiModel         = "gemini-2.5-flash"
	DefaultEmbeddingModel      = "gemini-embedding-001"
	DefaultEmbeddingDimensions = 768

	taskRetrievalQuery    = "RETRIEVAL_QUERY"
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

var ErrEmptyResponse = errors.New("empty model response")

// geminiModels is the part of genai.Models this package calls.
type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Gemini generates answers and embeds questions and documents.
type Gemini struct {
	models     geminiModels
	model      string
	embedModel string
	dims       int32
	logger     *log.Logger
}

var (
	_ router.Generator        = (*Gemini)(nil)
	_ router.Embedder         = (*Gemini)(nil)
	_ retrieval.BatchEmbedder = (*Gemini)(nil)
)

type GeminiConfig struct {
	APIKey              string
	Model               string
	EmbeddingModel      string
	EmbeddingDimensions int
}

func NewGemini(ctx context.Context, cfg GeminiConfig, logger *log.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGemini(client.Models, cfg, logger), nil
}

func newGemini(models geminiModels, cfg GeminiConfig, logger *log.Logger) *Gemini {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.EmbeddingDimensions <= 0 {
		cfg.EmbeddingDimensions = DefaultEmbeddingDimensions
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Gemini{
		models:     models,
		model:      cfg.Model,
		embedModel: cfg.EmbeddingModel,
		dims:       int32(cfg.EmbeddingDimensions),
		logger:     logger.WithComponent(log.ComponentLLM),
	}
}

func (g *Gemini) Model() string { return g.model }

func (g *Gemini) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temperature)),
		MaxOutputTokens: int32(maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini generate: %w", ErrEmptyResponse)
	}
	g.logger.DebugContext(ctx, "Generated answer",
		log.FieldOperation, log.OpGenerate,
		log.FieldModel, g.model,
		log.FieldDuration, time.Since(start).Milliseconds())
	return text, nil
}

// Embed embeds a question for retrieval.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := g.embed(ctx, []string{text}, taskRetrievalQuery)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds ledger documents for indexing.
func (g *Gemini) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return g.embed(ctx, texts, taskRetrievalDocument)
}

func (g *Gemini) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}
	dims := g.dims
	resp, err := g.models.EmbedContent(ctx, g.embedModel, contents, &genai.EmbedContentConfig{
		TaskType:             task,
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embed: %w", ErrEmptyResponse)
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("gemini embed %d: %w", i, ErrEmptyResponse)
		}
		out[i] = e.Values
	}
	g.logger.DebugContext(ctx, "Embedded texts",
		log.FieldOperation, log.OpEmbed,
		log.FieldModel, g.embedModel,
		"count", len(out))
	return out, nil
}
