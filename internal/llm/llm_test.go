package llm

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"spendrag/internal/core"
)

type fakeModels struct {
	text      string
	err       error
	gotModel  string
	gotConfig *genai.GenerateContentConfig
	gotEmbed  *genai.EmbedContentConfig
	vectors   [][]float32
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, _ []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel, f.gotConfig = model, cfg
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

func (f *fakeModels) EmbedContent(_ context.Context, model string, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.gotModel, f.gotEmbed = model, cfg
	if f.err != nil {
		return nil, f.err
	}
	resp := &genai.EmbedContentResponse{}
	for i := range contents {
		resp.Embeddings = append(resp.Embeddings, &genai.ContentEmbedding{Values: f.vectors[i%len(f.vectors)]})
	}
	return resp, nil
}

func TestGemini_Generate(t *testing.T) {
	fake := &fakeModels{text: "  Bu ay 27 litre su aldınız. "}
	g := newGemini(fake, GeminiConfig{}, nil)

	got, err := g.Generate(context.Background(), "prompt", 300, 0)
	require.NoError(t, err)
	assert.Equal(t, "Bu ay 27 litre su aldınız.", got)
	assert.Equal(t, DefaultGeminiModel, fake.gotModel)
	assert.Equal(t, int32(300), fake.gotConfig.MaxOutputTokens)
	require.NotNil(t, fake.gotConfig.Temperature)
	assert.Zero(t, *fake.gotConfig.Temperature)

	fake.text = "   "
	_, err = g.Generate(context.Background(), "prompt", 300, 0)
	require.ErrorIs(t, err, ErrEmptyResponse)

	fake.err = errors.New("429")
	_, err = g.Generate(context.Background(), "prompt", 300, 0)
	require.Error(t, err)
}

func TestGemini_Embed(t *testing.T) {
	fake := &fakeModels{vectors: [][]float32{{0.1, 0.2}}}
	g := newGemini(fake, GeminiConfig{EmbeddingDimensions: 2}, nil)

	v, err := g.Embed(context.Background(), "su")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, v)
	assert.Equal(t, DefaultEmbeddingModel, fake.gotModel)
	assert.Equal(t, taskRetrievalQuery, fake.gotEmbed.TaskType)
	assert.Equal(t, int32(2), *fake.gotEmbed.OutputDimensionality)

	batch, err := g.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, batch, 3)
	assert.Equal(t, taskRetrievalDocument, fake.gotEmbed.TaskType)
}

type fakeMessages struct {
	msg *sdk.Message
	err error
	got sdk.MessageNewParams
}

func (f *fakeMessages) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	f.got = body
	return f.msg, f.err
}

func TestAnthropic_Generate(t *testing.T) {
	fake := &fakeMessages{msg: &sdk.Message{Content: []sdk.ContentBlockUnion{
		{Type: "text", Text: "Toplam "},
		{Type: "text", Text: "120 TL."},
	}}}
	a := newAnthropic(fake, "", nil)

	got, err := a.Generate(context.Background(), "prompt", 250, 0)
	require.NoError(t, err)
	assert.Equal(t, "Toplam 120 TL.", got)
	assert.Equal(t, sdk.Model(DefaultAnthropicModel), fake.got.Model)
	assert.Equal(t, int64(250), fake.got.MaxTokens)

	fake.msg = &sdk.Message{}
	_, err = a.Generate(context.Background(), "prompt", 250, 0)
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNew_Providers(t *testing.T) {
	ctx := context.Background()

	clients, err := New(ctx, Config{Provider: ProviderNone}, nil)
	require.NoError(t, err)
	assert.Nil(t, clients.Generator)
	assert.Nil(t, clients.RouterEmbedder())

	_, err = New(ctx, Config{Provider: ProviderGemini}, nil)
	require.ErrorIs(t, err, core.ErrCapabilityUnavailable)

	_, err = New(ctx, Config{Provider: ProviderAnthropic}, nil)
	require.ErrorIs(t, err, core.ErrCapabilityUnavailable)

	clients, err = New(ctx, Config{Provider: ProviderAnthropic, AnthropicAPIKey: "sk-test"}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultAnthropicModel, clients.Generator.Model())
	assert.Nil(t, clients.Embedder)

	_, err = New(ctx, Config{Provider: "openai"}, nil)
	require.Error(t, err)
}
