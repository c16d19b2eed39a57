package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/internal/pipeline"
)

// aiEmbedder adapts a Genkit embedder to the single-text contract the
// pipeline and backfiller consume.
type aiEmbedder struct {
	embedder ai.Embedder
}

func newEmbedder(embedder ai.Embedder) *aiEmbedder {
	return &aiEmbedder{embedder: embedder}
}

func (e *aiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("generating embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	return resp.Embeddings[0].Embedding, nil
}

// aiGenerator adapts genkit.Generate to the pipeline's Generator contract.
type aiGenerator struct {
	g           *genkit.Genkit
	model       string
	temperature float32
	maxTokens   int
}

func newGenerator(g *genkit.Genkit, cfg *config.Config) *aiGenerator {
	return &aiGenerator{
		g:           g,
		model:       cfg.FullModelName(),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (a *aiGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, a.g,
		ai.WithModelName(a.model),
		ai.WithSystem(system),
		ai.WithPrompt(prompt),
		ai.WithConfig(&ai.GenerationCommonConfig{
			Temperature:     float64(a.temperature),
			MaxOutputTokens: a.maxTokens,
		}),
	)
	if err != nil {
		return "", fmt.Errorf("generating text: %w", err)
	}
	return resp.Text(), nil
}

// sentimentOutput is the structured result the classifier model returns.
type sentimentOutput struct {
	Label      string  `json:"label" jsonschema_description:"One of: negative, neutral, positive"`
	Confidence float64 `json:"confidence" jsonschema_description:"Confidence in the label, 0.0 to 1.0"`
}

const classifierSystem = "You are a financial sentiment classifier. " +
	"Classify the given headline as negative, neutral or positive for markets " +
	"and report your confidence."

// aiClassifier performs headline sentiment classification via structured
// model output.
type aiClassifier struct {
	g     *genkit.Genkit
	model string
}

func newClassifier(g *genkit.Genkit, cfg *config.Config) *aiClassifier {
	return &aiClassifier{g: g, model: cfg.FullModelName()}
}

func (a *aiClassifier) Classify(ctx context.Context, text string) (string, float64, error) {
	resp, err := genkit.Generate(ctx, a.g,
		ai.WithModelName(a.model),
		ai.WithSystem(classifierSystem),
		ai.WithPrompt("Headline: %s", text),
		ai.WithOutputType(sentimentOutput{}),
	)
	if err != nil {
		return "", 0, fmt.Errorf("classifying sentiment: %w", err)
	}

	var out sentimentOutput
	if err := resp.Output(&out); err != nil {
		return "", 0, fmt.Errorf("parsing sentiment output: %w", err)
	}

	label := strings.ToLower(strings.TrimSpace(out.Label))
	switch label {
	case pipeline.LabelNegative, pipeline.LabelNeutral, pipeline.LabelPositive:
	default:
		return "", 0, fmt.Errorf("unexpected sentiment label %q", out.Label)
	}
	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}
	return label, out.Confidence, nil
}
