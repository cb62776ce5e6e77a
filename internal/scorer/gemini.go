package scorer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"snapQuestAPI/internal/verification"
)

const defaultGeminiModel = "gemini-2.5-flash"

// Gemini asks a multimodal Gemini model to rate each label against the image
// and return the ratings as structured JSON.
type Gemini struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

func NewGemini(ctx context.Context, apiKey, model string, logger *zap.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini scorer")
	}
	if model == "" {
		model = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Gemini{client: client, model: model, logger: logger}, nil
}

var scoreSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"label": {Type: genai.TypeString},
			"score": {Type: genai.TypeNumber},
		},
		Required: []string{"label", "score"},
	},
}

func scorePrompt(labels []string) string {
	var b strings.Builder
	b.WriteString("Rate how well the photo shows each of the following labels. ")
	b.WriteString("Return one entry per label with a score between 0 and 1, where 1 means the label clearly describes the photo.\n")
	for _, l := range labels {
		b.WriteString("- ")
		b.WriteString(l)
		b.WriteString("\n")
	}
	return b.String()
}

func (g *Gemini) Score(ctx context.Context, img Image, labels []string) ([]verification.LabelScore, error) {
	if err := checkLabels(labels); err != nil {
		return nil, err
	}

	mime := img.ContentType
	if mime == "" {
		mime = "image/jpeg"
	}
	parts := []*genai.Part{
		genai.NewPartFromBytes(img.Data, mime),
		genai.NewPartFromText(scorePrompt(labels)),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	temperature := float32(0)
	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
		ResponseSchema:   scoreSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: gemini generate failed: %v", ErrUnavailable, err)
	}

	scores, err := parseGeminiScores(resp.Text(), labels)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	g.logger.Debug("Gemini scorer responded",
		zap.String("model", g.model),
		zap.Int("labels", len(labels)),
		zap.Duration("took", time.Since(start)),
	)
	return scores, nil
}

// parseGeminiScores keeps only the requested labels, matched
// case-insensitively and reported with the caller's spelling.
func parseGeminiScores(text string, labels []string) ([]verification.LabelScore, error) {
	var raw []verification.LabelScore
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &raw); err != nil {
		return nil, fmt.Errorf("malformed gemini response: %w", err)
	}

	canonical := make(map[string]string, len(labels))
	for _, l := range labels {
		canonical[strings.ToLower(strings.TrimSpace(l))] = l
	}

	out := make([]verification.LabelScore, 0, len(raw))
	for _, s := range raw {
		label, ok := canonical[strings.ToLower(strings.TrimSpace(s.Label))]
		if !ok {
			continue
		}
		out = append(out, verification.LabelScore{Label: label, Score: clamp(s.Score)})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("gemini response scored none of the requested labels")
	}
	return out, nil
}
