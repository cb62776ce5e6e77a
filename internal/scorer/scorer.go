// Package scorer talks to the external vision-language capability that
// scores how well an image matches each of a set of text labels.
package scorer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"snapQuestAPI/internal/verification"
)

// MaxLabels is the most labels a single request may carry.
const MaxLabels = 11

// ErrUnavailable means no score could be produced. Callers fall back
// instead of failing the submission.
var ErrUnavailable = errors.New("match scorer unavailable")

type Image struct {
	Data        []byte
	ContentType string
}

type Scorer interface {
	Score(ctx context.Context, img Image, labels []string) ([]verification.LabelScore, error)
}

// Config picks and configures a provider.
type Config struct {
	Provider    string // huggingface | gemini | none
	URL         string
	Token       string
	GeminiKey   string
	GeminiModel string
}

// New returns the configured Scorer. Provider "none" (or empty) yields a
// scorer that always reports ErrUnavailable.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Scorer, error) {
	switch cfg.Provider {
	case "", "none":
		logger.Warn("Match scorer disabled, submissions will be accepted unverified")
		return Disabled{}, nil
	case "huggingface":
		return NewHuggingFace(cfg.URL, cfg.Token, nil, logger)
	case "gemini":
		return NewGemini(ctx, cfg.GeminiKey, cfg.GeminiModel, logger)
	}
	return nil, fmt.Errorf("unknown scorer provider %q", cfg.Provider)
}

// Disabled is the Scorer used when no provider is configured.
type Disabled struct{}

func (Disabled) Score(context.Context, Image, []string) ([]verification.LabelScore, error) {
	return nil, ErrUnavailable
}

func checkLabels(labels []string) error {
	if len(labels) == 0 {
		return fmt.Errorf("at least one label is required")
	}
	if len(labels) > MaxLabels {
		return fmt.Errorf("too many labels: %d > %d", len(labels), MaxLabels)
	}
	return nil
}

func clamp(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}
