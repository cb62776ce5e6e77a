package scorer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"snapQuestAPI/internal/verification"
)

const defaultHuggingFaceURL = "https://api-inference.huggingface.co/models/openai/clip-vit-base-patch32"

// HuggingFace scores through a zero-shot image classification endpoint
// (CLIP) on the Hugging Face inference API or a compatible server.
type HuggingFace struct {
	url    string
	token  string
	client *http.Client
	logger *zap.Logger
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
}

type hfScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type hfError struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time,omitempty"`
}

// NewHuggingFace builds the client. A nil httpClient gets a default with a
// 30s ceiling; request deadlines come from ctx.
func NewHuggingFace(url, token string, httpClient *http.Client, logger *zap.Logger) (*HuggingFace, error) {
	if url == "" {
		url = defaultHuggingFaceURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HuggingFace{url: url, token: token, client: httpClient, logger: logger}, nil
}

func (h *HuggingFace) Score(ctx context.Context, img Image, labels []string) ([]verification.LabelScore, error) {
	if err := checkLabels(labels); err != nil {
		return nil, err
	}

	body, err := json.Marshal(hfRequest{
		Inputs:     base64.StdEncoding.EncodeToString(img.Data),
		Parameters: hfParameters{CandidateLabels: labels},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode scorer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build scorer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr hfError
		_ = json.Unmarshal(raw, &apiErr)
		h.logger.Warn("HuggingFace scorer returned an error",
			zap.Int("status", resp.StatusCode),
			zap.String("error", apiErr.Error),
			zap.Float64("estimated_time", apiErr.EstimatedTime),
		)
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, apiErr.Error)
	}

	var scores []hfScore
	if err := json.Unmarshal(raw, &scores); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
	}

	out := make([]verification.LabelScore, 0, len(scores))
	for _, s := range scores {
		out = append(out, verification.LabelScore{Label: s.Label, Score: clamp(s.Score)})
	}

	h.logger.Debug("HuggingFace scorer responded",
		zap.Int("labels", len(labels)),
		zap.Duration("took", time.Since(start)),
	)
	return out, nil
}
