// Package verification decides whether a photo counts as a completion of a
// prompt, given match scores for the prompt's candidate labels.
package verification

import (
	"fmt"
	"strings"
)

const (
	HighConfidence = 0.25
	MinConfidence  = 0.15

	// MaxSuggestions bounds the labels offered after a rejection.
	MaxSuggestions = 3
)

// NegativeLabels are scored alongside the candidates so an unrelated image
// has somewhere to put its probability mass. They are never matched.
var NegativeLabels = []string{"unrelated image", "random object", "blank or blurry photo"}

type Status string

const (
	StatusVerified    Status = "verified"
	StatusAccepted    Status = "accepted"
	StatusRejected    Status = "rejected"
	StatusUnavailable Status = "unavailable"
	StatusSkipped     Status = "skipped"
	StatusOverridden  Status = "overridden"
)

// LabelScore is the scorer output for one label, in [0, 1].
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type Result struct {
	IsValid        bool     `json:"isValid"`
	Confidence     float64  `json:"confidence"`
	MatchedKeyword string   `json:"matchedKeyword,omitempty"`
	Message        string   `json:"message"`
	Suggestions    []string `json:"suggestions,omitempty"`
	Status         Status   `json:"status"`
}

// CandidateLabels appends the negative labels to the prompt labels, dropping
// any prompt label that collides with one of them.
func CandidateLabels(keywords []string) []string {
	out := make([]string, 0, len(keywords)+len(NegativeLabels))
	for _, k := range keywords {
		if !isNegative(k) {
			out = append(out, k)
		}
	}
	return append(out, NegativeLabels...)
}

func isNegative(label string) bool {
	for _, n := range NegativeLabels {
		if strings.EqualFold(label, n) {
			return true
		}
	}
	return false
}

// Decide applies the thresholds to scores. Only labels in keywords can be
// matched; scores for other labels (the negatives) are ignored. Deterministic
// for a fixed score vector.
func Decide(keywords []string, scores []LabelScore) Result {
	byLabel := make(map[string]float64, len(scores))
	for _, s := range scores {
		if cur, ok := byLabel[s.Label]; !ok || s.Score > cur {
			byLabel[s.Label] = s.Score
		}
	}

	var (
		best      string
		bestScore = -1.0
	)
	for _, k := range keywords {
		if isNegative(k) {
			continue
		}
		score, ok := byLabel[k]
		if !ok {
			continue
		}
		// first candidate wins ties, keeping the result order-stable
		if score > bestScore {
			best, bestScore = k, score
		}
	}

	switch {
	case best != "" && bestScore >= HighConfidence:
		return Result{
			IsValid:        true,
			Confidence:     bestScore,
			MatchedKeyword: best,
			Message:        fmt.Sprintf("Great shot! We're confident this shows %s.", best),
			Status:         StatusVerified,
		}
	case best != "" && bestScore >= MinConfidence:
		return Result{
			IsValid:        true,
			Confidence:     bestScore,
			MatchedKeyword: best,
			Message:        fmt.Sprintf("Photo accepted, it looks like %s.", best),
			Status:         StatusAccepted,
		}
	}

	confidence := bestScore
	if confidence < 0 {
		confidence = 0
	}
	suggestions := suggest(keywords)
	return Result{
		IsValid:     false,
		Confidence:  confidence,
		Message:     rejectionMessage(suggestions),
		Suggestions: suggestions,
		Status:      StatusRejected,
	}
}

func suggest(keywords []string) []string {
	var out []string
	for _, k := range keywords {
		if isNegative(k) {
			continue
		}
		out = append(out, k)
		if len(out) == MaxSuggestions {
			break
		}
	}
	return out
}

func rejectionMessage(suggestions []string) string {
	if len(suggestions) == 0 {
		return "This photo doesn't seem to match today's prompt. Try another shot."
	}
	return fmt.Sprintf("This photo doesn't seem to match the prompt. Try a shot showing: %s.", strings.Join(suggestions, ", "))
}

// Unavailable is the decision when the scorer cannot be reached. The
// submission goes through with zero confidence.
func Unavailable() Result {
	return Result{
		IsValid:    true,
		Confidence: 0,
		Message:    "Verification is unavailable right now, your photo was accepted without a check.",
		Status:     StatusUnavailable,
	}
}

// Skipped is the decision when there is nothing to verify against.
func Skipped() Result {
	return Result{
		IsValid: true,
		Message: "No prompt to verify against, photo accepted.",
		Status:  StatusSkipped,
	}
}

// Override marks a rejected result as force-uploaded by the user.
func Override(r Result) Result {
	r.IsValid = true
	r.Status = StatusOverridden
	r.Message = "Uploaded anyway. Verification could not match the prompt."
	return r
}
