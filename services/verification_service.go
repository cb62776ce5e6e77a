package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"snapQuestAPI/internal/keywords"
	"snapQuestAPI/internal/scorer"
	"snapQuestAPI/internal/verification"
)

const defaultScorerTimeout = 8 * time.Second

// VerificationService runs a photo past the match scorer. It never fails:
// scorer errors and timeouts degrade to an unverified accept.
type VerificationService struct {
	scorer    scorer.Scorer
	extractor *keywords.Extractor
	timeout   time.Duration
	logger    *zap.Logger
}

func NewVerificationService(sc scorer.Scorer, extractor *keywords.Extractor, timeout time.Duration, logger *zap.Logger) *VerificationService {
	if timeout <= 0 {
		timeout = defaultScorerTimeout
	}
	return &VerificationService{scorer: sc, extractor: extractor, timeout: timeout, logger: logger}
}

// Verify checks img against the prompt text.
func (s *VerificationService) Verify(ctx context.Context, img scorer.Image, text string) verification.Result {
	kws := s.extractor.Extract(text)
	if len(kws) == 0 {
		verificationOutcomes.WithLabelValues(string(verification.StatusSkipped)).Inc()
		return verification.Skipped()
	}

	labels := verification.CandidateLabels(kws)
	if len(labels) > scorer.MaxLabels {
		labels = append(labels[:scorer.MaxLabels-len(verification.NegativeLabels)], verification.NegativeLabels...)
	}

	scoreCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	scores, err := s.scorer.Score(scoreCtx, img, labels)
	scorerLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Warn("Verify: match scorer unavailable, accepting unverified",
			zap.Strings("labels", labels),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		verificationOutcomes.WithLabelValues(string(verification.StatusUnavailable)).Inc()
		return verification.Unavailable()
	}

	res := verification.Decide(kws, scores)
	s.logger.Debug("Verify: decided",
		zap.String("status", string(res.Status)),
		zap.Float64("confidence", res.Confidence),
		zap.String("matched", res.MatchedKeyword),
	)
	verificationOutcomes.WithLabelValues(string(res.Status)).Inc()
	return res
}
