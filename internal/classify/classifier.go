// Package classify maps free-form text (expense descriptions, receipt lines) to
// chart-of-accounts candidates. The external model-backed classifier is a
// pluggable port; a deterministic name matcher is always available as fallback,
// so callers never block on the external collaborator being unavailable.
package classify

import (
	"context"
	"log/slog"
	"time"
)

// Candidate is one account the classifier may match against.
type Candidate struct {
	ID   int64
	Name string
}

// Result is the classifier's verdict. A nil MatchID means no match.
type Result struct {
	MatchID    *int64
	Confidence float64
	Reasoning  string
}

// Classifier scores text against candidates. Implementations may call out to
// an external model and must honour context cancellation.
type Classifier interface {
	Classify(ctx context.Context, text string, candidates []Candidate) (Result, error)
}

// Resolver combines an optional external classifier with the deterministic
// name matcher. Low or absent confidence is treated as "no match".
type Resolver struct {
	classifier    Classifier
	timeout       time.Duration
	minConfidence float64
	logger        *slog.Logger
}

// NewResolver constructs a Resolver. classifier may be nil, in which case only
// the deterministic matcher is used.
func NewResolver(classifier Classifier, timeout time.Duration, minConfidence float64, logger *slog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Resolver{classifier: classifier, timeout: timeout, minConfidence: minConfidence, logger: logger}
}

// Match returns the candidate id the text resolves to, or nil when nothing
// matched. Classifier errors and timeouts degrade to the deterministic path.
func (r *Resolver) Match(ctx context.Context, text string, candidates []Candidate) *int64 {
	if len(candidates) == 0 || text == "" {
		return nil
	}
	if r.classifier != nil {
		cctx, cancel := context.WithTimeout(ctx, r.timeout)
		res, err := r.classifier.Classify(cctx, text, candidates)
		cancel()
		switch {
		case err != nil:
			if r.logger != nil {
				r.logger.Warn("classifier unavailable, using name matcher", slog.Any("error", err))
			}
		case res.MatchID != nil && res.Confidence >= r.minConfidence:
			return res.MatchID
		}
	}
	return MatchByName(text, candidates)
}
