package analyzer

import (
	"context"
	"errors"
	"net"
	"regexp"
	"time"

	"github.com/apex/log"

	"nutriscan/config"
	"nutriscan/imageinfo"
	"nutriscan/llm"
	"nutriscan/metrics"
	"nutriscan/models"
	"nutriscan/nutrition"
	"nutriscan/parser"
)

// ErrAllCandidatesFailed matches every error returned after the candidate list is exhausted.
var ErrAllCandidatesFailed = errors.New("all candidates failed")

const maxAttemptsPerCandidate = 2

// transientPattern matches failure text from errors that carry no status code.
var transientPattern = regexp.MustCompile(`\b5\d\d\b|UNAVAILABLE|(?i:timeout|timed out)`)

// ExhaustedError reports the last failure seen once no candidate succeeded.
// Its message is the last error's message so callers can surface it directly.
type ExhaustedError struct {
	Last error
}

func (e *ExhaustedError) Error() string {
	if e.Last == nil {
		return ErrAllCandidatesFailed.Error()
	}
	return e.Last.Error()
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

func (e *ExhaustedError) Is(target error) bool { return target == ErrAllCandidatesFailed }

// Analyzer runs the ordered fallback over candidates for one image.
type Analyzer struct {
	cfg        *config.Config
	client     llm.Client
	retryDelay time.Duration
}

func New(cfg *config.Config, client llm.Client) *Analyzer {
	return &Analyzer{
		cfg:        cfg,
		client:     client,
		retryDelay: cfg.RetryDelay,
	}
}

// Run builds the candidate list for route and analyzes dataURL with it.
func (a *Analyzer) Run(ctx context.Context, route Route, dataURL string) (*models.AnalysisResult, error) {
	candidates, err := BuildCandidates(a.cfg, route)
	if err != nil {
		return nil, err
	}
	return a.Analyze(ctx, candidates, dataURL)
}

// Analyze tries candidates in order and returns the first normalized result.
// A candidate is retried once after a transient failure; any other failure,
// or a failed retry, moves on to the next candidate.
func (a *Analyzer) Analyze(ctx context.Context, candidates []Candidate, dataURL string) (*models.AnalysisResult, error) {
	var lastErr error

	for _, c := range candidates {
		for attempt := 1; attempt <= maxAttemptsPerCandidate; attempt++ {
			result, err := a.attempt(ctx, c, dataURL)
			if err == nil {
				metrics.AttemptsTotal.WithLabelValues(c.Model, "success").Inc()
				log.WithFields(log.Fields{
					"model":   c.Model,
					"family":  c.Family,
					"attempt": attempt,
					"items":   len(result.Composition),
				}).Info("analyze.success")
				return result, nil
			}

			lastErr = err
			metrics.AttemptsTotal.WithLabelValues(c.Model, outcome(err)).Inc()
			transient := attempt == 1 && IsTransient(err)
			log.WithFields(log.Fields{
				"model":     c.Model,
				"family":    c.Family,
				"attempt":   attempt,
				"transient": transient,
				"error":     err.Error(),
			}).Warn("analyze.attempt.failed")

			if !transient {
				break
			}
			metrics.RetriesTotal.WithLabelValues(c.Model).Inc()
			if err := wait(ctx, a.retryDelay); err != nil {
				return nil, &ExhaustedError{Last: err}
			}
		}
	}

	return nil, &ExhaustedError{Last: lastErr}
}

func (a *Analyzer) attempt(ctx context.Context, c Candidate, dataURL string) (*models.AnalysisResult, error) {
	text, err := a.client.AnalyzeImage(ctx, c.APIKey, c.Model, dataURL)
	if err != nil {
		return nil, err
	}

	raw, err := parser.ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	result := nutrition.Normalize(raw)
	backfillImageMeta(&result.ImageMeta, dataURL)
	return &result, nil
}

// backfillImageMeta fills in pixel dimensions from the image itself when the
// model reported none.
func backfillImageMeta(meta *models.ImageMeta, dataURL string) {
	if meta.Width != 0 || meta.Height != 0 {
		return
	}
	w, h, err := imageinfo.DataURLDimensions(dataURL)
	if err != nil {
		log.Debugf("image meta backfill skipped: %v", err)
		return
	}
	meta.Width, meta.Height = w, h
	meta.Orientation = nutrition.DeriveOrientation(w, h)
}

// IsTransient reports whether err is worth retrying the same candidate once:
// a 5xx or UNAVAILABLE upstream response, or a timeout.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, parser.ErrNoJSONFound) || errors.Is(err, context.Canceled) {
		return false
	}

	var upErr *llm.UpstreamError
	if errors.As(err, &upErr) {
		return upErr.Transient()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return transientPattern.MatchString(err.Error())
}

func outcome(err error) string {
	var upErr *llm.UpstreamError
	switch {
	case errors.As(err, &upErr):
		return "upstream_error"
	case errors.Is(err, parser.ErrNoJSONFound):
		return "parse_error"
	default:
		return "error"
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
