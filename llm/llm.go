package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Client abstracts a vision-capable chat-completion provider.
// Implementations must be safe for concurrent use; the API key and model are
// supplied per call so one client can serve every candidate.
type Client interface {
	// AnalyzeImage sends the fixed nutrition prompt plus the image data URL and
	// returns the raw text of the model's reply.
	AnalyzeImage(ctx context.Context, apiKey, model, dataURL string) (string, error)
	// SourceName returns a short provider label for logs and metrics.
	SourceName() string
}

// UpstreamError is returned when the provider answers with a non-2xx status.
type UpstreamError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *UpstreamError) Error() string {
	status := strings.TrimSpace(strings.TrimPrefix(e.Status, fmt.Sprintf("%d", e.StatusCode)))
	return fmt.Sprintf("upstream error %d %s: %s", e.StatusCode, status, e.Body)
}

// Transient reports whether the failure is worth one retry: a 5xx or 408
// status, a provider body flagged UNAVAILABLE, or a timeout in the status or body.
func (e *UpstreamError) Transient() bool {
	if e.StatusCode >= 500 || e.StatusCode == http.StatusRequestTimeout {
		return true
	}
	if strings.Contains(e.Body, "UNAVAILABLE") {
		return true
	}
	text := strings.ToLower(e.Status + " " + e.Body)
	return strings.Contains(text, "timeout") || strings.Contains(text, "timed out")
}
