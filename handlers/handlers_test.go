package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutriscan/analyzer"
	"nutriscan/config"
	"nutriscan/llm"
	"nutriscan/models"
	"nutriscan/stubllm"
)

type failingClient struct {
	err   error
	calls int
}

func (f *failingClient) SourceName() string { return "failing" }

func (f *failingClient) AnalyzeImage(ctx context.Context, apiKey, model, dataURL string) (string, error) {
	f.calls++
	return "", f.err
}

func setupRouter(cfg *config.Config, client llm.Client) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandlers(analyzer.New(cfg, client))

	r := gin.New()
	r.GET("/health", h.HealthCheck)
	r.GET("/version", h.Version)
	r.POST("/analyze/upload", h.AnalyzeUpload)
	r.POST("/analyze/camera", h.AnalyzeCamera)
	return r
}

func keyedConfig() *config.Config {
	return &config.Config{
		Provider:      config.ProviderOpenAI,
		SharedKey:     "shared",
		FamilyAModels: []string{"a1", "a2"},
		FamilyBModels: []string{"b1"},
		RetryDelay:    time.Millisecond,
	}
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func TestAnalyzeRequiresDataURL(t *testing.T) {
	client := &failingClient{}
	r := setupRouter(keyedConfig(), client)

	for _, body := range []string{`{}`, `{"dataURL":""}`, `{"dataURL":"   "}`, `not json`, ``} {
		w := post(r, "/analyze/upload", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "dataURL is required", errorBody(t, w))
	}
	assert.Zero(t, client.calls)
}

func TestAnalyzeNotConfigured(t *testing.T) {
	cfg := keyedConfig()
	cfg.SharedKey = ""
	client := &failingClient{}
	r := setupRouter(cfg, client)

	w := post(r, "/analyze/camera", `{"dataURL":"data:image/png;base64,AAAA"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "API keys not configured", errorBody(t, w))
	assert.Zero(t, client.calls)
}

func TestAnalyzeExhaustedReturnsBadGateway(t *testing.T) {
	upErr := &llm.UpstreamError{StatusCode: 400, Status: "400 Bad Request", Body: "invalid image"}
	client := &failingClient{err: upErr}
	r := setupRouter(keyedConfig(), client)

	w := post(r, "/analyze/upload", `{"dataURL":"data:image/png;base64,AAAA"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, upErr.Error(), errorBody(t, w))
	assert.Equal(t, 3, client.calls, "each upload candidate is tried once")
}

func TestAnalyzeWithStubProvider(t *testing.T) {
	cfg := keyedConfig()
	cfg.SharedKey = ""
	cfg.Provider = config.ProviderStub
	r := setupRouter(cfg, stubllm.NewClient())

	for _, path := range []string{"/analyze/upload", "/analyze/camera"} {
		w := post(r, path, `{"dataURL":"data:image/png;base64,AAAA"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var res models.AnalysisResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Len(t, res.Composition, 2)
		assert.Greater(t, res.Totals.CaloriesKcal, 0.0)
		assert.Contains(t, []string{"portrait", "landscape", "square"}, res.ImageMeta.Orientation)
	}
}

type fixedClient struct{ reply string }

func (f fixedClient) SourceName() string { return "fixed" }

func (f fixedClient) AnalyzeImage(ctx context.Context, apiKey, model, dataURL string) (string, error) {
	return f.reply, nil
}

func TestAnalyzeOverflowingTotalsStillEncode(t *testing.T) {
	reply := `{"composition":[{"nutrition":{"calories_kcal":1e308}},{"nutrition":{"calories_kcal":1e308}}]}`
	r := setupRouter(keyedConfig(), fixedClient{reply: reply})

	w := post(r, "/analyze/upload", `{"dataURL":"data:image/png;base64,AAAA"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var res models.AnalysisResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res), "body: %q", w.Body.String())
	assert.Len(t, res.Composition, 2)
	assert.Equal(t, math.MaxFloat64, res.Totals.CaloriesKcal)
}

func TestHealthCheck(t *testing.T) {
	r := setupRouter(keyedConfig(), &failingClient{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "nutriscan", body["service"])
}

func TestVersion(t *testing.T) {
	r := setupRouter(keyedConfig(), &failingClient{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"service":"nutriscan"`)
}
