package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutriscan/llm"
)

const testDataURL = "data:image/png;base64,iVBORw0KGgo="

func TestAnalyzeImage_SendsFixedRequest(t *testing.T) {
	var captured map[string]any
	var auth, referer, title string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		referer = r.Header.Get("HTTP-Referer")
		title = r.Header.Get("X-Title")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"notes\":\"ok\"}"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, WithAttribution("https://nutriscan.app", "nutriscan"))
	out, err := c.AnalyzeImage(context.Background(), "sk-test", "google/gemini-2.5-flash", testDataURL)
	require.NoError(t, err)

	assert.Equal(t, `{"notes":"ok"}`, out)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "https://nutriscan.app", referer)
	assert.Equal(t, "nutriscan", title)

	assert.Equal(t, "google/gemini-2.5-flash", captured["model"])
	assert.Equal(t, 0.2, captured["temperature"])
	assert.Equal(t, float64(4000), captured["max_tokens"])

	messages, ok := captured["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)

	system := messages[0].(map[string]any)
	assert.Equal(t, "system", system["role"])
	assert.Contains(t, system["content"], "strict JSON only")

	user := messages[1].(map[string]any)
	assert.Equal(t, "user", user["role"])
	parts := user["content"].([]any)
	require.Len(t, parts, 2)
	image := parts[1].(map[string]any)
	assert.Equal(t, "image_url", image["type"])
	assert.Equal(t, testDataURL, image["image_url"].(map[string]any)["url"])
}

func TestAnalyzeImage_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"status":"UNAVAILABLE"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.AnalyzeImage(context.Background(), "k", "m", testDataURL)
	require.Error(t, err)

	var upErr *llm.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusServiceUnavailable, upErr.StatusCode)
	assert.Contains(t, upErr.Body, "UNAVAILABLE")
	assert.True(t, upErr.Transient())
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "Service Unavailable")
}

func TestAnalyzeImage_ClientErrorIsNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad image", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 5*time.Second).AnalyzeImage(context.Background(), "k", "m", testDataURL)
	var upErr *llm.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, 400, upErr.StatusCode)
	assert.False(t, upErr.Transient())
}

func TestAnalyzeImage_ContentShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"no choices", `{"choices":[]}`, ""},
		{"missing content", `{"choices":[{"message":{}}]}`, ""},
		{"null content", `{"choices":[{"message":{"content":null}}]}`, ""},
		{"content parts", `{"choices":[{"message":{"content":[{"type":"text","text":"{\"a\":"},{"type":"text","text":"1}"}]}}]}`, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			out, err := NewClient(srv.URL, 5*time.Second).AnalyzeImage(context.Background(), "k", "m", testDataURL)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestAnalyzeImage_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway</html>`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 5*time.Second).AnalyzeImage(context.Background(), "k", "m", testDataURL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse response")
}
