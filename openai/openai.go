package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nutriscan/llm"
)

// DefaultEndpoint is an OpenAI-compatible router that serves several model families.
const DefaultEndpoint = "https://openrouter.ai/api/v1/chat/completions"

const (
	temperature = 0.2
	maxTokens   = 4000
)

const promptSystem = `You are a registered dietitian and food-recognition expert.
You look at a single photo of a meal and estimate what is on the plate and its nutrition.
Respond with strict JSON only: one JSON object, no markdown, no code fences, no commentary.`

const promptUser = `Analyze the food in this image.

1. Itemize every distinct food or drink you can see as one entry in "composition".
2. For each item estimate the serving weight in grams ("serving_est_g") and your confidence 0..1.
3. For each item give nutrition for that serving: calories, macros, micros and allergens.
4. For each item give a bounding box normalized to the image size, x/y/w/h each in 0..1.
5. Sum all items into "totals".

Use exactly this schema:
{
  "image_meta": {"width": <int>, "height": <int>, "orientation": "portrait|landscape|square"},
  "composition": [
    {
      "label": "<food name>",
      "confidence": <0..1>,
      "serving_est_g": <number>,
      "bbox_norm": {"x": <0..1>, "y": <0..1>, "w": <0..1>, "h": <0..1>},
      "nutrition": {
        "calories_kcal": <number>,
        "macros": {"protein_g": <n>, "carbs_g": <n>, "fat_g": <n>, "fiber_g": <n>, "sugar_g": <n>},
        "micros": {"sodium_mg": <n>, "potassium_mg": <n>, "calcium_mg": <n>, "iron_mg": <n>,
                   "vitamin_a_mcg": <n>, "vitamin_c_mg": <n>, "cholesterol_mg": <n>},
        "allergens": ["<allergen>"]
      }
    }
  ],
  "totals": {
    "calories_kcal": <number>,
    "macros": {...same keys...},
    "micros": {...same keys...},
    "serving_total_g": <number>,
    "allergens": ["<allergen>"]
  },
  "notes": "<short caveats, optional>"
}`

type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ImageContent struct {
	Type     string   `json:"type"`
	ImageURL ImageURL `json:"image_url"`
}

type ChatRequest struct {
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []Message `json:"messages"`
}

type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content any `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client talks to one OpenAI-compatible chat-completions endpoint.
type Client struct {
	endpoint string
	referer  string
	title    string
	client   *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithAttribution sets the HTTP-Referer and X-Title headers some routers use for app rankings.
func WithAttribution(referer, title string) Option {
	return func(c *Client) {
		c.referer = referer
		c.title = title
	}
}

// NewClient creates a client for endpoint; an empty endpoint means DefaultEndpoint.
func NewClient(endpoint string, timeout time.Duration, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SourceName identifies this provider in logs and metrics
func (c *Client) SourceName() string {
	return "OpenAI-compatible"
}

// AnalyzeImage sends one chat completion with the nutrition prompt and the image.
func (c *Client) AnalyzeImage(ctx context.Context, apiKey, model, dataURL string) (string, error) {
	reqBody := ChatRequest{
		Model:       model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Messages: []Message{
			{
				Role:    "system",
				Content: promptSystem,
			},
			{
				Role: "user",
				Content: []any{
					TextContent{Type: "text", Text: promptUser},
					ImageContent{Type: "image_url", ImageURL: ImageURL{URL: dataURL}},
				},
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &llm.UpstreamError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", nil
	}

	return contentText(chatResp.Choices[0].Message.Content), nil
}

// contentText flattens a message content that is either a string or an array
// of typed parts.
func contentText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var sb strings.Builder
		for _, p := range v {
			part, ok := p.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := part["text"].(string); ok {
				sb.WriteString(text)
			}
		}
		return sb.String()
	default:
		return ""
	}
}
