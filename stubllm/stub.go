package stubllm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Client is a deterministic, no-network vision stub intended for CI and local end-to-end tests.
// It returns schema-valid nutrition JSON so parsing and normalization exercise the full path.
type Client struct{}

func NewClient() *Client { return &Client{} }

func (c *Client) SourceName() string { return "Stub" }

func (c *Client) AnalyzeImage(ctx context.Context, apiKey, model, dataURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Output is stable per (model, image) so repeated runs compare equal.
	sum := sha256.Sum256([]byte(model + "\x00" + dataURL))
	seed := binary.BigEndian.Uint32(sum[:4])
	serving := float64(100 + seed%200)

	out := map[string]any{
		// Zero dimensions let the server fill them in from the image itself.
		"image_meta": map[string]any{"width": 0, "height": 0, "orientation": ""},
		"composition": []any{
			map[string]any{
				"label":         fmt.Sprintf("stub dish %x", sum[:3]),
				"confidence":    0.9,
				"serving_est_g": serving,
				"bbox_norm":     map[string]any{"x": 0.1, "y": 0.1, "w": 0.5, "h": 0.5},
				"nutrition": map[string]any{
					"calories_kcal": serving * 1.5,
					"macros": map[string]any{
						"protein_g": serving * 0.1,
						"carbs_g":   serving * 0.2,
						"fat_g":     serving * 0.05,
						"fiber_g":   2,
						"sugar_g":   3,
					},
					"micros": map[string]any{
						"sodium_mg":      200,
						"potassium_mg":   150,
						"calcium_mg":     40,
						"iron_mg":        1.2,
						"vitamin_a_mcg":  30,
						"vitamin_c_mg":   5,
						"cholesterol_mg": 10,
					},
					"allergens": []any{"gluten"},
				},
			},
			map[string]any{
				"label":         "side salad",
				"confidence":    0.6,
				"serving_est_g": 80,
				"bbox_norm":     map[string]any{"x": 0.6, "y": 0.5, "w": 0.3, "h": 0.3},
				"nutrition": map[string]any{
					"calories_kcal": 40,
					"macros":        map[string]any{"protein_g": 1, "carbs_g": 6, "fat_g": 1, "fiber_g": 2, "sugar_g": 2},
					"micros":        map[string]any{"sodium_mg": 20, "vitamin_c_mg": 12},
					"allergens":     []any{},
				},
			},
		},
		"notes": "Stubbed analysis; values are not real estimates.",
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return "```json\n" + string(b) + "\n```", nil
}
