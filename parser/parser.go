package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSONFound is returned when a model reply contains no recoverable JSON.
var ErrNoJSONFound = errors.New("no JSON found in model response")

// fenceMarker matches ``` and ```json markers anywhere in the text.
var fenceMarker = regexp.MustCompile("(?i)```(?:json)?")

// StripCodeFences removes markdown code-fence markers and trims the result.
func StripCodeFences(response string) string {
	return strings.TrimSpace(fenceMarker.ReplaceAllString(response, ""))
}

// ExtractJSON recovers a single JSON value from free-form model output.
// It tries, in order: the raw text, the text with code fences removed, and the
// span from the first '{' to the last '}' of the fence-free text.
func ExtractJSON(response string) (any, error) {
	var value any
	err := json.Unmarshal([]byte(response), &value)
	if err == nil {
		return value, nil
	}

	cleaned := StripCodeFences(response)
	if err = json.Unmarshal([]byte(cleaned), &value); err == nil {
		return value, nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start != -1 && end > start {
		if err = json.Unmarshal([]byte(cleaned[start:end+1]), &value); err == nil {
			return value, nil
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrNoJSONFound, err)
}
