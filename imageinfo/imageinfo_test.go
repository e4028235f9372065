package imageinfo

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// createTestPNG creates a PNG image with the specified dimensions
func createTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

func createTestJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("Failed to encode JPEG: %v", err)
	}
	return buf.Bytes()
}

func TestDataURLDimensions(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		mime       string
		wantWidth  int
		wantHeight int
	}{
		{"png landscape", createTestPNG(t, 40, 30), "image/png", 40, 30},
		{"png portrait", createTestPNG(t, 12, 20), "image/png", 12, 20},
		{"jpeg without exif", createTestJPEG(t, 64, 64), "image/jpeg", 64, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dataURL := "data:" + tt.mime + ";base64," + base64.StdEncoding.EncodeToString(tt.data)
			w, h, err := DataURLDimensions(dataURL)
			if err != nil {
				t.Fatalf("DataURLDimensions() error = %v", err)
			}
			if w != tt.wantWidth || h != tt.wantHeight {
				t.Errorf("DataURLDimensions() = %dx%d, want %dx%d", w, h, tt.wantWidth, tt.wantHeight)
			}
		})
	}
}

func TestParseDataURL(t *testing.T) {
	d, err := ParseDataURL("data:image/png;base64,aGVsbG8")
	if err != nil {
		t.Fatalf("unpadded base64 should decode: %v", err)
	}
	if d.MediaType != "image/png" || string(d.Data) != "hello" {
		t.Errorf("ParseDataURL() = %q %q", d.MediaType, d.Data)
	}

	d, err = ParseDataURL("data:,hello%20world")
	if err != nil {
		t.Fatalf("plain data URL should decode: %v", err)
	}
	if d.MediaType != "text/plain" || string(d.Data) != "hello world" {
		t.Errorf("ParseDataURL() = %q %q", d.MediaType, d.Data)
	}

	if _, err := ParseDataURL("https://example.com/meal.jpg"); !errors.Is(err, ErrNotDataURL) {
		t.Errorf("expected ErrNotDataURL, got %v", err)
	}
	if _, err := ParseDataURL("data:image/png;base64"); !errors.Is(err, ErrNotDataURL) {
		t.Errorf("expected ErrNotDataURL for missing comma, got %v", err)
	}
	if _, err := ParseDataURL("data:image/png;base64,!!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
}

func TestDimensionsRejectsNonImage(t *testing.T) {
	if _, _, err := Dimensions([]byte("not an image")); err == nil {
		t.Error("expected error for non-image data")
	}
}

func TestGetImageOrientationDefaults(t *testing.T) {
	if o := GetImageOrientation(createTestJPEG(t, 8, 8)); o != 1 {
		t.Errorf("GetImageOrientation() = %d, want 1", o)
	}
}
