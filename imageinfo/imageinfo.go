package imageinfo

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var ErrNotDataURL = errors.New("not a data URL")

// DataURL is a decoded RFC 2397 data URL.
type DataURL struct {
	MediaType string
	Data      []byte
}

// ParseDataURL decodes "data:[<mediatype>][;base64],<data>".
func ParseDataURL(s string) (*DataURL, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return nil, ErrNotDataURL
	}
	header, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing comma", ErrNotDataURL)
	}

	params := strings.Split(header, ";")
	mediaType := params[0]
	if mediaType == "" {
		mediaType = "text/plain"
	}
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(p, "base64") {
			isBase64 = true
		}
	}

	if !isBase64 {
		data, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to unescape data URL payload: %w", err)
		}
		return &DataURL{MediaType: mediaType, Data: []byte(data)}, nil
	}

	// Browsers sometimes emit unpadded or whitespace-wrapped base64.
	payload = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, payload)
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 payload: %w", err)
		}
	}
	return &DataURL{MediaType: mediaType, Data: data}, nil
}

// GetImageOrientation extracts the EXIF orientation tag, defaulting to 1.
func GetImageOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}

	orientation, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	orientVal, err := orientation.Int(0)
	if err != nil {
		return 1
	}

	return orientVal
}

// Dimensions returns the displayed width and height of an encoded image.
// Only the header is decoded. EXIF orientations 5-8 rotate the image by 90
// degrees, so width and height are swapped for them.
func Dimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image header: %w", err)
	}
	width, height = cfg.Width, cfg.Height
	if o := GetImageOrientation(data); o >= 5 && o <= 8 {
		width, height = height, width
	}
	return width, height, nil
}

// DataURLDimensions is ParseDataURL followed by Dimensions.
func DataURLDimensions(dataURL string) (width, height int, err error) {
	d, err := ParseDataURL(dataURL)
	if err != nil {
		return 0, 0, err
	}
	return Dimensions(d.Data)
}
