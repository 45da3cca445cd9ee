package content

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	"image/png"
	"strings"

	"github.com/v0idness/archipanion-ve/internal/domain"
)

const (
	mimePNG  = "image/png"
	mimeText = "text/plain;charset=utf-8"
)

// EncodeDataURL renders image and text elements as base64 data URLs.
func EncodeDataURL(e Element) (string, error) {
	switch c := e.(type) {
	case ImageContent:
		img, err := c.Image()
		if err != nil {
			return "", fmt.Errorf("read image: %w", err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return "", fmt.Errorf("encode png: %w", err)
		}
		return "data:" + mimePNG + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
	case TextContent:
		text, err := c.Text()
		if err != nil {
			return "", fmt.Errorf("read text: %w", err)
		}
		return "data:" + mimeText + ";base64," + base64.StdEncoding.EncodeToString([]byte(text)), nil
	default:
		return "", fmt.Errorf("%w: data url for %s content", domain.ErrUnsupportedOperation, e.Type())
	}
}

// DecodeDataURL parses a base64 data URL and allocates the matching element via f.
func DecodeDataURL(raw string, f Factory) (Element, error) {
	rest, ok := strings.CutPrefix(raw, "data:")
	if !ok {
		return nil, fmt.Errorf("%w: not a data url", domain.ErrInvalidInput)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("%w: data url without payload", domain.ErrInvalidInput)
	}
	meta, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, fmt.Errorf("%w: only base64 data urls are supported", domain.ErrInvalidInput)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %w", domain.ErrInvalidInput, err)
	}

	mime, _, _ := strings.Cut(meta, ";")
	switch {
	case strings.HasPrefix(mime, "image/"):
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: decode image: %w", domain.ErrInvalidInput, err)
		}
		return f.NewImage(img)
	case strings.HasPrefix(mime, "text/"):
		return f.NewText(string(data))
	default:
		return nil, fmt.Errorf("%w: media type %q", domain.ErrUnsupportedOperation, mime)
	}
}
