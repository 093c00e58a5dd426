// Package imaging resizes screenshots and report figures. It wraps
// disintegration/imaging and re-encodes in the source format, so a
// JPEG in yields a JPEG out.
package imaging

import (
	"bytes"
	"fmt"
	"image"

	di "github.com/disintegration/imaging"

	"github.com/satchelworks/satchel/internal/payload"
)

// Resize modes.
const (
	ModeStretch = "stretch" // exact dimensions, aspect ignored
	ModeFit     = "fit"     // shrink to fit inside, aspect kept
	ModeFill    = "fill"    // crop to fill exactly, aspect kept
)

const jpegQuality = 85

// Resize scales an encoded image and returns the re-encoded bytes
// plus the format name. In stretch mode one of width or height may be
// zero to preserve the aspect ratio.
func Resize(data []byte, width, height int, mode string) ([]byte, string, error) {
	if width < 0 || height < 0 || (width == 0 && height == 0) {
		return nil, "", payload.E("invalid_argument", "width and height must be positive, got %dx%d", width, height)
	}

	src, format, err := decode(data)
	if err != nil {
		return nil, "", err
	}

	var out image.Image
	switch mode {
	case ModeStretch, "":
		out = di.Resize(src, width, height, di.Lanczos)
	case ModeFit:
		if width == 0 || height == 0 {
			return nil, "", payload.E("invalid_argument", "%s mode needs both width and height", mode)
		}
		out = di.Fit(src, width, height, di.Lanczos)
	case ModeFill:
		if width == 0 || height == 0 {
			return nil, "", payload.E("invalid_argument", "%s mode needs both width and height", mode)
		}
		out = di.Fill(src, width, height, di.Center, di.Lanczos)
	default:
		return nil, "", payload.E("invalid_argument", "unknown resize mode %q (want stretch, fit or fill)", mode)
	}

	encoded, err := encode(out, format)
	if err != nil {
		return nil, "", err
	}
	return encoded, format, nil
}

// Thumbnail scales an image down to fit inside a maxEdge square.
// Images already small enough are returned re-encoded but unscaled.
func Thumbnail(data []byte, maxEdge int) ([]byte, string, error) {
	if maxEdge <= 0 {
		return nil, "", payload.E("invalid_argument", "max edge must be positive, got %d", maxEdge)
	}
	src, format, err := decode(data)
	if err != nil {
		return nil, "", err
	}
	bounds := src.Bounds()
	out := src
	if bounds.Dx() > maxEdge || bounds.Dy() > maxEdge {
		out = di.Fit(src, maxEdge, maxEdge, di.Lanczos)
	}
	encoded, err := encode(out, format)
	if err != nil {
		return nil, "", err
	}
	return encoded, format, nil
}

// Info reports the dimensions and format of an encoded image without
// a full decode.
func Info(data []byte) (width, height int, format string, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", payload.E("invalid_argument", "not a recognized image: %v", err)
	}
	return cfg.Width, cfg.Height, format, nil
}

func decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", payload.E("invalid_argument", "decoding image: %v", err)
	}
	return img, format, nil
}

// encode writes img back in the named source format. Formats without
// an encoder fall back to PNG.
func encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case "jpeg":
		err = di.Encode(&buf, img, di.JPEG, di.JPEGQuality(jpegQuality))
	case "gif":
		err = di.Encode(&buf, img, di.GIF)
	case "bmp":
		err = di.Encode(&buf, img, di.BMP)
	default:
		err = di.Encode(&buf, img, di.PNG)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", format, err)
	}
	return buf.Bytes(), nil
}
