package converter

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/webp"
	"go.uber.org/zap"
)

const (
	FormatWebP = "webp"
	FormatJPEG = "jpeg"

	DefaultQuality = 50

	// webpMethod trades encode speed for size; 6 is the slowest, smallest.
	webpMethod = 6
)

type Options struct {
	Format  string
	Quality int
	// MaxWidth and MaxHeight bound the output; zero leaves that side as is.
	MaxWidth  int
	MaxHeight int
}

type Converter struct {
	opts   Options
	logger *zap.Logger
}

func NewConverter(opts Options, logger *zap.Logger) (*Converter, error) {
	switch opts.Format {
	case "":
		opts.Format = FormatWebP
	case FormatWebP, FormatJPEG:
	case "jpg":
		opts.Format = FormatJPEG
	default:
		return nil, fmt.Errorf("unsupported format: %s", opts.Format)
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}
	return &Converter{opts: opts, logger: logger}, nil
}

// Extension is the file extension, without dot, of converted output.
func (c *Converter) Extension() string {
	if c.opts.Format == FormatJPEG {
		return "jpg"
	}
	return c.opts.Format
}

func (c *Converter) ContentType() string {
	return "image/" + c.opts.Format
}

// Convert decodes a source image and re-encodes it in the configured lossy
// format.
func (c *Converter) Convert(r io.Reader) ([]byte, error) {
	src, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	processed := c.resize(src)

	var buf bytes.Buffer
	switch c.opts.Format {
	case FormatJPEG:
		if err := imaging.Encode(&buf, processed, imaging.JPEG, imaging.JPEGQuality(c.opts.Quality)); err != nil {
			return nil, fmt.Errorf("failed to encode JPEG: %w", err)
		}
	case FormatWebP:
		if err := webp.Encode(&buf, processed, webp.Options{Quality: c.opts.Quality, Method: webpMethod}); err != nil {
			return nil, fmt.Errorf("failed to encode WebP: %w", err)
		}
	}

	c.logger.Debug("Conversion completed",
		zap.String("format", c.opts.Format),
		zap.Int("width", processed.Bounds().Dx()),
		zap.Int("height", processed.Bounds().Dy()),
		zap.Int("bytes", buf.Len()),
	)

	return buf.Bytes(), nil
}

func (c *Converter) resize(src image.Image) image.Image {
	width, height := c.opts.MaxWidth, c.opts.MaxHeight
	if width <= 0 && height <= 0 {
		return src
	}

	bounds := src.Bounds()
	if width <= 0 {
		width = bounds.Dx()
	}
	if height <= 0 {
		height = bounds.Dy()
	}
	if bounds.Dx() <= width && bounds.Dy() <= height {
		return src
	}

	return imaging.Fit(src, width, height, imaging.Lanczos)
}
