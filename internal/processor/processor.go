package processor

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"

	"image-vault/internal/logging"

	// Image format decoders
	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP format support
)

const (
	// MaxImageDimension is the maximum width or height loaded at full size;
	// larger sources are downscaled during load.
	MaxImageDimension = 4096

	// MaxImagePixels bounds total decoded pixels. A 20MP image uses ~80MB
	// in RGBA, which is the ceiling we accept per worker.
	MaxImagePixels = 20_000_000

	// DefaultQuality is the JPEG quality used when the caller passes 0.
	DefaultQuality = 80
)

// Processor produces resized image bytes from a source file. Format
// support and quality semantics are its concern alone.
type Processor struct {
	useVips bool
}

// New creates a Processor. When vips is true and libvips initialized
// successfully, decode-time shrinking is used for large sources.
func New(vips bool) *Processor {
	return &Processor{useVips: vips && IsVipsAvailable()}
}

// Resize decodes the source image and returns it fitted inside
// width x height as JPEG bytes.
func (p *Processor) Resize(sourcePath string, width, height, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	img, err := p.load(sourcePath, width, height)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", sourcePath, err)
	}

	fitted := imaging.Fit(img, width, height, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, fitted, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}
	return buf.Bytes(), nil
}

// Thumbnail is Resize at thumbnail quality.
func (p *Processor) Thumbnail(sourcePath string, width, height int) ([]byte, error) {
	return p.Resize(sourcePath, width, height, DefaultQuality)
}

// load opens the source image. libvips, when available, shrinks during
// decode which avoids holding the full-resolution bitmap in memory; the
// imaging path constrains oversized images after probing dimensions.
func (p *Processor) load(path string, targetWidth, targetHeight int) (image.Image, error) {
	if p.useVips {
		img, err := loadWithVips(path, targetWidth, targetHeight)
		if err == nil {
			return img, nil
		}
		logging.Debug("vips load failed for %s, falling back to imaging: %v", path, err)
	}
	return loadConstrained(path, MaxImageDimension, MaxImagePixels)
}

// loadConstrained loads an image, downscaling during the same pass when it
// exceeds the dimension or pixel limits. This prevents OOM on very large
// sources.
func loadConstrained(path string, maxDimension, maxPixels int) (image.Image, error) {
	dims, err := probeConfig(path)
	if err != nil {
		logging.Debug("could not probe dimensions of %s: %v", path, err)
		return imaging.Open(path, imaging.AutoOrientation(true))
	}

	width, height := dims.Width, dims.Height
	pixels := width * height

	if width <= maxDimension && height <= maxDimension && pixels <= maxPixels {
		return imaging.Open(path, imaging.AutoOrientation(true))
	}

	targetWidth, targetHeight := width, height
	if width > maxDimension || height > maxDimension {
		if width > height {
			targetWidth = maxDimension
			targetHeight = height * maxDimension / width
		} else {
			targetHeight = maxDimension
			targetWidth = width * maxDimension / height
		}
	}
	if targetWidth*targetHeight > maxPixels {
		scale := float64(maxPixels) / float64(targetWidth*targetHeight)
		targetWidth = int(float64(targetWidth) * scale)
		targetHeight = int(float64(targetHeight) * scale)
	}

	logging.Info("constraining large image %s from %dx%d to %dx%d", path, width, height, targetWidth, targetHeight)

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return imaging.Resize(img, targetWidth, targetHeight, imaging.Lanczos), nil
}

func probeConfig(path string) (*image.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return nil, err
	}
	return &config, nil
}
