package processor

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeTestPNG(t *testing.T, path string, width, height int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write test png: %v", err)
	}
}

func TestResizeFitsWithinTarget(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	writeTestPNG(t, src, 800, 400)

	p := New(false)
	data, err := p.Resize(src, 200, 200, 80)
	if err != nil {
		t.Fatalf("Resize failed: %v", err)
	}

	out, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not valid JPEG: %v", err)
	}
	bounds := out.Bounds()
	if bounds.Dx() > 200 || bounds.Dy() > 200 {
		t.Errorf("output %dx%d exceeds 200x200", bounds.Dx(), bounds.Dy())
	}
	// Aspect ratio preserved: 800x400 fitted into 200x200 is 200x100.
	if bounds.Dx() != 200 || bounds.Dy() != 100 {
		t.Errorf("output %dx%d, want 200x100", bounds.Dx(), bounds.Dy())
	}
}

func TestResizeDefaultQuality(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	writeTestPNG(t, src, 100, 100)

	p := New(false)
	if _, err := p.Resize(src, 50, 50, 0); err != nil {
		t.Errorf("Resize with zero quality failed: %v", err)
	}
	if _, err := p.Resize(src, 50, 50, 150); err != nil {
		t.Errorf("Resize with out-of-range quality failed: %v", err)
	}
}

func TestResizeMissingSource(t *testing.T) {
	p := New(false)
	if _, err := p.Resize(filepath.Join(t.TempDir(), "missing.png"), 100, 100, 80); err == nil {
		t.Error("Resize of missing file did not fail")
	}
}

func TestThumbnail(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	writeTestPNG(t, src, 640, 480)

	p := New(false)
	data, err := p.Thumbnail(src, 200, 200)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}
	if len(data) == 0 {
		t.Error("Thumbnail returned no bytes")
	}
}
