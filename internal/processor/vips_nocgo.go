//go:build !cgo

package processor

import (
	"fmt"
	"image"
	"sync"
)

var (
	vipsInitMutex sync.Mutex
	vipsAvailable bool
)

// InitVips initializes libvips. govips requires cgo, so in a no-cgo build
// libvips is never available and callers fall back to pure-Go decoding.
func InitVips() error {
	return fmt.Errorf("libvips support requires cgo (built with CGO_ENABLED=0)")
}

// ShutdownVips releases libvips resources.
func ShutdownVips() {}

// IsVipsAvailable reports whether libvips is initialized.
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// loadWithVips loads and shrinks an image during decode; unavailable
// without cgo.
func loadWithVips(path string, targetWidth, targetHeight int) (image.Image, error) {
	return nil, fmt.Errorf("libvips not available")
}
