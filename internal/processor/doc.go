// Package processor turns source images into resized JPEG bytes. It is the
// opaque image-processing capability behind artifact generation: callers
// hand it a path and target dimensions and get bytes back.
package processor
