// Package cachefolder decides where derived artifacts live. The registry
// publishes versioned snapshots of the active folder set; the selector is a
// pure hash-based placement function over a snapshot.
package cachefolder
