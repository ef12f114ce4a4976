// Package scanner discovers potential image collections under a parent
// directory. A directory is a candidate only when it directly contains
// image files; archives are candidates when they hold at least one image
// entry. Discovery never aborts on a single bad entry.
package scanner
