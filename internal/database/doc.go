// Package database is the sqlite persistence layer: collection documents
// with embedded image and artifact lists, cache folder configuration and
// usage statistics, and job records for tracked background work.
package database
