// Package collection defines the core domain model shared across the
// application: collections, their image entries, derived artifacts,
// cache folders, discovery candidates, onboarding results and the
// sentinel error taxonomy.
package collection
