// Package logging provides leveled logging for the image vault service.
// The level is read once from the DEBUG and LOG_LEVEL environment
// variables; messages below the configured level are suppressed.
package logging
