package models

import "time"

// Track is a fingerprinted audio file registered in the library.
type Track struct {
	ID          string    // Database ID (UUID)
	Path        string    // Source file path at registration time
	Title       string    // Display title
	Fingerprint string    // Base64 text encoding of the fingerprint
	DurationMs  int       // Fingerprinted duration in milliseconds
	CreatedAt   time.Time // Registration time
}

// DuplicatePair is one likely-duplicate relation found by a library
// scan. Score follows the matcher's convention: lower is more similar.
type DuplicatePair struct {
	TrackA Track
	TrackB Track
	Score  float64
}
