package main

import "fmt"

// MaxUploadBytes bounds multipart audio uploads.
const MaxUploadBytes = 100 << 20

// CompareRequest is the request body for POST /api/compare. Both
// fields carry fingerprints in base64 text form.
type CompareRequest struct {
	FingerprintA string `json:"fingerprint_a"`
	FingerprintB string `json:"fingerprint_b"`
}

// Validate checks if the request is valid
func (r *CompareRequest) Validate() error {
	if r.FingerprintA == "" {
		return fmt.Errorf("fingerprint_a is required")
	}
	if r.FingerprintB == "" {
		return fmt.Errorf("fingerprint_b is required")
	}
	return nil
}

// CompareResponse is the response for POST /api/compare. Score is null
// when the fingerprints share no correlation; Correlated distinguishes
// that case from a genuine score of 0.
type CompareResponse struct {
	Score      *float64 `json:"score"`
	Correlated bool     `json:"correlated"`
}

// FingerprintResponse is the response for POST /api/fingerprint
type FingerprintResponse struct {
	Fingerprint string `json:"fingerprint"`
}

// TrackDTO represents a track in API responses
type TrackDTO struct {
	ID         string `json:"id"`
	Path       string `json:"path"`
	Title      string `json:"title"`
	DurationMs int    `json:"duration_ms"`
	CreatedAt  string `json:"created_at"`
}

// ListTracksResponse is the response for GET /api/tracks
type ListTracksResponse struct {
	Tracks []TrackDTO `json:"tracks"`
	Count  int        `json:"count"`
}

// AddTrackResponse is the response for successful track addition
type AddTrackResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
	Title   string `json:"title"`
}

// DeleteTrackResponse is the response for DELETE /api/tracks/{id}
type DeleteTrackResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// DuplicatePairDTO represents one likely-duplicate pair
type DuplicatePairDTO struct {
	TrackA TrackDTO `json:"track_a"`
	TrackB TrackDTO `json:"track_b"`
	Score  float64  `json:"score"`
}

// DuplicatesResponse is the response for GET /api/duplicates
type DuplicatesResponse struct {
	Pairs     []DuplicatePairDTO `json:"pairs"`
	Count     int                `json:"count"`
	Threshold float64            `json:"threshold"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
