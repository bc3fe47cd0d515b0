package audioprint

import (
	"context"

	"audioprint/pkg/models"
)

type Service interface {
	// Fingerprint decodes the audio file at audioPath and returns its
	// fingerprint in base64 text form.
	Fingerprint(ctx context.Context, audioPath string) (string, error)

	// Compare scores two base64 fingerprints. A nil score means the
	// fingerprints share no correlation at all, which is distinct from
	// a score of 0 (identical audio).
	Compare(fpA, fpB string) (*float64, error)

	// AddTrack fingerprints an audio file and registers it in the
	// library, returning the track ID.
	AddTrack(ctx context.Context, audioPath, title string) (string, error)

	// FindDuplicates scans the library for track pairs whose similarity
	// score is at or below threshold.
	FindDuplicates(threshold float64) ([]models.DuplicatePair, error)

	GetTrackByID(trackID string) (*models.Track, error)
	ListTracks() ([]models.Track, error)
	DeleteTrack(trackID string) error
	Close() error
}

type Storage interface {
	SaveTrack(path, title, fingerprintText string, durationMs int) (string, error)
	GetTrackByID(trackID string) (*models.Track, error)
	ListTracks() ([]models.Track, error)
	DeleteTrackByID(trackID string) error
	FindDuplicates(threshold float64) ([]models.DuplicatePair, error)
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
