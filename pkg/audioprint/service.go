// Package audioprint is the high-level facade over fingerprint
// generation, comparison and the track library.
package audioprint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"audioprint/pkg/audioprint/audio"
	"audioprint/pkg/audioprint/fingerprint"
	"audioprint/pkg/logger"
	"audioprint/pkg/models"
)

// readBlock is the PCM block size fed from the decoder into the
// generator.
const readBlock = 8192

// printService is the default implementation of the Service interface.
type printService struct {
	storage Storage
	log     Logger
	config  *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	var stor Storage
	var err error
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = NewSQLiteStorage(cfg.DBPath, cfg.Preset, cfg.TempDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	return &printService{
		storage: stor,
		log:     cfg.Logger,
		config:  cfg,
	}, nil
}

// Fingerprint decodes the audio file at audioPath and returns the
// base64 text form of its fingerprint.
func (s *printService) Fingerprint(ctx context.Context, audioPath string) (string, error) {
	codes, err := s.fingerprintCodes(ctx, audioPath)
	if err != nil {
		return "", err
	}
	return fingerprint.EncodeText(codes), nil
}

func (s *printService) fingerprintCodes(ctx context.Context, audioPath string) ([]uint32, error) {
	s.log.Debugf("Fingerprinting %s", audioPath)

	dec, err := audio.Open(ctx, audioPath, s.config.TempDir)
	if err != nil {
		return nil, fmt.Errorf("opening audio: %w", err)
	}
	defer dec.Close()

	gen := fingerprint.NewGenerator(s.config.Preset)
	if err := gen.Start(dec.SampleRate(), dec.Channels()); err != nil {
		return nil, fmt.Errorf("starting generator: %w", err)
	}

	block := make([]int16, readBlock)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := dec.Next(block)
		if n > 0 {
			gen.Consume(block[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding audio: %w", err)
		}
	}

	codes := gen.Finish()
	s.log.Infof("Generated %d codes for %s", len(codes), audioPath)
	return codes, nil
}

// Compare scores two fingerprints in text form. The returned score is
// nil when the fingerprints share no correlation.
func (s *printService) Compare(fpA, fpB string) (*float64, error) {
	codesA, err := fingerprint.DecodeText(fpA)
	if err != nil {
		return nil, fmt.Errorf("first fingerprint: %w", err)
	}
	codesB, err := fingerprint.DecodeText(fpB)
	if err != nil {
		return nil, fmt.Errorf("second fingerprint: %w", err)
	}

	score, ok := fingerprint.CompareFingerprints(codesA, codesB, s.config.Preset)
	if !ok {
		s.log.Debugf("No correlation between fingerprints (%d vs %d codes)", len(codesA), len(codesB))
		return nil, nil
	}
	return &score, nil
}

// AddTrack fingerprints an audio file and saves it to the library. The
// title defaults to the file name when empty. Re-adding a path that is
// already in the library refreshes its entry and keeps its ID.
func (s *printService) AddTrack(ctx context.Context, audioPath, title string) (string, error) {
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	}
	s.log.Infof("Adding track: %s (%s)", title, audioPath)

	codes, err := s.fingerprintCodes(ctx, audioPath)
	if err != nil {
		return "", err
	}
	if len(codes) == 0 {
		s.log.Warnf("Audio shorter than one analysis frame: %s", audioPath)
	}

	durationMs := int(float64(len(codes)) * s.config.Preset.ItemDuration() * 1000)
	trackID, err := s.storage.SaveTrack(audioPath, title, fingerprint.EncodeText(codes), durationMs)
	if err != nil {
		return "", fmt.Errorf("saving track: %w", err)
	}

	s.log.Infof("Track saved with ID=%s", trackID)
	return trackID, nil
}

// FindDuplicates scans the library for pairs of tracks whose similarity
// score is at or below threshold.
func (s *printService) FindDuplicates(threshold float64) ([]models.DuplicatePair, error) {
	if threshold < 0 || threshold > s.config.Preset.MaxScore {
		return nil, fmt.Errorf("threshold %v out of range [0, %v]", threshold, s.config.Preset.MaxScore)
	}

	pairs, err := s.storage.FindDuplicates(threshold)
	if err != nil {
		return nil, fmt.Errorf("scanning for duplicates: %w", err)
	}
	s.log.Infof("Duplicate scan found %d pairs at threshold %.1f", len(pairs), threshold)
	return pairs, nil
}

func (s *printService) GetTrackByID(trackID string) (*models.Track, error) {
	return s.storage.GetTrackByID(trackID)
}

func (s *printService) ListTracks() ([]models.Track, error) {
	return s.storage.ListTracks()
}

func (s *printService) DeleteTrack(trackID string) error {
	return s.storage.DeleteTrackByID(trackID)
}

func (s *printService) Close() error {
	return s.storage.Close()
}
