package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"audioprint/pkg/audioprint"
	"audioprint/pkg/logger"
	"audioprint/pkg/models"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service audioprint.Service
	config  *ServerConfig
	log     audioprint.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	TempDir        string
	AllowedOrigins []string
}

// NewServer creates a new server instance
func NewServer(service audioprint.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger(),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "audioprint API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":      "GET /health",
			"fingerprint": "POST /api/fingerprint",
			"compare":     "POST /api/compare",
			"tracks":      "GET /api/tracks",
			"addTrack":    "POST /api/tracks",
			"getTrack":    "GET /api/tracks/{id}",
			"deleteTrack": "DELETE /api/tracks/{id}",
			"duplicates":  "GET /api/duplicates",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// saveUpload writes the multipart "audio" field to a temp file and
// returns its path. The caller removes the file.
func (s *Server) saveUpload(r *http.Request) (string, error) {
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		return "", fmt.Errorf("parsing form data: %w", err)
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		return "", fmt.Errorf("audio file is required")
	}
	defer file.Close()

	tempFile := filepath.Join(s.config.TempDir, fmt.Sprintf("upload_%d_%s", time.Now().UnixNano(), filepath.Base(header.Filename)))
	out, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("saving uploaded file: %w", err)
	}
	return tempFile, nil
}

// handleFingerprint handles POST /api/fingerprint (multipart upload)
func (s *Server) handleFingerprint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Use POST with a multipart audio upload")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	tempFile, err := s.saveUpload(r)
	if err != nil {
		s.log.Errorf("Upload failed: %v", err)
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(tempFile)

	fp, err := s.service.Fingerprint(ctx, tempFile)
	if err != nil {
		s.log.Errorf("Fingerprint failed: %v", err)
		s.respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Failed to fingerprint audio: %v", err))
		return
	}

	s.respondJSON(w, http.StatusOK, FingerprintResponse{Fingerprint: fp})
}

// handleCompare handles POST /api/compare
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Use POST with a JSON body")
		return
	}

	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	score, err := s.service.Compare(req.FingerprintA, req.FingerprintB)
	if err != nil {
		s.log.Warnf("Compare rejected: %v", err)
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Failed to compare fingerprints: %v", err))
		return
	}

	s.respondJSON(w, http.StatusOK, CompareResponse{
		Score:      score,
		Correlated: score != nil,
	})
}

// handleTracks handles GET and POST on /api/tracks
func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListTracks(w, r)
	case http.MethodPost:
		s.handleAddTrack(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleListTracks handles GET /api/tracks
func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.service.ListTracks()
	if err != nil {
		s.log.Errorf("Failed to list tracks: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve tracks")
		return
	}

	trackDTOs := make([]TrackDTO, len(tracks))
	for i, track := range tracks {
		trackDTOs[i] = toTrackDTO(track)
	}

	s.respondJSON(w, http.StatusOK, ListTracksResponse{
		Tracks: trackDTOs,
		Count:  len(trackDTOs),
	})
}

// handleAddTrack handles POST /api/tracks (multipart file upload)
func (s *Server) handleAddTrack(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	tempFile, err := s.saveUpload(r)
	if err != nil {
		s.log.Errorf("Upload failed: %v", err)
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(tempFile)

	title := r.FormValue("title")

	s.log.Infof("Adding track from upload: %s", title)
	trackID, err := s.service.AddTrack(ctx, tempFile, title)
	if err != nil {
		s.log.Errorf("Failed to add track: %v", err)
		s.respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Failed to add track: %v", err))
		return
	}

	track, err := s.service.GetTrackByID(trackID)
	if err != nil {
		s.log.Errorf("Track %s added but not readable: %v", trackID, err)
		s.respondError(w, http.StatusInternalServerError, "Track added but could not be read back")
		return
	}

	s.respondJSON(w, http.StatusCreated, AddTrackResponse{
		Message: "Track added successfully",
		ID:      track.ID,
		Title:   track.Title,
	})
}

// handleTrack handles GET and DELETE on /api/tracks/{id}
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	trackID := strings.TrimPrefix(r.URL.Path, "/api/tracks/")
	if trackID == "" || strings.Contains(trackID, "/") {
		s.respondError(w, http.StatusBadRequest, "Invalid track ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		track, err := s.service.GetTrackByID(trackID)
		if err != nil {
			s.log.Warnf("Track not found: %s", trackID)
			s.respondError(w, http.StatusNotFound, fmt.Sprintf("Track with ID %s not found", trackID))
			return
		}
		s.respondJSON(w, http.StatusOK, toTrackDTO(*track))

	case http.MethodDelete:
		if err := s.service.DeleteTrack(trackID); err != nil {
			s.log.Warnf("Failed to delete track %s: %v", trackID, err)
			s.respondError(w, http.StatusNotFound, fmt.Sprintf("Track with ID %s not found", trackID))
			return
		}
		s.log.Infof("Deleted track %s", trackID)
		s.respondJSON(w, http.StatusOK, DeleteTrackResponse{
			Message: "Track deleted successfully",
			ID:      trackID,
		})

	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleDuplicates handles GET /api/duplicates?threshold=10
func (s *Server) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	threshold := 10.0
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "threshold must be a number")
			return
		}
		threshold = parsed
	}

	pairs, err := s.service.FindDuplicates(threshold)
	if err != nil {
		s.log.Errorf("Duplicate scan failed: %v", err)
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Failed to scan for duplicates: %v", err))
		return
	}

	pairDTOs := make([]DuplicatePairDTO, len(pairs))
	for i, pair := range pairs {
		pairDTOs[i] = DuplicatePairDTO{
			TrackA: toTrackDTO(pair.TrackA),
			TrackB: toTrackDTO(pair.TrackB),
			Score:  pair.Score,
		}
	}

	s.respondJSON(w, http.StatusOK, DuplicatesResponse{
		Pairs:     pairDTOs,
		Count:     len(pairDTOs),
		Threshold: threshold,
	})
}

func toTrackDTO(track models.Track) TrackDTO {
	return TrackDTO{
		ID:         track.ID,
		Path:       track.Path,
		Title:      track.Title,
		DurationMs: track.DurationMs,
		CreatedAt:  track.CreatedAt.Format(time.RFC3339),
	}
}
