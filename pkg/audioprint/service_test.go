package audioprint

import (
	"context"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"audioprint/pkg/audioprint/fingerprint"
	"audioprint/pkg/logger"
)

func newTestService(t *testing.T) Service {
	t.Helper()

	dir := t.TempDir()
	quiet := logger.New(logger.Config{Level: logger.FATAL, Output: io.Discard})
	svc, err := NewService(
		WithDBPath(filepath.Join(dir, "library.sqlite3")),
		WithTempDir(dir),
		WithLogger(quiet),
	)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

// melody renders a stepped note sequence; the generator needs spectral
// movement between frames to produce meaningful codes.
func melody(seconds float64, sampleRate int) []int {
	notes := []float64{330, 440, 587, 784, 494, 659, 392, 523}
	n := int(seconds * float64(sampleRate))
	out := make([]int, n)
	noteLen := sampleRate / 4
	for i := 0; i < n; i++ {
		f := notes[(i/noteLen)%len(notes)]
		tm := float64(i) / float64(sampleRate)
		v := math.Sin(2*math.Pi*f*tm) + 0.5*math.Sin(2*math.Pi*2*f*tm)
		out[i] = int(13000 * v)
	}
	return out
}

func noise(seconds float64, sampleRate int, seed int64) []int {
	rng := rand.New(rand.NewSource(seed))
	n := int(seconds * float64(sampleRate))
	out := make([]int, n)
	for i := range out {
		out[i] = rng.Intn(24000) - 12000
	}
	return out
}

func writeWAV(t *testing.T, dir, name string, samples []int, sampleRate int) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating fixture: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("closing fixture: %v", err)
	}
	return path
}

func TestServiceFingerprintSelfSimilarity(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()
	path := writeWAV(t, dir, "melody.wav", melody(3.0, 11025), 11025)

	fp, err := svc.Fingerprint(context.Background(), path)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if fp == "" {
		t.Fatal("empty fingerprint for 3s of audio")
	}

	score, err := svc.Compare(fp, fp)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if score == nil {
		t.Fatal("self comparison reported no correlation")
	}
	if *score > 1e-9 {
		t.Errorf("self comparison scored %v, expected 0", *score)
	}
}

func TestServiceCompareNoCorrelation(t *testing.T) {
	svc := newTestService(t)

	rng := rand.New(rand.NewSource(7))
	codesA := make([]uint32, 400)
	codesB := make([]uint32, 400)
	for i := range codesA {
		codesA[i] = rng.Uint32()
		codesB[i] = rng.Uint32()
	}

	score, err := svc.Compare(fingerprint.EncodeText(codesA), fingerprint.EncodeText(codesB))
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if score != nil {
		t.Errorf("unrelated fingerprints scored %v, expected no correlation", *score)
	}
}

func TestServiceCompareRejectsMalformedText(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Compare("!!! not base64 !!!", ""); err == nil {
		t.Error("expected error for malformed first fingerprint")
	}

	valid := fingerprint.EncodeText([]uint32{1, 2, 3})
	if _, err := svc.Compare(valid, "!!! not base64 !!!"); err == nil {
		t.Error("expected error for malformed second fingerprint")
	}
}

func TestServiceTrackLifecycle(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()
	path := writeWAV(t, dir, "melody.wav", melody(3.0, 11025), 11025)

	id, err := svc.AddTrack(context.Background(), path, "My Melody")
	if err != nil {
		t.Fatalf("AddTrack failed: %v", err)
	}

	track, err := svc.GetTrackByID(id)
	if err != nil {
		t.Fatalf("GetTrackByID failed: %v", err)
	}
	if track.Title != "My Melody" || track.Path != path {
		t.Errorf("unexpected track: %+v", track)
	}
	if track.Fingerprint == "" {
		t.Error("track stored without a fingerprint")
	}
	if track.DurationMs <= 0 || track.DurationMs > 4000 {
		t.Errorf("DurationMs = %d, expected roughly 3000", track.DurationMs)
	}

	tracks, err := svc.ListTracks()
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(tracks))
	}

	if err := svc.DeleteTrack(id); err != nil {
		t.Fatalf("DeleteTrack failed: %v", err)
	}
	tracks, err = svc.ListTracks()
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 0 {
		t.Errorf("expected empty library after delete, got %d tracks", len(tracks))
	}
}

func TestServiceAddTrackDefaultsTitle(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()
	path := writeWAV(t, dir, "evening_song.wav", melody(1.0, 11025), 11025)

	id, err := svc.AddTrack(context.Background(), path, "")
	if err != nil {
		t.Fatalf("AddTrack failed: %v", err)
	}
	track, err := svc.GetTrackByID(id)
	if err != nil {
		t.Fatal(err)
	}
	if track.Title != "evening_song" {
		t.Errorf("Title = %q, expected file name fallback", track.Title)
	}
}

func TestServiceFindDuplicates(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()

	tune := melody(3.0, 11025)
	pathA := writeWAV(t, dir, "tune.wav", tune, 11025)
	pathB := writeWAV(t, dir, "tune_copy.wav", tune, 11025)
	pathC := writeWAV(t, dir, "noise.wav", noise(3.0, 11025, 3), 11025)

	ctx := context.Background()
	idA, err := svc.AddTrack(ctx, pathA, "Tune")
	if err != nil {
		t.Fatal(err)
	}
	idB, err := svc.AddTrack(ctx, pathB, "Tune Copy")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddTrack(ctx, pathC, "Noise"); err != nil {
		t.Fatal(err)
	}

	pairs, err := svc.FindDuplicates(5.0)
	if err != nil {
		t.Fatalf("FindDuplicates failed: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected exactly 1 duplicate pair, got %d", len(pairs))
	}
	got := map[string]bool{pairs[0].TrackA.ID: true, pairs[0].TrackB.ID: true}
	if !got[idA] || !got[idB] {
		t.Errorf("wrong pair flagged: %s / %s", pairs[0].TrackA.ID, pairs[0].TrackB.ID)
	}
	if pairs[0].Score > 1e-9 {
		t.Errorf("identical renderings scored %v, expected 0", pairs[0].Score)
	}
}

func TestServiceFindDuplicatesRejectsBadThreshold(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.FindDuplicates(-1); err == nil {
		t.Error("expected error for negative threshold")
	}
	if _, err := svc.FindDuplicates(33); err == nil {
		t.Error("expected error for threshold above the score ceiling")
	}
}
