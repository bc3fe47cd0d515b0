package storage

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"audioprint/pkg/audioprint/fingerprint"
)

func setupTestDB(t *testing.T) *DBClient {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_audioprint.sqlite3")
	client, err := NewDBClientWithPath(dbPath, fingerprint.DefaultConfig(), t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create test DB client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// testFingerprint returns the base64 text of a deterministic pseudo
// random code sequence. Different seeds give uncorrelated sequences.
func testFingerprint(n int, seed int64) string {
	rng := rand.New(rand.NewSource(seed))
	codes := make([]uint32, n)
	for i := range codes {
		codes[i] = rng.Uint32()
	}
	return fingerprint.EncodeText(codes)
}

// noisyCopy flips two pseudo random bits in every code, which keeps the
// copy well within matching distance of the original.
func noisyCopy(text string, seed int64) string {
	codes, err := fingerprint.DecodeText(text)
	if err != nil {
		panic(err)
	}
	rng := rand.New(rand.NewSource(seed))
	out := make([]uint32, len(codes))
	for i, c := range codes {
		out[i] = c ^ (1 << uint(rng.Intn(32))) ^ (1 << uint(rng.Intn(32)))
	}
	return fingerprint.EncodeText(out)
}

func TestNewDBClientWithPathCreatesFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "lib.sqlite3")
	client, err := NewDBClientWithPath(dbPath, fingerprint.DefaultConfig(), t.TempDir())
	if err != nil {
		t.Fatalf("NewDBClientWithPath failed: %v", err)
	}
	defer client.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at %s", dbPath)
	}
}

func TestSaveTrackAndGet(t *testing.T) {
	client := setupTestDB(t)

	fp := testFingerprint(300, 1)
	id, err := client.SaveTrack("/music/a.mp3", "Track A", fp, 37000)
	if err != nil {
		t.Fatalf("SaveTrack failed: %v", err)
	}
	if id == "" {
		t.Fatal("SaveTrack returned empty ID")
	}

	track, err := client.GetTrackByID(id)
	if err != nil {
		t.Fatalf("GetTrackByID failed: %v", err)
	}
	if track.Path != "/music/a.mp3" || track.Title != "Track A" {
		t.Errorf("unexpected track: %+v", track)
	}
	if track.Fingerprint != fp {
		t.Error("stored fingerprint differs from input")
	}
	if track.DurationMs != 37000 {
		t.Errorf("DurationMs = %d, expected 37000", track.DurationMs)
	}
}

func TestSaveTrackRefreshesExistingPath(t *testing.T) {
	client := setupTestDB(t)

	id1, err := client.SaveTrack("/music/a.mp3", "Old Title", testFingerprint(300, 1), 37000)
	if err != nil {
		t.Fatalf("first SaveTrack failed: %v", err)
	}

	fp2 := testFingerprint(300, 2)
	id2, err := client.SaveTrack("/music/a.mp3", "New Title", fp2, 41000)
	if err != nil {
		t.Fatalf("second SaveTrack failed: %v", err)
	}
	if id1 != id2 {
		t.Errorf("re-saving the same path changed the ID: %s vs %s", id1, id2)
	}

	track, err := client.GetTrackByID(id1)
	if err != nil {
		t.Fatal(err)
	}
	if track.Title != "New Title" || track.Fingerprint != fp2 || track.DurationMs != 41000 {
		t.Errorf("track was not refreshed: %+v", track)
	}

	tracks, err := client.ListTracks()
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 {
		t.Errorf("expected 1 track after refresh, found %d", len(tracks))
	}
}

func TestGetTrackByIDNotFound(t *testing.T) {
	client := setupTestDB(t)

	_, err := client.GetTrackByID("no-such-id")
	if !errors.Is(err, ErrTrackNotFound) {
		t.Fatalf("expected ErrTrackNotFound, got %v", err)
	}
}

func TestListTracks(t *testing.T) {
	client := setupTestDB(t)

	for i, path := range []string{"/music/a.mp3", "/music/b.mp3", "/music/c.mp3"} {
		if _, err := client.SaveTrack(path, path, testFingerprint(100, int64(i+1)), 10000); err != nil {
			t.Fatalf("SaveTrack %s failed: %v", path, err)
		}
	}

	tracks, err := client.ListTracks()
	if err != nil {
		t.Fatalf("ListTracks failed: %v", err)
	}
	if len(tracks) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(tracks))
	}
}

func TestDeleteTrackByID(t *testing.T) {
	client := setupTestDB(t)

	id, err := client.SaveTrack("/music/a.mp3", "Track A", testFingerprint(100, 1), 10000)
	if err != nil {
		t.Fatal(err)
	}

	if err := client.DeleteTrackByID(id); err != nil {
		t.Fatalf("DeleteTrackByID failed: %v", err)
	}
	if _, err := client.GetTrackByID(id); !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("track still present after delete: %v", err)
	}
	if err := client.DeleteTrackByID(id); !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("deleting twice should report ErrTrackNotFound, got %v", err)
	}
}

func TestFindDuplicates(t *testing.T) {
	client := setupTestDB(t)

	original := testFingerprint(400, 1)
	dup := noisyCopy(original, 99)
	unrelated := testFingerprint(400, 2)

	idA, err := client.SaveTrack("/music/a.mp3", "Original", original, 49000)
	if err != nil {
		t.Fatal(err)
	}
	idB, err := client.SaveTrack("/music/a-copy.mp3", "Copy", dup, 49000)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.SaveTrack("/music/other.mp3", "Other", unrelated, 49000); err != nil {
		t.Fatal(err)
	}

	pairs, err := client.FindDuplicates(10.0)
	if err != nil {
		t.Fatalf("FindDuplicates failed: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected exactly 1 duplicate pair, got %d", len(pairs))
	}

	p := pairs[0]
	got := map[string]bool{p.TrackA.ID: true, p.TrackB.ID: true}
	if !got[idA] || !got[idB] {
		t.Errorf("duplicate pair holds wrong tracks: %s / %s", p.TrackA.ID, p.TrackB.ID)
	}
	if p.Score <= 0 || p.Score > 6 {
		t.Errorf("noisy copy scored %v, expected a low nonzero score", p.Score)
	}
}

func TestFindDuplicatesEmptyLibrary(t *testing.T) {
	client := setupTestDB(t)

	pairs, err := client.FindDuplicates(10.0)
	if err != nil {
		t.Fatalf("FindDuplicates failed: %v", err)
	}
	if len(pairs) != 0 {
		t.Errorf("expected no pairs in an empty library, got %d", len(pairs))
	}
}
