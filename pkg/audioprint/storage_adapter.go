package audioprint

import (
	"audioprint/pkg/audioprint/fingerprint"
	"audioprint/pkg/audioprint/storage"
)

// NewSQLiteStorage opens the library database at dbPath as a Storage
// backend. Opening it also registers the fingerprint SQL functions, so
// FindDuplicates can run entirely inside sqlite.
func NewSQLiteStorage(dbPath string, preset *fingerprint.Config, tempDir string) (Storage, error) {
	return storage.NewDBClientWithPath(dbPath, preset, tempDir)
}
