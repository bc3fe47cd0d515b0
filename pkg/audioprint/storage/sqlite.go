package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"audioprint/pkg/audioprint/fingerprint"
	"audioprint/pkg/audioprint/sqlfunc"
	"audioprint/pkg/models"
)

const DefaultDBFile = "audioprint.sqlite3"
const errDBClientNil = "db client is nil"

// ErrTrackNotFound reports a lookup for a track ID that is not in the
// library.
var ErrTrackNotFound = errors.New("track not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Track is the persisted row for one library entry. Fingerprint holds
// the base64 text form so compare_fingerprints() can read it straight
// out of SQL.
type Track struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	Path        string `gorm:"uniqueIndex:idx_track_path" json:"path"`
	Title       string `gorm:"index:idx_track_title" json:"title"`
	Fingerprint string `gorm:"type:text" json:"fingerprint"`
	DurationMs  int    `json:"duration_ms"`
	CreatedAt   time.Time
}

// NewDBClient opens the library at AUDIOPRINT_DB_PATH, falling back to
// DefaultDBFile in the working directory.
func NewDBClient(cfg *fingerprint.Config, tempDir string) (*DBClient, error) {
	dbPath := os.Getenv("AUDIOPRINT_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath, cfg, tempDir)
}

// NewDBClientWithPath opens (creating if needed) the library database
// at dbPath. The fingerprint SQL functions are registered before any
// query can run, so raw SQL against this client may call fingerprint()
// and compare_fingerprints() directly.
func NewDBClientWithPath(dbPath string, cfg *fingerprint.Config, tempDir string) (*DBClient, error) {
	if err := sqlfunc.Register(cfg, tempDir); err != nil {
		return nil, fmt.Errorf("registering sql functions: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !os.IsExist(err) {
		if filepath.Dir(dbPath) != "." {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Track{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SaveTrack inserts a track, or refreshes the title and fingerprint of
// an existing track with the same path. It returns the track's ID.
func (c *DBClient) SaveTrack(path, title, fingerprintText string, durationMs int) (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New(errDBClientNil)
	}

	var track Track
	err := c.DB.Where("path = ?", path).First(&track).Error
	if err == nil {
		updates := map[string]interface{}{
			"title":       title,
			"fingerprint": fingerprintText,
			"duration_ms": durationMs,
		}
		if err := c.DB.Model(&track).Updates(updates).Error; err != nil {
			return "", fmt.Errorf("updating track: %w", err)
		}
		return track.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("querying existing track: %w", err)
	}

	track = Track{
		ID:          uuid.NewString(),
		Path:        path,
		Title:       title,
		Fingerprint: fingerprintText,
		DurationMs:  durationMs,
	}
	if err := c.DB.Create(&track).Error; err != nil {
		return "", fmt.Errorf("creating track: %w", err)
	}
	return track.ID, nil
}

func (c *DBClient) GetTrackByID(trackID string) (*models.Track, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var track Track
	if err := c.DB.Where("id = ?", trackID).First(&track).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTrackNotFound, trackID)
		}
		return nil, fmt.Errorf("querying track: %w", err)
	}
	m := toModel(track)
	return &m, nil
}

func (c *DBClient) ListTracks() ([]models.Track, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var tracks []Track
	if err := c.DB.Order("created_at").Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("listing tracks: %w", err)
	}
	out := make([]models.Track, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, toModel(t))
	}
	return out, nil
}

func (c *DBClient) DeleteTrackByID(trackID string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	res := c.DB.Where("id = ?", trackID).Delete(&Track{})
	if res.Error != nil {
		return fmt.Errorf("deleting track: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrTrackNotFound, trackID)
	}
	return nil
}

// FindDuplicates compares every pair of stored fingerprints inside the
// database via compare_fingerprints() and returns the pairs whose score
// is at or below threshold, best match first. Pairs with no correlation
// come back NULL from SQL and are skipped.
func (c *DBClient) FindDuplicates(threshold float64) ([]models.DuplicatePair, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	rows, err := c.DB.Raw(`
		SELECT a.id, b.id, compare_fingerprints(a.fingerprint, b.fingerprint) AS score
		FROM tracks a
		JOIN tracks b ON a.id < b.id
		WHERE a.fingerprint != '' AND b.fingerprint != ''
	`).Rows()
	if err != nil {
		return nil, fmt.Errorf("comparing fingerprints: %w", err)
	}
	defer rows.Close()

	type hit struct {
		idA, idB string
		score    float64
	}
	var hits []hit
	for rows.Next() {
		var idA, idB string
		var score sql.NullFloat64
		if err := rows.Scan(&idA, &idB, &score); err != nil {
			return nil, fmt.Errorf("scanning comparison row: %w", err)
		}
		if !score.Valid || score.Float64 > threshold {
			continue
		}
		hits = append(hits, hit{idA: idA, idB: idB, score: score.Float64})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading comparison rows: %w", err)
	}

	pairs := make([]models.DuplicatePair, 0, len(hits))
	for _, h := range hits {
		a, err := c.GetTrackByID(h.idA)
		if err != nil {
			return nil, err
		}
		b, err := c.GetTrackByID(h.idB)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, models.DuplicatePair{TrackA: *a, TrackB: *b, Score: h.score})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Score < pairs[j].Score })
	return pairs, nil
}

func toModel(t Track) models.Track {
	return models.Track{
		ID:          t.ID,
		Path:        t.Path,
		Title:       t.Title,
		Fingerprint: t.Fingerprint,
		DurationMs:  t.DurationMs,
		CreatedAt:   t.CreatedAt,
	}
}
