package audioprint

import "audioprint/pkg/audioprint/fingerprint"

type Config struct {
	DBPath  string
	TempDir string
	Preset  *fingerprint.Config
	Logger  Logger
	Storage Storage
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

// WithPreset overrides the fingerprinting preset. Fingerprints made
// under different presets are not comparable; changing this invalidates
// an existing library.
func WithPreset(preset *fingerprint.Config) Option {
	return func(c *Config) {
		c.Preset = preset
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:  "audioprint.sqlite3",
		TempDir: "/tmp",
		Preset:  fingerprint.DefaultConfig(),
	}
}
