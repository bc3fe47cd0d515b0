package fingerprint

// Config is the fixed parameter bundle shared by the generator and the
// matcher. Two fingerprints are only comparable when both were produced
// under the same Config; nothing in the serialized payload records which
// preset was used, so callers must not mix presets.
//
// The values are a versioned preset, not knobs. Changing any of them
// invalidates every stored fingerprint.
type Config struct {
	// SampleRate is the internal analysis rate. All input audio is
	// downmixed to mono and resampled to this rate before framing.
	SampleRate int

	// FrameSize is the analysis window length in samples at SampleRate.
	FrameSize int

	// HopSize is the frame advance in samples (2/3 window overlap).
	HopSize int

	// MinFreq and MaxFreq bound the band basis in Hz.
	MinFreq float64
	MaxFreq float64

	// NumBands is the number of log-spaced energy bands. Each code bit
	// compares two adjacent bands, so NumBands-1 must be 32.
	NumBands int

	// MaxOffset is the largest relative alignment (in frames) the
	// matcher will slide one fingerprint against the other.
	MaxOffset int

	// MatchWindow is the length (in frames) of the local window the
	// matcher aggregates bit distances over when probing an offset.
	MatchWindow int

	// MatchThreshold is the highest mean bit distance a window may have
	// and still seed a match segment.
	MatchThreshold float64

	// MaxScore is the worst possible per-segment score: the number of
	// bits in one code.
	MaxScore float64
}

// DefaultConfig returns the preset every fingerprint in a given
// deployment must share.
func DefaultConfig() *Config {
	return &Config{
		SampleRate:     11025,
		FrameSize:      4096,
		HopSize:        1365,
		MinFreq:        300,
		MaxFreq:        3000,
		NumBands:       33,
		MaxOffset:      120,
		MatchWindow:    8,
		MatchThreshold: 10.0,
		MaxScore:       32.0,
	}
}

// ItemDuration returns the duration in seconds covered by one
// fingerprint code (one frame hop).
func (c *Config) ItemDuration() float64 {
	return float64(c.HopSize) / float64(c.SampleRate)
}
