package fingerprint

import "math"

// bandTable maps FFT bins onto NumBands log-spaced energy bands between
// MinFreq and MaxFreq, roughly a Bark-style spacing. Index i holds the
// half-open FFT bin range [lo, hi) of band i.
type bandTable [][2]int

// newBandTable builds the bin ranges for cfg. Band edges are spaced
// logarithmically so low bands are narrow and high bands wide, matching
// how pitch is perceived. Every band covers at least one bin.
func newBandTable(cfg *Config) bandTable {
	binHz := float64(cfg.SampleRate) / float64(cfg.FrameSize)
	logMin := math.Log(cfg.MinFreq)
	logMax := math.Log(cfg.MaxFreq)

	table := make(bandTable, cfg.NumBands)
	for i := 0; i < cfg.NumBands; i++ {
		fLo := math.Exp(logMin + (logMax-logMin)*float64(i)/float64(cfg.NumBands))
		fHi := math.Exp(logMin + (logMax-logMin)*float64(i+1)/float64(cfg.NumBands))
		lo := int(fLo/binHz + 0.5)
		hi := int(fHi/binHz + 0.5)
		if hi <= lo {
			hi = lo + 1
		}
		table[i] = [2]int{lo, hi}
	}
	return table
}

// energies sums spectrum magnitudes per band. spectrum holds magnitudes
// for the first FrameSize/2 FFT bins.
func (t bandTable) energies(spectrum []float64, out []float64) {
	for i, band := range t {
		var sum float64
		for bin := band[0]; bin < band[1] && bin < len(spectrum); bin++ {
			sum += spectrum[bin]
		}
		out[i] = sum
	}
}
