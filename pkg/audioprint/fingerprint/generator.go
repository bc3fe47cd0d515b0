package fingerprint

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Generator turns a stream of interleaved 16-bit PCM samples into a
// sequence of 32-bit fingerprint codes, one per analysis frame.
//
// Usage: NewGenerator, Start, any number of Consume calls with blocks of
// any size, then Finish. The generator is deterministic: the same Config
// and the same sample stream always produce the same codes. A Generator
// is not safe for concurrent use; run independent generations on
// independent Generators.
type Generator struct {
	cfg    *Config
	bands  bandTable
	window []float64

	srcRate  int
	channels int
	started  bool

	// interleaved samples left over from a Consume call that ended
	// mid-frame (fewer than `channels` samples remaining)
	carry []int16

	// linear resampler state
	resample bool
	rsStep   float64
	rsPos    float64
	rsCount  int
	rsLast   float64

	// mono samples at cfg.SampleRate awaiting framing
	buf []float64

	prevEnergies []float64
	codes        []uint32
}

// NewGenerator builds a generator for the given preset. The window and
// band table depend only on the Config and are computed once.
func NewGenerator(cfg *Config) *Generator {
	window := make([]float64, cfg.FrameSize)
	for i := range window {
		window[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(cfg.FrameSize-1))
	}
	return &Generator{
		cfg:    cfg,
		bands:  newBandTable(cfg),
		window: window,
	}
}

// Start resets the generator for a new audio stream. sampleRate and
// channels describe the incoming PCM; both must be known up front.
func (g *Generator) Start(sampleRate, channels int) error {
	if sampleRate <= 0 {
		return errors.New("sample rate must be positive")
	}
	if channels <= 0 {
		return errors.New("channel count must be positive")
	}

	g.srcRate = sampleRate
	g.channels = channels
	g.started = true

	g.carry = g.carry[:0]
	g.resample = sampleRate != g.cfg.SampleRate
	g.rsStep = float64(sampleRate) / float64(g.cfg.SampleRate)
	g.rsPos = 0
	g.rsCount = 0
	g.rsLast = 0
	g.buf = g.buf[:0]
	g.prevEnergies = make([]float64, g.cfg.NumBands)
	g.codes = nil
	return nil
}

// Consume feeds a block of interleaved samples. Blocks may be of
// arbitrary size and need not align to channel frames; a trailing
// partial frame is held until the next call.
func (g *Generator) Consume(samples []int16) {
	if !g.started || len(samples) == 0 {
		return
	}

	if len(g.carry) > 0 {
		samples = append(g.carry, samples...)
		g.carry = nil
	}
	rem := len(samples) % g.channels
	if rem > 0 {
		g.carry = append(g.carry, samples[len(samples)-rem:]...)
		samples = samples[:len(samples)-rem]
	}

	mono := downmix(samples, g.channels)
	if g.resample {
		mono = g.resampleChunk(mono)
	}
	g.buf = append(g.buf, mono...)
	g.processFrames()
}

// Finish flushes internal state and returns the fingerprint. Audio
// shorter than one analysis frame yields an empty (valid) fingerprint.
// The generator must be restarted before it can be reused.
func (g *Generator) Finish() []uint32 {
	g.started = false
	codes := g.codes
	g.codes = nil
	if codes == nil {
		codes = []uint32{}
	}
	return codes
}

// downmix averages interleaved channels into mono float64 samples.
// len(samples) must be a multiple of channels.
func downmix(samples []int16, channels int) []float64 {
	if channels == 1 {
		out := make([]float64, len(samples))
		for i, s := range samples {
			out[i] = float64(s)
		}
		return out
	}
	frames := len(samples) / channels
	out := make([]float64, frames)
	inv := 1.0 / float64(channels)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(samples[i*channels+c])
		}
		out[i] = sum * inv
	}
	return out
}

// resampleChunk converts a chunk of mono samples from the source rate to
// the analysis rate by linear interpolation, carrying fractional
// position and the last input sample across calls.
func (g *Generator) resampleChunk(mono []float64) []float64 {
	end := g.rsCount + len(mono)
	out := make([]float64, 0, int(float64(len(mono))/g.rsStep)+1)

	for {
		idx := int(g.rsPos)
		frac := g.rsPos - float64(idx)

		if frac == 0 {
			if idx >= end {
				break
			}
			out = append(out, g.sampleAt(idx, mono))
		} else {
			if idx+1 >= end {
				break
			}
			s0 := g.sampleAt(idx, mono)
			s1 := g.sampleAt(idx+1, mono)
			out = append(out, s0+frac*(s1-s0))
		}
		g.rsPos += g.rsStep
	}

	if len(mono) > 0 {
		g.rsLast = mono[len(mono)-1]
	}
	g.rsCount = end
	return out
}

// sampleAt resolves a global mono-stream index against the current
// chunk. Only the final sample of the previous chunk can still be
// referenced; the resampler never looks further back.
func (g *Generator) sampleAt(idx int, mono []float64) float64 {
	if idx < g.rsCount {
		return g.rsLast
	}
	return mono[idx-g.rsCount]
}

// processFrames emits one code per complete analysis frame currently
// buffered and drops consumed samples.
func (g *Generator) processFrames() {
	frameSize := g.cfg.FrameSize
	hop := g.cfg.HopSize

	frame := make([]float64, frameSize)
	energies := make([]float64, g.cfg.NumBands)

	for len(g.buf) >= frameSize {
		for i := 0; i < frameSize; i++ {
			frame[i] = g.buf[i] * g.window[i]
		}

		spectrum := fft.FFTReal(frame)
		mags := make([]float64, frameSize/2)
		for i := range mags {
			mags[i] = cmplx.Abs(spectrum[i])
		}

		g.bands.energies(mags, energies)
		g.codes = append(g.codes, classify(energies, g.prevEnergies))
		copy(g.prevEnergies, energies)

		g.buf = g.buf[:copy(g.buf, g.buf[hop:])]
	}
}

// classify derives one 32-bit code from the band energies of the current
// and previous frame. Bit b is set when the energy difference between
// adjacent bands b and b+1 grew relative to the previous frame. Small
// time shifts or transcoding noise flip few bits, which is what makes
// Hamming-distance alignment meaningful.
func classify(energies, prev []float64) uint32 {
	var code uint32
	for bit := 0; bit < 32; bit++ {
		cur := energies[bit] - energies[bit+1]
		old := prev[bit] - prev[bit+1]
		if cur-old > 0 {
			code |= 1 << uint(bit)
		}
	}
	return code
}
