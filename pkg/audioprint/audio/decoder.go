package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"audioprint/pkg/utils"
)

var (
	// ErrNotAudio reports a source whose container could not be
	// recognized as audio.
	ErrNotAudio = errors.New("source is not a valid audio file")

	// ErrMissingParams reports an audio stream without the parameters
	// (sample rate, channel count) fingerprinting needs.
	ErrMissingParams = errors.New("audio stream is missing sample rate or channel count")
)

// Decoder yields an audio file's content as interleaved signed 16-bit
// PCM blocks. Non-WAV containers are first converted by ffmpeg; WAV
// files are decoded directly. The stream runs start to end and can only
// be restarted by reopening.
//
// A decode failure anywhere aborts the whole read: no partial stream is
// ever delivered, so fingerprints stay reproducible.
type Decoder struct {
	file       *os.File
	dec        *wav.Decoder
	buf        *goaudio.IntBuffer
	sampleRate int
	channels   int
	bitDepth   int
	tmpPath    string
}

// Open prepares a decoder for the audio file at path. Converted
// intermediates are written to tempDir and removed on Close.
func Open(ctx context.Context, path, tempDir string) (*Decoder, error) {
	src := path
	tmpPath := ""

	if strings.ToLower(filepath.Ext(path)) != ".wav" {
		converted, err := convertToWAV(ctx, path, tempDir)
		if err != nil {
			return nil, err
		}
		src = converted
		tmpPath = converted
	}

	f, err := os.Open(src)
	if err != nil {
		if tmpPath != "" {
			utils.DeleteFile(tmpPath)
		}
		return nil, fmt.Errorf("opening audio source: %w", err)
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		if tmpPath != "" {
			utils.DeleteFile(tmpPath)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotAudio, path)
	}
	if dec.SampleRate == 0 || dec.NumChans == 0 {
		f.Close()
		if tmpPath != "" {
			utils.DeleteFile(tmpPath)
		}
		return nil, fmt.Errorf("%w: %s", ErrMissingParams, path)
	}

	switch dec.BitDepth {
	case 8, 16, 24, 32:
	default:
		f.Close()
		if tmpPath != "" {
			utils.DeleteFile(tmpPath)
		}
		return nil, fmt.Errorf("unsupported bit depth %d in %s", dec.BitDepth, path)
	}

	return &Decoder{
		file:       f,
		dec:        dec,
		sampleRate: int(dec.SampleRate),
		channels:   int(dec.NumChans),
		bitDepth:   int(dec.BitDepth),
		tmpPath:    tmpPath,
	}, nil
}

// SampleRate returns the stream's sample rate in Hz.
func (d *Decoder) SampleRate() int { return d.sampleRate }

// Channels returns the stream's channel count.
func (d *Decoder) Channels() int { return d.channels }

// Next fills block with the next interleaved samples and returns how
// many were written. It returns io.EOF once the stream is exhausted and
// a decode error if the stream is corrupt; after an error the decoder
// must be abandoned.
func (d *Decoder) Next(block []int16) (int, error) {
	if len(block) == 0 {
		return 0, nil
	}

	if d.buf == nil || len(d.buf.Data) != len(block) {
		d.buf = &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: d.channels,
				SampleRate:  d.sampleRate,
			},
			Data:           make([]int, len(block)),
			SourceBitDepth: d.bitDepth,
		}
	}

	n, err := d.dec.PCMBuffer(d.buf)
	if err != nil {
		return 0, fmt.Errorf("decoding PCM block: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}

	for i := 0; i < n; i++ {
		block[i] = toInt16(d.buf.Data[i], d.bitDepth)
	}
	return n, nil
}

// Close releases the underlying file and any converted intermediate.
func (d *Decoder) Close() error {
	err := d.file.Close()
	if d.tmpPath != "" {
		utils.DeleteFile(d.tmpPath)
	}
	return err
}

// toInt16 rescales a decoded sample to 16 bits. WAV stores 8-bit audio
// unsigned; wider depths are signed.
func toInt16(v, bitDepth int) int16 {
	switch bitDepth {
	case 8:
		return int16((v - 128) << 8)
	case 24:
		return int16(v >> 8)
	case 32:
		return int16(v >> 16)
	default:
		return int16(v)
	}
}
