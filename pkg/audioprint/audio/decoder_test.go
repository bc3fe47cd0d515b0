package audio

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeWAV writes a 16-bit PCM WAV fixture and returns its path.
func writeWAV(t *testing.T, dir, name string, samples []int, sampleRate, channels int) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating fixture: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("writing fixture samples: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("closing fixture encoder: %v", err)
	}
	return path
}

func toneSamples(n, channels int) []int {
	out := make([]int, n*channels)
	for i := 0; i < n; i++ {
		s := int(12000 * math.Sin(2*math.Pi*440*float64(i)/11025))
		for c := 0; c < channels; c++ {
			out[i*channels+c] = s
		}
	}
	return out
}

func readAll(t *testing.T, d *Decoder, blockSize int) []int16 {
	t.Helper()

	var all []int16
	block := make([]int16, blockSize)
	for {
		n, err := d.Next(block)
		if n > 0 {
			all = append(all, block[:n]...)
		}
		if errors.Is(err, io.EOF) {
			return all
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
	}
}

func TestDecoderReadsMonoWAV(t *testing.T) {
	dir := t.TempDir()
	samples := toneSamples(5000, 1)
	path := writeWAV(t, dir, "mono.wav", samples, 11025, 1)

	dec, err := Open(context.Background(), path, dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer dec.Close()

	if dec.SampleRate() != 11025 {
		t.Errorf("SampleRate = %d, expected 11025", dec.SampleRate())
	}
	if dec.Channels() != 1 {
		t.Errorf("Channels = %d, expected 1", dec.Channels())
	}

	got := readAll(t, dec, 512)
	if len(got) != len(samples) {
		t.Fatalf("read %d samples, expected %d", len(got), len(samples))
	}
	for i := range samples {
		if int(got[i]) != samples[i] {
			t.Fatalf("sample %d: got %d, expected %d", i, got[i], samples[i])
		}
	}
}

func TestDecoderReadsStereoWAV(t *testing.T) {
	dir := t.TempDir()
	samples := toneSamples(3000, 2)
	path := writeWAV(t, dir, "stereo.wav", samples, 44100, 2)

	dec, err := Open(context.Background(), path, dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer dec.Close()

	if dec.SampleRate() != 44100 {
		t.Errorf("SampleRate = %d, expected 44100", dec.SampleRate())
	}
	if dec.Channels() != 2 {
		t.Errorf("Channels = %d, expected 2", dec.Channels())
	}

	// 333 does not divide evenly into stereo frames; interleaving must
	// survive odd block sizes.
	got := readAll(t, dec, 333)
	if len(got) != len(samples) {
		t.Fatalf("read %d samples, expected %d", len(got), len(samples))
	}
	for i := range samples {
		if int(got[i]) != samples[i] {
			t.Fatalf("sample %d: got %d, expected %d", i, got[i], samples[i])
		}
	}
}

func TestDecoderMissingFile(t *testing.T) {
	_, err := Open(context.Background(), "/nonexistent/clip.wav", t.TempDir())
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDecoderRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.wav")
	if err := os.WriteFile(path, []byte("this is definitely not audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(context.Background(), path, dir)
	if !errors.Is(err, ErrNotAudio) {
		t.Fatalf("expected ErrNotAudio, got %v", err)
	}
}

func TestDecoderConvertsNonWAVInput(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available")
	}

	dir := t.TempDir()
	samples := toneSamples(4000, 1)
	wavPath := writeWAV(t, dir, "clip.wav", samples, 11025, 1)

	// ffmpeg probes by content; the extension only decides whether the
	// decoder takes the conversion path.
	otherPath := filepath.Join(dir, "clip.audio")
	data, err := os.ReadFile(wavPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(otherPath, data, 0o644); err != nil {
		t.Fatal(err)
	}

	dec, err := Open(context.Background(), otherPath, dir)
	if err != nil {
		t.Fatalf("Open via conversion failed: %v", err)
	}
	defer dec.Close()

	if dec.SampleRate() != 11025 || dec.Channels() != 1 {
		t.Errorf("unexpected stream params: %d Hz, %d channels", dec.SampleRate(), dec.Channels())
	}
	got := readAll(t, dec, 1024)
	if len(got) != len(samples) {
		t.Fatalf("read %d samples, expected %d", len(got), len(samples))
	}
}
