package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"

	"github.com/eligwz/spectrogram"

	"audioprint/pkg/audioprint/audio"
)

const (
	spectrogramWidth  = 2048
	spectrogramHeight = 512
)

// renderSpectrogram decodes an audio file and writes its spectrogram as
// a PNG. Non-WAV inputs go through the same ffmpeg conversion path the
// fingerprinter uses.
func renderSpectrogram(ctx context.Context, audioPath, outputPath, tempDir string) error {
	dec, err := audio.Open(ctx, audioPath, tempDir)
	if err != nil {
		return err
	}
	defer dec.Close()

	var pcm []int16
	block := make([]int16, 8192)
	for {
		n, err := dec.Next(block)
		if n > 0 {
			pcm = append(pcm, block[:n]...)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
	}
	if len(pcm) == 0 {
		return fmt.Errorf("no audio samples in %s", audioPath)
	}

	// Mono, normalized to [-1, 1].
	channels := dec.Channels()
	frames := len(pcm) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(pcm[i*channels+c])
		}
		samples[i] = sum / float64(channels) / 32768.0
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, spectrogramWidth, spectrogramHeight))
	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	// Hamming window, FFT, linear magnitude.
	spectrogram.Drawfft(
		img,
		samples,
		uint32(dec.SampleRate()),
		uint32(spectrogramHeight),
		false, // RECTANGLE
		false, // DFT
		true,  // MAG
		false, // LOG10
	)

	if err := spectrogram.SavePng(img, outputPath); err != nil {
		return fmt.Errorf("saving PNG: %w", err)
	}
	return nil
}
