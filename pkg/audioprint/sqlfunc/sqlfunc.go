// Package sqlfunc exposes fingerprinting to SQL. It registers two
// deterministic scalar functions on the sqlite driver:
//
//	fingerprint(path)              -> base64 fingerprint of the audio file
//	compare_fingerprints(fp1, fp2) -> similarity score, or NULL when the
//	                                  two fingerprints share no correlation
//
// Registration is driver-global, so every sqlite connection opened in
// the process sees the functions, including connections owned by gorm.
package sqlfunc

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sync"

	sqlite "github.com/glebarez/go-sqlite"

	"audioprint/pkg/audioprint/audio"
	"audioprint/pkg/audioprint/fingerprint"
)

// readBlock is the PCM block size used when fingerprinting inside a SQL
// call.
const readBlock = 8192

var (
	registerOnce sync.Once
	registerErr  error
)

// Register installs both scalar functions using the given preset.
// tempDir receives intermediate files for non-WAV inputs. The first
// call wins; later calls return the first call's result, so a process
// cannot end up with two presets behind the same function name.
func Register(cfg *fingerprint.Config, tempDir string) error {
	registerOnce.Do(func() {
		registerErr = register(cfg, tempDir)
	})
	return registerErr
}

func register(cfg *fingerprint.Config, tempDir string) error {
	err := sqlite.RegisterDeterministicScalarFunction("fingerprint", 1,
		func(fctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			path, err := textArg(args[0], "fingerprint", "path")
			if err != nil {
				return nil, err
			}
			text, err := FingerprintFile(context.Background(), path, cfg, tempDir)
			if err != nil {
				return nil, fmt.Errorf("fingerprint(%q): %w", path, err)
			}
			return text, nil
		})
	if err != nil {
		return fmt.Errorf("registering fingerprint(): %w", err)
	}

	err = sqlite.RegisterDeterministicScalarFunction("compare_fingerprints", 2,
		func(fctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			textA, err := textArg(args[0], "compare_fingerprints", "fp1")
			if err != nil {
				return nil, err
			}
			textB, err := textArg(args[1], "compare_fingerprints", "fp2")
			if err != nil {
				return nil, err
			}

			codesA, err := fingerprint.DecodeText(textA)
			if err != nil {
				return nil, fmt.Errorf("compare_fingerprints: first argument: %w", err)
			}
			codesB, err := fingerprint.DecodeText(textB)
			if err != nil {
				return nil, fmt.Errorf("compare_fingerprints: second argument: %w", err)
			}

			score, ok := fingerprint.CompareFingerprints(codesA, codesB, cfg)
			if !ok {
				// No correlation maps to SQL NULL, distinct from a
				// perfect-match score of 0.
				return nil, nil
			}
			return score, nil
		})
	if err != nil {
		return fmt.Errorf("registering compare_fingerprints(): %w", err)
	}
	return nil
}

// textArg coerces a SQL argument to a Go string. sqlite hands TEXT over
// as string and BLOB as []byte; both are accepted.
func textArg(v driver.Value, fn, arg string) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	default:
		return "", fmt.Errorf("%s: %s must be text, got %T", fn, arg, v)
	}
}

// FingerprintFile runs the full decode-and-fingerprint pipeline for one
// audio file and returns the base64 text form.
func FingerprintFile(ctx context.Context, path string, cfg *fingerprint.Config, tempDir string) (string, error) {
	dec, err := audio.Open(ctx, path, tempDir)
	if err != nil {
		return "", err
	}
	defer dec.Close()

	gen := fingerprint.NewGenerator(cfg)
	if err := gen.Start(dec.SampleRate(), dec.Channels()); err != nil {
		return "", err
	}

	block := make([]int16, readBlock)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := dec.Next(block)
		if n > 0 {
			gen.Consume(block[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}

	return fingerprint.EncodeText(gen.Finish()), nil
}
