package audio

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"audioprint/pkg/utils"
)

// convertTimeout bounds a single ffmpeg conversion when the caller's
// context carries no deadline of its own.
const convertTimeout = 2 * time.Minute

// convertToWAV transcodes any container ffmpeg understands into a
// 16-bit PCM WAV in outputDir, preserving the source's sample rate and
// channel layout. The caller owns (and must remove) the returned file.
// Any decode failure inside ffmpeg fails the whole conversion; there is
// no skip-bad-packet mode.
func convertToWAV(ctx context.Context, inputPath, outputDir string) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, convertTimeout)
		defer cancel()
	}

	if err := utils.MakeDir(outputDir); err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}

	outputPath := filepath.Join(outputDir, uuid.NewString()+".wav")

	cmd := exec.CommandContext(
		ctx,
		"ffmpeg",
		"-y",
		"-v", "quiet",
		"-i", inputPath,
		"-c:a", "pcm_s16le",
		outputPath,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		utils.DeleteFile(outputPath)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg failed: %v (%s)", err, out)
	}

	return outputPath, nil
}
