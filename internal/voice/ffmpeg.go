package voice

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// FFmpeg transcodes audio by shelling out to an ffmpeg binary.
type FFmpeg struct {
	Path string
}

// Args returns the ffmpeg arguments for converting src to 16 kHz mono WAV.
func (FFmpeg) Args(src, dst string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", src,
		"-ar", "16000",
		"-ac", "1",
		"-f", "wav",
		dst,
	}
}

// Transcode implements Transcoder.
func (f FFmpeg) Transcode(ctx context.Context, src, dst string) error {
	path := f.Path
	if path == "" {
		path = "ffmpeg"
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, f.Args(src, dst)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}
