package audio

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

// Converter turns uploaded audio (webm, ogg, mp3, ...) into the stereo
// 16-bit WAV the external player expects.
type Converter struct {
	// ffmpegPath is the ffmpeg binary to invoke.
	ffmpegPath string
}

// NewConverter creates a converter using the given ffmpeg binary.
func NewConverter(ffmpegPath string) *Converter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}

	return &Converter{ffmpegPath: ffmpegPath}
}

// ConvertToWAV transcodes src into a stereo 16-bit 44.1 kHz WAV at dst,
// overwriting any existing file.
func (c *Converter) ConvertToWAV(ctx context.Context, src, dst string) error {
	args := []string{
		"-y",
		"-i", src,
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		"-sample_fmt", "s16",
		dst,
	}

	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg convert %s: %w: %s", src, err, output)
	}

	return nil
}
