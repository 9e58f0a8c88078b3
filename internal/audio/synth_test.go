package audio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestWritePatternWAV renders a short pattern and checks the RIFF header
// and the expected frame count.
func TestWritePatternWAV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "beep.wav")
	pattern := []Segment{
		{Kind: SegmentTone, Seconds: 0.01, FreqStart: 800},
		{Kind: SegmentSilence, Seconds: 0.005},
	}

	require.NoError(t, WritePatternWAV(path, pattern))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)

	require.Equal(t, "RIFF", string(contents[0:4]))
	require.Equal(t, "WAVE", string(contents[8:12]))

	// 0.015 s of stereo 16-bit audio at 44.1 kHz.
	toneSec, silenceSec := 0.01, 0.005
	wantFrames := (int(toneSec*SampleRate) + int(silenceSec*SampleRate)) * Channels * BitDepth / 8
	require.Equal(t, uint32(wantFrames), binary.LittleEndian.Uint32(contents[40:44]))
	require.Len(t, contents, 44+wantFrames)
}

// TestRenderPatternSilence verifies silence renders as zero samples.
func TestRenderPatternSilence(t *testing.T) {
	t.Parallel()

	frames := renderPattern([]Segment{{Kind: SegmentSilence, Seconds: 0.001}})
	silenceSec := 0.001
	require.Len(t, frames, int(silenceSec*SampleRate)*Channels*BitDepth/8)

	for _, b := range frames {
		require.Zero(t, b)
	}
}
