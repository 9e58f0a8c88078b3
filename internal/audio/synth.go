package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// PCM parameters for generated assets: 16-bit stereo at 44.1 kHz.
const (
	SampleRate = 44100
	Channels   = 2
	BitDepth   = 16
	Amplitude  = 0.75
)

// SegmentKind selects how one pattern segment is rendered.
type SegmentKind string

const (
	// SegmentTone renders a constant frequency.
	SegmentTone SegmentKind = "tone"
	// SegmentSweep renders a linear frequency ramp from FreqStart to FreqEnd.
	SegmentSweep SegmentKind = "sweep"
	// SegmentSilence renders zero samples.
	SegmentSilence SegmentKind = "silence"
)

// Segment is one piece of a siren pattern.
type Segment struct {
	// Kind selects tone, sweep or silence.
	Kind SegmentKind
	// Seconds is the segment duration.
	Seconds float64
	// FreqStart is the frequency in Hz (start of ramp for sweeps).
	FreqStart float64
	// FreqEnd is the end frequency for sweeps, ignored otherwise.
	FreqEnd float64
}

// Built-in siren patterns. The flood siren is a slow symmetric wail, the
// earthquake siren three rising chirps with a long pause, and the custom
// placeholder a short beep so the Custom slot is playable before any upload.
var (
	FloodPattern = []Segment{
		{Kind: SegmentSweep, Seconds: 1.2, FreqStart: 450, FreqEnd: 1000},
		{Kind: SegmentSweep, Seconds: 1.2, FreqStart: 1000, FreqEnd: 450},
	}

	EarthquakePattern = []Segment{
		{Kind: SegmentSweep, Seconds: 0.5, FreqStart: 600, FreqEnd: 1600},
		{Kind: SegmentSilence, Seconds: 0.15},
		{Kind: SegmentSweep, Seconds: 0.5, FreqStart: 600, FreqEnd: 1600},
		{Kind: SegmentSilence, Seconds: 0.15},
		{Kind: SegmentSweep, Seconds: 0.5, FreqStart: 600, FreqEnd: 1600},
		{Kind: SegmentSilence, Seconds: 1.2},
	}

	CustomPlaceholderPattern = []Segment{
		{Kind: SegmentTone, Seconds: 1.0, FreqStart: 800},
		{Kind: SegmentSilence, Seconds: 0.3},
	}
)

// WritePatternWAV renders the pattern and writes it as a PCM WAV file.
func WritePatternWAV(path string, pattern []Segment) error {
	frames := renderPattern(pattern)

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create asset directory: %w", err)
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create asset: %w", err)
	}

	if err := writeWAV(f, frames); err != nil {
		_ = f.Close()

		return fmt.Errorf("write asset %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close asset: %w", err)
	}

	return nil
}

// renderPattern produces interleaved stereo 16-bit little-endian samples.
func renderPattern(pattern []Segment) []byte {
	var frames []byte

	maxAmp := float64(int(1)<<(BitDepth-1)-1) * Amplitude

	for _, seg := range pattern {
		n := int(seg.Seconds * SampleRate)

		if seg.Kind == SegmentSilence {
			frames = append(frames, make([]byte, n*Channels*BitDepth/8)...)
			continue
		}

		for i := 0; i < n; i++ {
			t := float64(i) / SampleRate

			freq := seg.FreqStart
			if seg.Kind == SegmentSweep && n > 1 {
				freq = seg.FreqStart + (seg.FreqEnd-seg.FreqStart)*float64(i)/float64(n-1)
			}

			val := int16(maxAmp * math.Sin(2*math.Pi*freq*t))

			var sample [2]byte

			binary.LittleEndian.PutUint16(sample[:], uint16(val))

			// Same sample on both channels.
			frames = append(frames, sample[0], sample[1], sample[0], sample[1])
		}
	}

	return frames
}

// writeWAV emits a canonical 44-byte RIFF/WAVE header followed by the frames.
func writeWAV(f *os.File, frames []byte) error {
	const headerSize = 44

	var (
		blockAlign = Channels * BitDepth / 8
		byteRate   = SampleRate * blockAlign
	)

	header := make([]byte, 0, headerSize)
	header = append(header, "RIFF"...)
	header = binary.LittleEndian.AppendUint32(header, uint32(headerSize-8+len(frames)))
	header = append(header, "WAVE"...)
	header = append(header, "fmt "...)
	header = binary.LittleEndian.AppendUint32(header, 16) // PCM fmt chunk size.
	header = binary.LittleEndian.AppendUint16(header, 1)  // PCM format.
	header = binary.LittleEndian.AppendUint16(header, Channels)
	header = binary.LittleEndian.AppendUint32(header, SampleRate)
	header = binary.LittleEndian.AppendUint32(header, uint32(byteRate))
	header = binary.LittleEndian.AppendUint16(header, uint16(blockAlign))
	header = binary.LittleEndian.AppendUint16(header, BitDepth)
	header = append(header, "data"...)
	header = binary.LittleEndian.AppendUint32(header, uint32(len(frames)))

	if _, err := f.Write(header); err != nil {
		return err
	}

	_, err := f.Write(frames)

	return err
}
