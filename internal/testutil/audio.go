package testutil

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/stemma/internal/audio"
)

// Sine returns a mono buffer of frames samples of a sine at freq Hz.
func Sine(rate, frames int, freq float64) audio.Buffer {
	ch := make([]float32, frames)
	for i := range ch {
		ch[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return audio.Buffer{SampleRate: rate, Channels: [][]float32{ch}}
}

// WriteSine writes a 16-bit mono sine WAV file at path, creating parent
// directories, and returns path.
func WriteSine(t testing.TB, path string, rate, frames int, freq float64) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	codec := audio.WAVCodec{BitDepth: 16, Channels: 1}
	require.NoError(t, codec.Save(context.Background(), Sine(rate, frames, freq), path))
	return path
}
