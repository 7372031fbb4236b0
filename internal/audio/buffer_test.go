package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_Validate(t *testing.T) {
	assert.NoError(t, Buffer{SampleRate: 8, Channels: [][]float32{{0, 1}, {1, 0}}}.Validate())
	assert.ErrorIs(t, Buffer{SampleRate: 8}.Validate(), ErrEmptyBuffer)
	assert.Error(t, Buffer{SampleRate: 0, Channels: [][]float32{{0}}}.Validate())
	assert.Error(t, Buffer{SampleRate: 8, Channels: [][]float32{{0, 1}, {1}}}.Validate())
}

func TestBuffer_WithChannels(t *testing.T) {
	mono := Buffer{SampleRate: 8, Channels: [][]float32{{0.25, -0.5}}}

	stereo, err := mono.WithChannels(2)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.25, -0.5}, {0.25, -0.5}}, stereo.Channels)

	stereo.Channels[1][0] = 0.75
	down, err := stereo.WithChannels(1)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.5, -0.5}}, down.Channels)

	_, err = mono.WithChannels(0)
	assert.Error(t, err)
}

func TestBuffer_Resample(t *testing.T) {
	b := Buffer{SampleRate: 4, Channels: [][]float32{{0, 1, 0, -1}}}

	up, err := b.Resample(8)
	require.NoError(t, err)
	assert.Equal(t, 8, up.SampleRate)
	require.Equal(t, 8, up.Frames())
	assert.InDelta(t, 0.5, up.Channels[0][1], 1e-6)
	assert.InDelta(t, 1, up.Channels[0][2], 1e-6)

	down, err := b.Resample(2)
	require.NoError(t, err)
	assert.Equal(t, 2, down.Frames())

	same, err := b.Resample(4)
	require.NoError(t, err)
	assert.Equal(t, b.Channels, same.Channels)
}

func TestCropOrPad(t *testing.T) {
	assert.Equal(t, []float32{1, 2}, CropOrPad([]float32{1, 2, 3}, 2))
	assert.Equal(t, []float32{1, 0, 0}, CropOrPad([]float32{1}, 3))
}
