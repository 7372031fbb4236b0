package audio

import (
	"errors"
	"fmt"
	"math"
)

// ErrEmptyBuffer is returned for buffers without channels or frames.
var ErrEmptyBuffer = errors.New("audio: empty buffer")

// Buffer is planar PCM audio. Channels[c][i] is frame i of channel c.
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// NumChannels returns the channel count.
func (b Buffer) NumChannels() int { return len(b.Channels) }

// Frames returns the number of frames per channel.
func (b Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the length in seconds.
func (b Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Validate checks that the buffer is non-empty and not ragged.
func (b Buffer) Validate() error {
	if b.SampleRate <= 0 {
		return fmt.Errorf("audio: invalid sample rate %d", b.SampleRate)
	}
	if len(b.Channels) == 0 || len(b.Channels[0]) == 0 {
		return ErrEmptyBuffer
	}
	n := len(b.Channels[0])
	for c, ch := range b.Channels {
		if len(ch) != n {
			return fmt.Errorf("audio: channel %d has %d frames, want %d", c, len(ch), n)
		}
	}
	return nil
}

// Mono returns the per-frame mean of all channels.
func (b Buffer) Mono() []float32 {
	out := make([]float32, b.Frames())
	if len(b.Channels) == 0 {
		return out
	}
	scale := 1 / float32(len(b.Channels))
	for _, ch := range b.Channels {
		for i, v := range ch {
			out[i] += v * scale
		}
	}
	return out
}

// WithChannels returns b with exactly n channels. Mono input is duplicated,
// any other mismatch is downmixed to mono first.
func (b Buffer) WithChannels(n int) (Buffer, error) {
	if n <= 0 {
		return Buffer{}, fmt.Errorf("audio: invalid channel count %d", n)
	}
	if len(b.Channels) == n {
		return b, nil
	}
	if len(b.Channels) == 0 {
		return Buffer{}, ErrEmptyBuffer
	}
	src := b.Channels[0]
	if len(b.Channels) != 1 {
		src = b.Mono()
	}
	out := Buffer{SampleRate: b.SampleRate, Channels: make([][]float32, n)}
	for c := range out.Channels {
		out.Channels[c] = append([]float32(nil), src...)
	}
	return out, nil
}

// Resample converts b to rate using linear interpolation.
func (b Buffer) Resample(rate int) (Buffer, error) {
	if rate <= 0 {
		return Buffer{}, fmt.Errorf("audio: invalid sample rate %d", rate)
	}
	if rate == b.SampleRate || b.Frames() == 0 {
		b.SampleRate = rate
		return b, nil
	}
	if b.SampleRate <= 0 {
		return Buffer{}, fmt.Errorf("audio: invalid source sample rate %d", b.SampleRate)
	}

	in := b.Frames()
	outFrames := int(math.Round(float64(in) * float64(rate) / float64(b.SampleRate)))
	if outFrames < 1 {
		outFrames = 1
	}
	step := float64(b.SampleRate) / float64(rate)

	out := Buffer{SampleRate: rate, Channels: make([][]float32, len(b.Channels))}
	for c, ch := range b.Channels {
		dst := make([]float32, outFrames)
		for i := range dst {
			pos := float64(i) * step
			j := int(pos)
			if j >= in-1 {
				dst[i] = ch[in-1]
				continue
			}
			frac := float32(pos - float64(j))
			dst[i] = ch[j]*(1-frac) + ch[j+1]*frac
		}
		out.Channels[c] = dst
	}
	return out, nil
}

// CropOrPad returns samples truncated or zero-padded to exactly n values.
func CropOrPad(samples []float32, n int) []float32 {
	out := make([]float32, n)
	copy(out, samples)
	return out
}
