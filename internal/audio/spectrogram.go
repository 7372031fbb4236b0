package audio

import (
	"context"
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Loader loads an audio file at a target sample rate.
type Loader interface {
	Load(ctx context.Context, path string, targetRate int) (Buffer, error)
}

// SpectrogramExtractor turns an audio file into a fixed-length feature
// vector: mono downmix, crop or zero-pad to WindowSamples, Hann-windowed
// magnitude STFT, flattened frame by frame.
type SpectrogramExtractor struct {
	Loader        Loader
	SampleRate    int
	WindowSamples int
	FFTSize       int
	HopSize       int
}

// NewSpectrogramExtractor returns an extractor reading WAV files.
func NewSpectrogramExtractor(sampleRate, windowSamples, fftSize, hopSize int) *SpectrogramExtractor {
	return &SpectrogramExtractor{
		Loader:        WAVCodec{Channels: 1},
		SampleRate:    sampleRate,
		WindowSamples: windowSamples,
		FFTSize:       fftSize,
		HopSize:       hopSize,
	}
}

// Dim returns the length of every vector produced by Extract.
func (e *SpectrogramExtractor) Dim() int {
	return e.frames() * (e.FFTSize/2 + 1)
}

func (e *SpectrogramExtractor) frames() int {
	if e.FFTSize <= 0 || e.HopSize <= 0 || e.WindowSamples < e.FFTSize {
		return 0
	}
	return 1 + (e.WindowSamples-e.FFTSize)/e.HopSize
}

func (e *SpectrogramExtractor) validate() error {
	if e.Loader == nil {
		return fmt.Errorf("spectrogram: no loader")
	}
	if e.frames() == 0 {
		return fmt.Errorf("spectrogram: window %d, fft %d, hop %d yield no frames",
			e.WindowSamples, e.FFTSize, e.HopSize)
	}
	return nil
}

// Extract loads path and returns its flattened magnitude spectrogram.
func (e *SpectrogramExtractor) Extract(ctx context.Context, path string) ([]float64, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}
	buf, err := e.Loader.Load(ctx, path, e.SampleRate)
	if err != nil {
		return nil, err
	}
	if buf.Frames() == 0 {
		return nil, ErrEmptyBuffer
	}
	return e.Features(buf.Mono()), nil
}

// Features computes the spectrogram of mono samples.
func (e *SpectrogramExtractor) Features(samples []float32) []float64 {
	clip := CropOrPad(samples, e.WindowSamples)
	hann := window.NewValues(window.Hann, e.FFTSize)
	fft := fourier.NewFFT(e.FFTSize)

	bins := e.FFTSize/2 + 1
	out := make([]float64, 0, e.frames()*bins)
	frame := make([]float64, e.FFTSize)
	coeff := make([]complex128, bins)
	for f := 0; f < e.frames(); f++ {
		start := f * e.HopSize
		for i := range frame {
			frame[i] = float64(clip[start+i])
		}
		hann.Transform(frame)
		fft.Coefficients(coeff, frame)
		for _, c := range coeff {
			out = append(out, cmplx.Abs(c))
		}
	}
	return out
}
