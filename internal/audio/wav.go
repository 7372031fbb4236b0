package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// WAVCodec reads and writes integer PCM WAV files.
type WAVCodec struct {
	// BitDepth used when writing. Zero means 16.
	BitDepth int

	// Channels forces the channel count of loaded buffers. Zero keeps the
	// file's layout.
	Channels int
}

// Load decodes path and resamples it to targetRate (0 keeps the file rate).
func (c WAVCodec) Load(ctx context.Context, path string, targetRate int) (Buffer, error) {
	if err := ctx.Err(); err != nil {
		return Buffer{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Buffer{}, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Buffer{}, fmt.Errorf("decode %s: not a valid wav file", path)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("decode %s: %w", path, err)
	}

	buf, err := fromIntBuffer(pcm)
	if err != nil {
		return Buffer{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if c.Channels > 0 {
		if buf, err = buf.WithChannels(c.Channels); err != nil {
			return Buffer{}, err
		}
	}
	if targetRate > 0 {
		if buf, err = buf.Resample(targetRate); err != nil {
			return Buffer{}, err
		}
	}
	return buf, nil
}

// Save encodes buf to path, creating parent directories as needed. The file
// is written next to its destination and renamed into place.
func (c WAVCodec) Save(ctx context.Context, buf Buffer, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := buf.Validate(); err != nil {
		return err
	}
	depth := c.BitDepth
	if depth == 0 {
		depth = 16
	}
	if depth != 16 && depth != 24 && depth != 32 {
		return fmt.Errorf("audio: unsupported bit depth %d", depth)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create audio dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp audio: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	enc := wav.NewEncoder(tmp, buf.SampleRate, depth, buf.NumChannels(), wavFormatPCM)
	if err := enc.Write(toIntBuffer(buf, depth)); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close audio: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename audio: %w", err)
	}
	committed = true
	return nil
}

func fromIntBuffer(pcm *goaudio.IntBuffer) (Buffer, error) {
	if pcm.Format == nil || pcm.Format.NumChannels <= 0 {
		return Buffer{}, fmt.Errorf("missing pcm format")
	}
	nch := pcm.Format.NumChannels
	frames := len(pcm.Data) / nch
	if frames == 0 {
		return Buffer{}, ErrEmptyBuffer
	}

	// 8-bit wav is unsigned, everything wider is signed.
	offset := 0
	scale := float32(goaudio.IntMaxSignedValue(pcm.SourceBitDepth))
	if pcm.SourceBitDepth == 8 {
		offset = 128
		scale = 128
	}
	if scale <= 0 {
		return Buffer{}, fmt.Errorf("unsupported bit depth %d", pcm.SourceBitDepth)
	}

	out := Buffer{SampleRate: pcm.Format.SampleRate, Channels: make([][]float32, nch)}
	for c := range out.Channels {
		out.Channels[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < nch; c++ {
			out.Channels[c][i] = float32(pcm.Data[i*nch+c]-offset) / scale
		}
	}
	return out, nil
}

func toIntBuffer(buf Buffer, depth int) *goaudio.IntBuffer {
	nch := buf.NumChannels()
	frames := buf.Frames()
	maxVal := float32(goaudio.IntMaxSignedValue(depth))
	data := make([]int, frames*nch)
	for i := 0; i < frames; i++ {
		for c := 0; c < nch; c++ {
			v := buf.Channels[c][i]
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			data[i*nch+c] = int(v * maxVal)
		}
	}
	return &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: nch, SampleRate: buf.SampleRate},
		Data:           data,
		SourceBitDepth: depth,
	}
}
