package engine

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/stemma/internal/audio"
	"github.com/roach88/stemma/internal/uid"
)

func f32Tensor(shape []int, vals ...float32) *uid.Tensor {
	var data []byte
	for _, v := range vals {
		data = binary.LittleEndian.AppendUint32(data, math.Float32bits(v))
	}
	return &uid.Tensor{DType: uid.Float32, Shape: shape, Data: data}
}

func testWeights() uid.WeightMap {
	return uid.WeightMap{
		"decoder.bias":   f32Tensor([]int{2}, 0.5, -0.5),
		"encoder.weight": f32Tensor([]int{2, 2}, 1, 2, 3, 4),
	}
}

func writeCheckpoint(t *testing.T, dir string, w uid.WeightMap) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteSafetensors(&buf, w, map[string]string{"format": "pt"}))
	path := filepath.Join(dir, "model.safetensors")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "model_config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const validConfig = `{"sample_rate": 44100, "sample_size": 65536, "model_type": "diffusion_cond", "model": {"io_channels": 64}}`

// echoBackend returns BatchSize silent buffers.
type echoBackend struct{ SafetensorsBackend }

func (echoBackend) Name() string { return "echo" }

func (echoBackend) Generate(_ context.Context, m *Model, p GenerateParams) ([]audio.Buffer, error) {
	out := make([]audio.Buffer, p.BatchSize)
	for i := range out {
		out[i] = audio.Buffer{SampleRate: m.Config.SampleRate, Channels: [][]float32{make([]float32, p.ChunkSize)}}
	}
	return out, nil
}
