package uid

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/xxh3"
)

func f32Tensor(shape []int, vals ...float32) *Tensor {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return &Tensor{DType: Float32, Shape: shape, Data: buf}
}

func sampleWeights() WeightMap {
	return WeightMap{
		"decoder.weight": f32Tensor([]int{2, 2}, 1, 2, 3, 4),
		"decoder.bias":   f32Tensor([]int{2}, 0.5, -0.5),
		"encoder.weight": f32Tensor([]int{3}, 7, 8, 9),
	}
}

func TestNew_SelectsByName(t *testing.T) {
	cases := map[string]string{
		"":        TypeXXH3_64,
		"xxh3_64": TypeXXH3_64,
		"XXH64":   TypeXXH64,
		"sha256":  TypeSHA256,
	}
	for name, want := range cases {
		g, err := New(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, g.Type(), name)
		assert.NotEmpty(t, g.Version(), name)
	}

	_, err := New("md5")
	assert.Error(t, err)
}

func TestFromBytes_MatchesUnderlyingAlgorithms(t *testing.T) {
	data := []byte("stemma artifact")

	assert.Equal(t, fmt.Sprintf("%016x", xxh3.Hash(data)), NewXXH3().FromBytes(data))
	assert.Equal(t, fmt.Sprintf("%016x", xxhash.Sum64(data)), NewXXH64().FromBytes(data))
	assert.Len(t, NewSHA256().FromBytes(data), 64)
}

func TestFromString_EqualsFromBytes(t *testing.T) {
	g := NewXXH3()
	assert.Equal(t, g.FromBytes([]byte("abc")), g.FromString("abc"))
}

func TestFromReader_EqualsFromBytes(t *testing.T) {
	g := NewXXH3()
	data := bytes.Repeat([]byte{0x01, 0x02, 0x03}, 10000)

	sum, err := g.FromReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, g.FromBytes(data), sum)
}

func TestFromWeights_OrderIndependent(t *testing.T) {
	for _, g := range []Generator{NewXXH3(), NewXXH64(), NewSHA256()} {
		t.Run(g.Type(), func(t *testing.T) {
			a := sampleWeights()

			// Build the same logical map with a different insertion order.
			b := WeightMap{}
			names := a.Names()
			for i := len(names) - 1; i >= 0; i-- {
				b[names[i]] = a[names[i]]
			}

			ha, err := g.FromWeights(a)
			require.NoError(t, err)
			hb, err := g.FromWeights(b)
			require.NoError(t, err)
			assert.Equal(t, ha, hb)
		})
	}
}

func TestFromWeights_SingleByteChangeAltersDigest(t *testing.T) {
	g := NewXXH3()
	base, err := g.FromWeights(sampleWeights())
	require.NoError(t, err)

	w := sampleWeights()
	w["encoder.weight"].Data[5] ^= 0x01
	changed, err := g.FromWeights(w)
	require.NoError(t, err)

	assert.NotEqual(t, base, changed)
}

func TestFromWeights_RenamedParameterAltersOrder(t *testing.T) {
	g := NewXXH3()
	a := WeightMap{
		"a": f32Tensor([]int{1}, 1),
		"b": f32Tensor([]int{1}, 2),
	}
	b := WeightMap{
		"a": f32Tensor([]int{1}, 2),
		"b": f32Tensor([]int{1}, 1),
	}
	ha, err := g.FromWeights(a)
	require.NoError(t, err)
	hb, err := g.FromWeights(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestFromWeights_NilTensor(t *testing.T) {
	_, err := NewXXH3().FromWeights(WeightMap{"x": nil})
	assert.Error(t, err)
}

func TestFromTensor_IgnoresDevice(t *testing.T) {
	g := NewXXH3()
	cpu := f32Tensor([]int{2}, 1, 2)
	gpu := f32Tensor([]int{2}, 1, 2)
	gpu.Device = "cuda:0"

	a, err := g.FromTensor(cpu)
	require.NoError(t, err)
	b, err := g.FromTensor(gpu)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestIdentify(t *testing.T) {
	g := NewXXH3()
	id, err := Identify(g, sampleWeights())
	require.NoError(t, err)

	assert.Equal(t, TypeXXH3_64, id.Type)
	assert.Equal(t, g.Version(), id.Version)
	assert.Len(t, id.UID, 16)
}
