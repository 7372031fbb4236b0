package cluster

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

// blobs returns two tight groups of five points, far apart.
func blobs() [][]float64 {
	var x [][]float64
	for _, c := range []float64{0, 50} {
		for i := 0; i < 5; i++ {
			o := float64(i) * 0.1
			x = append(x, []float64{c + o, c - o, c + o*o})
		}
	}
	return x
}

func TestTSNE_SeparatesClusters(t *testing.T) {
	opts := Options{Components: 2, Perplexity: 3, Iterations: 300, Seed: 1}
	y, err := TSNE{}.Project(context.Background(), blobs(), opts)
	require.NoError(t, err)
	require.Len(t, y, 10)

	var within, between float64
	var nw, nb int
	for i := range y {
		require.Len(t, y[i], 2)
		for _, v := range y[i] {
			require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}
		for j := i + 1; j < len(y); j++ {
			d := floats.Distance(y[i], y[j], 2)
			if (i < 5) == (j < 5) {
				within += d
				nw++
			} else {
				between += d
				nb++
			}
		}
	}
	assert.Less(t, within/float64(nw), between/float64(nb))
}

func TestTSNE_Deterministic(t *testing.T) {
	opts := Options{Components: 3, Perplexity: 2, Iterations: 50, Seed: 7}
	a, err := TSNE{}.Project(context.Background(), blobs(), opts)
	require.NoError(t, err)
	b, err := TSNE{}.Project(context.Background(), blobs(), opts)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a[0], 3)
}

func TestTSNE_Centered(t *testing.T) {
	y, err := TSNE{}.Project(context.Background(), blobs(), Options{Components: 2, Perplexity: 3, Iterations: 20, Seed: 3})
	require.NoError(t, err)
	mean := make([]float64, 2)
	for _, row := range y {
		floats.Add(mean, row)
	}
	assert.InDelta(t, 0, mean[0], 1e-9)
	assert.InDelta(t, 0, mean[1], 1e-9)
}

func TestTSNE_Errors(t *testing.T) {
	_, err := TSNE{}.Project(context.Background(), blobs(), Options{Components: 0, Perplexity: 3, Iterations: 1})
	assert.Error(t, err)
	_, err = TSNE{}.Project(context.Background(), blobs(), Options{Components: 2, Perplexity: 0, Iterations: 1})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = TSNE{}.Project(ctx, blobs(), Options{Components: 2, Perplexity: 3, Iterations: 10})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJointProbabilities_Symmetric(t *testing.T) {
	x := blobs()
	p := jointProbabilities(x, 3)
	n := len(x)
	var sum float64
	for i := 0; i < n; i++ {
		assert.Zero(t, p[i*n+i])
		for j := 0; j < n; j++ {
			assert.InDelta(t, p[i*n+j], p[j*n+i], 1e-15)
			sum += p[i*n+j]
		}
	}
	assert.InDelta(t, 1, sum, 1e-6)
}
