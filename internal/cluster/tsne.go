package cluster

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// Projector maps feature vectors to low-dimensional coordinates. All rows of
// x have the same length; the result has one row per input row.
type Projector interface {
	Project(ctx context.Context, x [][]float64, opts Options) ([][]float64, error)
}

// TSNE is an exact t-SNE projector. It is O(n²) per iteration and meant for
// the few thousand samples of one project.
type TSNE struct {
	LearningRate float64
	Exaggeration float64
}

const (
	tsneMinGain     = 0.01
	tsneMinProb     = 1e-12
	tsneSearchSteps = 50
	tsneTolerance   = 1e-5
)

// Project runs opts.Iterations gradient steps seeded with opts.Seed.
func (t TSNE) Project(ctx context.Context, x [][]float64, opts Options) ([][]float64, error) {
	n := len(x)
	if n == 0 {
		return nil, nil
	}
	if opts.Components < 1 {
		return nil, fmt.Errorf("tsne: components must be positive, got %d", opts.Components)
	}
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, opts.Components)
	}
	if n == 1 {
		return out, nil
	}
	if opts.Perplexity <= 0 {
		return nil, errors.New("tsne: perplexity must be positive")
	}
	lr := t.LearningRate
	if lr <= 0 {
		lr = 200
	}
	exag := t.Exaggeration
	if exag <= 0 {
		exag = 12
	}

	p := jointProbabilities(x, opts.Perplexity)

	rng := rand.New(rand.NewPCG(uint64(opts.Seed), uint64(opts.Seed)^0x9e3779b97f4a7c15))
	for i := range out {
		for d := range out[i] {
			out[i][d] = rng.NormFloat64() * 1e-4
		}
	}

	dims := opts.Components
	update := make([][]float64, n)
	gains := make([][]float64, n)
	grad := make([][]float64, n)
	for i := range out {
		update[i] = make([]float64, dims)
		grad[i] = make([]float64, dims)
		gains[i] = make([]float64, dims)
		for d := range gains[i] {
			gains[i][d] = 1
		}
	}
	num := make([]float64, n*n)
	early := min(250, opts.Iterations/4)

	for it := 0; it < opts.Iterations; it++ {
		if it%50 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		scale, momentum := 1.0, 0.8
		if it < early {
			scale, momentum = exag, 0.5
		}

		var sum float64
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				d := floats.Distance(out[i], out[j], 2)
				q := 1 / (1 + d*d)
				num[i*n+j], num[j*n+i] = q, q
				sum += 2 * q
			}
		}

		for i := 0; i < n; i++ {
			g := grad[i]
			clear(g)
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				q := math.Max(num[i*n+j]/sum, tsneMinProb)
				w := 4 * (scale*p[i*n+j] - q) * num[i*n+j]
				for d := range g {
					g[d] += w * (out[i][d] - out[j][d])
				}
			}
		}

		for i := range out {
			for d := range out[i] {
				if (grad[i][d] > 0) != (update[i][d] > 0) {
					gains[i][d] += 0.2
				} else {
					gains[i][d] *= 0.8
				}
				gains[i][d] = math.Max(gains[i][d], tsneMinGain)
				update[i][d] = momentum*update[i][d] - lr*gains[i][d]*grad[i][d]
				out[i][d] += update[i][d]
			}
		}
		center(out)
	}
	return out, nil
}

// jointProbabilities returns the symmetric affinity matrix P (row-major,
// n×n) whose conditional rows match the target perplexity.
func jointProbabilities(x [][]float64, perplexity float64) []float64 {
	n := len(x)
	dist := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := floats.Distance(x[i], x[j], 2)
			dist[i*n+j], dist[j*n+i] = d*d, d*d
		}
	}

	cond := make([]float64, n*n)
	target := math.Log(perplexity)
	for i := 0; i < n; i++ {
		row := cond[i*n : (i+1)*n]
		searchBeta(dist[i*n:(i+1)*n], i, target, row)
	}

	p := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			p[i*n+j] = math.Max((cond[i*n+j]+cond[j*n+i])/float64(2*n), tsneMinProb)
		}
		p[i*n+i] = 0
	}
	return p
}

// searchBeta finds the Gaussian precision for point self whose conditional
// distribution has entropy target, writing it into row.
func searchBeta(dist []float64, self int, target float64, row []float64) {
	beta, lo, hi := 1.0, math.Inf(-1), math.Inf(1)

	// Shift by the nearest neighbour so exp never underflows on large
	// distances.
	minD := math.Inf(1)
	for j, d := range dist {
		if j != self && d < minD {
			minD = d
		}
	}

	for step := 0; step < tsneSearchSteps; step++ {
		var sum, weighted float64
		for j, d := range dist {
			if j == self {
				row[j] = 0
				continue
			}
			v := math.Exp(-(d - minD) * beta)
			row[j] = v
			sum += v
			weighted += (d - minD) * v
		}
		h := math.Log(sum) + beta*weighted/sum
		floats.Scale(1/sum, row)

		diff := h - target
		if math.Abs(diff) < tsneTolerance {
			return
		}
		if diff > 0 {
			lo = beta
			if math.IsInf(hi, 1) {
				beta *= 2
			} else {
				beta = (beta + hi) / 2
			}
		} else {
			hi = beta
			if math.IsInf(lo, -1) {
				beta /= 2
			} else {
				beta = (beta + lo) / 2
			}
		}
	}
}

func center(y [][]float64) {
	if len(y) == 0 {
		return
	}
	mean := make([]float64, len(y[0]))
	for _, row := range y {
		floats.Add(mean, row)
	}
	floats.Scale(1/float64(len(y)), mean)
	for _, row := range y {
		floats.Sub(row, mean)
	}
}
