package anomaly

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// eulerGamma is the Euler–Mascheroni constant used by the average path
// length of an unsuccessful BST search.
const eulerGamma = 0.5772156649015329

// Options control how a Forest is built.
type Options struct {
	Trees         int     // number of isolation trees (default 100)
	SampleSize    int     // per-tree subsample size ψ (default 256)
	Contamination float64 // expected share of outliers in the samples (default 0.01)
	Seed          int64   // RNG seed; equal seeds and samples give equal forests
}

// DefaultOptions mirrors the configuration the service has always shipped
// with: 100 trees, ψ=256, 1% contamination.
func DefaultOptions() Options {
	return Options{Trees: 100, SampleSize: 256, Contamination: 0.01, Seed: 1}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Trees <= 0 {
		o.Trees = d.Trees
	}
	if o.SampleSize <= 0 {
		o.SampleSize = d.SampleSize
	}
	if o.Contamination <= 0 {
		o.Contamination = d.Contamination
	}
	return o
}

var (
	errNoSamples   = errors.New("anomaly: no samples")
	errRaggedInput = errors.New("anomaly: samples have inconsistent dimensions")
)

// node is one element of a flattened isolation tree. Leaves have Left == -1.
type node struct {
	Feature int     `cbor:"1,keyasint"`
	Split   float64 `cbor:"2,keyasint"`
	Left    int32   `cbor:"3,keyasint"`
	Right   int32   `cbor:"4,keyasint"`
	Size    int     `cbor:"5,keyasint"`
}

type tree struct {
	Nodes []node `cbor:"1,keyasint"`
}

// Forest is an isolation forest. It is immutable once built or loaded and
// safe for concurrent use.
type Forest struct {
	Trees         []tree  `cbor:"1,keyasint"`
	Dim           int     `cbor:"2,keyasint"`
	SampleSize    int     `cbor:"3,keyasint"`
	Contamination float64 `cbor:"4,keyasint"`
	Threshold     float64 `cbor:"5,keyasint"`
}

// Build grows a forest over samples and sets the anomaly threshold so that
// the Contamination share of the samples scores above it.
func Build(samples [][]float64, opts Options) (*Forest, error) {
	if len(samples) == 0 {
		return nil, errNoSamples
	}
	dim := len(samples[0])
	if dim == 0 {
		return nil, errRaggedInput
	}
	for _, s := range samples {
		if len(s) != dim {
			return nil, errRaggedInput
		}
		for _, v := range s {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("anomaly: sample value %v is not finite", v)
			}
		}
	}
	opts = opts.withDefaults()

	psi := opts.SampleSize
	if psi > len(samples) {
		psi = len(samples)
	}
	limit := int(math.Ceil(math.Log2(float64(max(psi, 2)))))

	rng := rand.New(rand.NewSource(opts.Seed))
	f := &Forest{
		Trees:         make([]tree, 0, opts.Trees),
		Dim:           dim,
		SampleSize:    psi,
		Contamination: opts.Contamination,
	}

	for i := 0; i < opts.Trees; i++ {
		perm := rng.Perm(len(samples))[:psi]
		b := &builder{samples: samples, rng: rng, dim: dim, limit: limit}
		b.grow(perm, 0)
		f.Trees = append(f.Trees, tree{Nodes: b.nodes})
	}

	scores := make([]float64, len(samples))
	for i, s := range samples {
		scores[i] = f.score(s)
	}
	f.Threshold = percentile(scores, 1-opts.Contamination)
	return f, nil
}

type builder struct {
	samples [][]float64
	rng     *rand.Rand
	dim     int
	limit   int
	nodes   []node
}

// grow appends the subtree for idx and returns its node index.
func (b *builder) grow(idx []int, depth int) int32 {
	at := int32(len(b.nodes))
	b.nodes = append(b.nodes, node{Left: -1, Right: -1, Size: len(idx)})

	if depth >= b.limit || len(idx) <= 1 {
		return at
	}

	lo, hi := bounds(b.samples, idx, b.dim)
	var candidates []int
	for d := 0; d < b.dim; d++ {
		if hi[d] > lo[d] {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return at
	}

	feat := candidates[b.rng.Intn(len(candidates))]
	split := lo[feat] + b.rng.Float64()*(hi[feat]-lo[feat])

	var left, right []int
	for _, i := range idx {
		if b.samples[i][feat] < split {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return at
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[at] = node{Feature: feat, Split: split, Left: l, Right: r, Size: len(idx)}
	return at
}

func bounds(samples [][]float64, idx []int, dim int) (lo, hi []float64) {
	lo = make([]float64, dim)
	hi = make([]float64, dim)
	for d := 0; d < dim; d++ {
		lo[d] = math.Inf(1)
		hi[d] = math.Inf(-1)
	}
	for _, i := range idx {
		for d, v := range samples[i] {
			lo[d] = math.Min(lo[d], v)
			hi[d] = math.Max(hi[d], v)
		}
	}
	return lo, hi
}

// pathLength is the depth at which x is isolated in t. Values beyond the
// training range follow the split like any other, so the walk always ends
// at a leaf.
func (t *tree) pathLength(x []float64) float64 {
	depth := 0.0
	i := int32(0)
	for {
		n := t.Nodes[i]
		if n.Left < 0 {
			return depth + avgPathLength(n.Size)
		}
		if x[n.Feature] < n.Split {
			i = n.Left
		} else {
			i = n.Right
		}
		depth++
	}
}

// avgPathLength is c(n), the expected path length of an unsuccessful
// search in a binary search tree of n points.
func avgPathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		fn := float64(n)
		return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
	}
}

func (f *Forest) score(x []float64) float64 {
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].pathLength(x)
	}
	mean := sum / float64(len(f.Trees))
	c := avgPathLength(f.SampleSize)
	if c == 0 {
		return 0.5
	}
	return math.Pow(2, -mean/c)
}

// Score returns the anomaly score of x in (0, 1]; higher is more anomalous.
func (f *Forest) Score(x []float64) (float64, error) {
	if err := f.check(x); err != nil {
		return 0, err
	}
	return f.score(x), nil
}

// IsAnomaly reports whether x scores above the forest's threshold.
func (f *Forest) IsAnomaly(x []float64) (bool, error) {
	s, err := f.Score(x)
	if err != nil {
		return false, err
	}
	return s > f.Threshold, nil
}

func (f *Forest) check(x []float64) error {
	if f == nil || len(f.Trees) == 0 {
		return ErrNoModel
	}
	if len(x) != f.Dim {
		return fmt.Errorf("anomaly: expected %d features, got %d", f.Dim, len(x))
	}
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("anomaly: feature value %v is not finite", v)
		}
	}
	return nil
}

// percentile returns the q-quantile (0..1) of values using linear
// interpolation between closest ranks.
func percentile(values []float64, q float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
