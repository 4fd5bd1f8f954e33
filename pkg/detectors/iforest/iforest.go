// Package iforest implements the Isolation Forest algorithm for anomaly detection.
package iforest

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hed1ad/fraudscope/pkg/detectors"
)

var (
	// ErrEmptyData is returned when fitting on no samples.
	ErrEmptyData = errors.New("empty training data")
	// ErrNotTrained is returned when scoring before Fit.
	ErrNotTrained = errors.New("model not trained")
	// ErrDimension is returned for rows whose length differs from the training layout.
	ErrDimension = errors.New("feature dimension mismatch")
)

var _ detectors.Detector = (*IsolationForest)(nil)

// IsolationForest implements unsupervised anomaly detection using isolation trees.
type IsolationForest struct {
	mu sync.RWMutex

	// Configuration
	nTrees        int
	sampleSize    int
	contamination float64
	seed          int64
	workers       int

	// Trained model
	trees     []*iTree
	nFeatures int
	maxDepth  int
	trained   bool

	// Statistics from training
	avgPathLength float64
	threshold     float64
}

// iTree represents a single isolation tree.
type iTree struct {
	root *node
}

// node is a node in the isolation tree.
type node struct {
	// Split parameters (for internal nodes)
	splitFeature int
	splitValue   float64

	// Children
	left  *node
	right *node

	// Leaf information
	size int // number of samples that reached this leaf
}

// Option configures an IsolationForest.
type Option func(*IsolationForest)

// WithTrees sets the number of isolation trees.
func WithTrees(n int) Option {
	return func(f *IsolationForest) {
		f.nTrees = n
	}
}

// WithSampleSize sets the subsample size for each tree.
func WithSampleSize(n int) Option {
	return func(f *IsolationForest) {
		f.sampleSize = n
	}
}

// WithContamination sets the expected proportion of anomalies.
func WithContamination(c float64) Option {
	return func(f *IsolationForest) {
		f.contamination = c
	}
}

// WithSeed sets the random seed for reproducibility.
func WithSeed(seed int64) Option {
	return func(f *IsolationForest) {
		f.seed = seed
	}
}

// WithWorkers bounds the number of trees built concurrently.
func WithWorkers(n int) Option {
	return func(f *IsolationForest) {
		f.workers = n
	}
}

// New creates a new IsolationForest with the given options.
func New(opts ...Option) *IsolationForest {
	f := &IsolationForest{
		nTrees:        100,
		sampleSize:    256,
		contamination: 0.1,
		seed:          42,
		workers:       runtime.GOMAXPROCS(0),
		threshold:     0.5,
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.nTrees < 1 {
		f.nTrees = 1
	}
	if f.sampleSize < 1 {
		f.sampleSize = 1
	}
	if f.workers < 1 {
		f.workers = 1
	}

	return f
}

// FromConfig creates an IsolationForest from the common detector configuration.
func FromConfig(cfg detectors.Config) *IsolationForest {
	return New(
		WithTrees(cfg.Trees),
		WithSampleSize(cfg.MaxSamples),
		WithContamination(cfg.Contamination),
		WithSeed(cfg.RandomSeed),
	)
}

// Fit trains the Isolation Forest on the provided data.
// Fitting the same data with the same seed always yields the same forest.
func (f *IsolationForest) Fit(data [][]float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(data) == 0 {
		return ErrEmptyData
	}

	nSamples := len(data)
	nFeatures := len(data[0])
	for i, row := range data {
		if len(row) != nFeatures {
			return fmt.Errorf("%w: row %d has %d features, want %d", ErrDimension, i, len(row), nFeatures)
		}
	}

	// Adjust sample size if needed
	sampleSize := f.sampleSize
	if sampleSize > nSamples {
		sampleSize = nSamples
	}
	f.maxDepth = int(math.Ceil(math.Log2(float64(max(sampleSize, 2)))))

	// Per-tree seeds are drawn up front so the concurrent build is order independent.
	rng := rand.New(rand.NewSource(f.seed))
	seeds := make([]int64, f.nTrees)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}

	trees := make([]*iTree, f.nTrees)
	var g errgroup.Group
	g.SetLimit(f.workers)
	for i := range trees {
		i := i
		g.Go(func() error {
			treeRng := rand.New(rand.NewSource(seeds[i]))

			// Sample without replacement
			indices := treeRng.Perm(nSamples)[:sampleSize]
			sample := make([][]float64, sampleSize)
			for j, idx := range indices {
				sample[j] = data[idx]
			}

			trees[i] = &iTree{root: f.buildNode(treeRng, sample, nFeatures, 0)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.trees = trees
	f.nFeatures = nFeatures
	f.avgPathLength = averagePathLength(float64(sampleSize))
	f.trained = true

	// Set threshold based on contamination
	if f.contamination > 0 {
		scores, err := f.predict(data)
		if err != nil {
			return err
		}
		f.threshold = percentile(scores, 100*(1-f.contamination))
	}

	return nil
}

func (f *IsolationForest) buildNode(rng *rand.Rand, data [][]float64, nFeatures, depth int) *node {
	n := len(data)

	// Terminal conditions
	if depth >= f.maxDepth || n <= 1 {
		return &node{size: n}
	}

	// Only features that still vary in this node can split it.
	candidates := make([]int, 0, nFeatures)
	for feature := 0; feature < nFeatures; feature++ {
		first := data[0][feature]
		for _, row := range data[1:] {
			if row[feature] != first {
				candidates = append(candidates, feature)
				break
			}
		}
	}

	// All samples identical
	if len(candidates) == 0 {
		return &node{size: n}
	}

	feature := candidates[rng.Intn(len(candidates))]

	// Find min/max for this feature
	minVal, maxVal := data[0][feature], data[0][feature]
	for _, row := range data[1:] {
		if row[feature] < minVal {
			minVal = row[feature]
		}
		if row[feature] > maxVal {
			maxVal = row[feature]
		}
	}

	// Random split value
	splitValue := minVal + rng.Float64()*(maxVal-minVal)

	// Partition data
	var leftData, rightData [][]float64
	for _, row := range data {
		if row[feature] < splitValue {
			leftData = append(leftData, row)
		} else {
			rightData = append(rightData, row)
		}
	}

	return &node{
		splitFeature: feature,
		splitValue:   splitValue,
		left:         f.buildNode(rng, leftData, nFeatures, depth+1),
		right:        f.buildNode(rng, rightData, nFeatures, depth+1),
	}
}

// Predict returns anomaly scores for the given samples.
func (f *IsolationForest) Predict(data [][]float64) ([]float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, ErrNotTrained
	}

	return f.predict(data)
}

func (f *IsolationForest) predict(data [][]float64) ([]float64, error) {
	scores := make([]float64, len(data))

	for i, sample := range data {
		score, err := f.predictOne(sample)
		if err != nil {
			return nil, err
		}
		scores[i] = score
	}

	return scores, nil
}

// PredictOne returns the anomaly score for a single sample.
func (f *IsolationForest) PredictOne(sample []float64) (float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return 0, ErrNotTrained
	}

	return f.predictOne(sample)
}

func (f *IsolationForest) predictOne(sample []float64) (float64, error) {
	if len(sample) != f.nFeatures {
		return 0, fmt.Errorf("%w: got %d features, want %d", ErrDimension, len(sample), f.nFeatures)
	}

	// A forest grown from a single sample cannot separate anything.
	if f.avgPathLength == 0 {
		return 0.5, nil
	}

	// Average path length across all trees
	var totalPath float64
	for _, tree := range f.trees {
		totalPath += pathLength(sample, tree.root, 0)
	}
	avgPath := totalPath / float64(len(f.trees))

	// Anomaly score: 2^(-avgPath / c(n))
	// Higher score = more anomalous
	score := math.Pow(2, -avgPath/f.avgPathLength)

	return score, nil
}

// DecisionFunction returns threshold - score for each sample.
// Lower values are more anomalous and negative values are outliers.
func (f *IsolationForest) DecisionFunction(data [][]float64) ([]float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, ErrNotTrained
	}

	scores, err := f.predict(data)
	if err != nil {
		return nil, err
	}
	for i, s := range scores {
		scores[i] = f.threshold - s
	}
	return scores, nil
}

// pathLength calculates the path length for a sample in a tree.
func pathLength(sample []float64, n *node, currentDepth int) float64 {
	if n.left == nil && n.right == nil {
		// Leaf node: add expected path length for remaining isolation
		return float64(currentDepth) + averagePathLength(float64(n.size))
	}

	if sample[n.splitFeature] < n.splitValue {
		return pathLength(sample, n.left, currentDepth+1)
	}
	return pathLength(sample, n.right, currentDepth+1)
}

// averagePathLength returns the average path length of unsuccessful search in BST.
func averagePathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	// c(n) = 2*H(n-1) - 2*(n-1)/n, where H is harmonic number
	// Approximation: H(n) ~ ln(n) + 0.5772156649 (Euler-Mascheroni constant)
	return 2*(math.Log(n-1)+0.5772156649) - 2*(n-1)/n
}

// Threshold returns the current anomaly threshold.
func (f *IsolationForest) Threshold() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.threshold
}

// percentile calculates the p-th percentile of the data with linear interpolation
// between closest ranks.
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	rank := float64(len(sorted)-1) * p / 100
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (rank-float64(lo))*(sorted[hi]-sorted[lo])
}
