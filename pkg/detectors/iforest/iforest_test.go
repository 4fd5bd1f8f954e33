package iforest

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/fraudscope/pkg/detectors"
)

func TestNewIsolationForest(t *testing.T) {
	tests := []struct {
		name       string
		opts       []Option
		wantNTrees int
	}{
		{
			name:       "default configuration",
			opts:       nil,
			wantNTrees: 100,
		},
		{
			name:       "custom trees",
			opts:       []Option{WithTrees(50)},
			wantNTrees: 50,
		},
		{
			name:       "multiple options",
			opts:       []Option{WithTrees(200), WithContamination(0.05), WithSeed(123)},
			wantNTrees: 200,
		},
		{
			name:       "non-positive trees",
			opts:       []Option{WithTrees(0)},
			wantNTrees: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.opts...)
			assert.Equal(t, tt.wantNTrees, f.nTrees)
		})
	}
}

func TestFromConfig(t *testing.T) {
	cfg := detectors.DefaultConfig()
	cfg.Trees = 12
	cfg.MaxSamples = 64
	cfg.Contamination = 0.02
	cfg.RandomSeed = 7

	f := FromConfig(cfg)
	assert.Equal(t, 12, f.nTrees)
	assert.Equal(t, 64, f.sampleSize)
	assert.Equal(t, 0.02, f.contamination)
	assert.Equal(t, int64(7), f.seed)
}

func TestFit(t *testing.T) {
	tests := []struct {
		name    string
		data    [][]float64
		wantErr error
	}{
		{
			name:    "empty data",
			data:    [][]float64{},
			wantErr: ErrEmptyData,
		},
		{
			name:    "ragged rows",
			data:    [][]float64{{1, 2}, {1}},
			wantErr: ErrDimension,
		},
		{
			name: "single sample",
			data: [][]float64{{1.0, 2.0, 3.0}},
		},
		{
			name: "normal data",
			data: generateTestData(100, 5),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(WithTrees(10), WithSeed(42))
			err := f.Fit(tt.data)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
				assert.True(t, f.trained)
				assert.Len(t, f.trees, f.nTrees)
			}
		})
	}
}

func TestFitDeterministic(t *testing.T) {
	data := generateTestData(300, 4)

	a := New(WithTrees(40), WithSeed(9), WithWorkers(1))
	require.NoError(t, a.Fit(data))
	b := New(WithTrees(40), WithSeed(9), WithWorkers(8))
	require.NoError(t, b.Fit(data))

	sa, err := a.Predict(data)
	require.NoError(t, err)
	sb, err := b.Predict(data)
	require.NoError(t, err)

	assert.Equal(t, sa, sb, "worker count must not change the forest")
	assert.Equal(t, a.Threshold(), b.Threshold())

	// Refitting the same instance starts from the same seed.
	require.NoError(t, a.Fit(data))
	again, err := a.Predict(data)
	require.NoError(t, err)
	assert.Equal(t, sa, again)
}

func TestPredict(t *testing.T) {
	// Train on normal data
	trainData := generateTestData(500, 5)
	f := New(WithTrees(50), WithSampleSize(100), WithSeed(42))
	require.NoError(t, f.Fit(trainData))

	t.Run("predict on normal data", func(t *testing.T) {
		testData := generateTestData(100, 5)
		scores, err := f.Predict(testData)

		require.NoError(t, err)
		assert.Len(t, scores, len(testData))

		// All scores should be in [0, 1]
		for _, score := range scores {
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		}
	})

	t.Run("predict on anomalies", func(t *testing.T) {
		// Anomalous data: very different from training
		anomalies := [][]float64{
			{1000, 1000, 1000, 1000, 1000},
			{-500, -500, -500, -500, -500},
		}
		scores, err := f.Predict(anomalies)

		require.NoError(t, err)
		// Anomalies should have higher scores
		for _, score := range scores {
			assert.Greater(t, score, 0.4, "anomalies should have high scores")
		}
	})

	t.Run("wrong dimension", func(t *testing.T) {
		_, err := f.Predict([][]float64{{1, 2}})
		assert.ErrorIs(t, err, ErrDimension)
	})

	t.Run("predict before fit", func(t *testing.T) {
		untrained := New()
		_, err := untrained.Predict(trainData)
		assert.ErrorIs(t, err, ErrNotTrained)
	})
}

func TestPredictOne(t *testing.T) {
	trainData := generateTestData(200, 3)
	f := New(WithTrees(20), WithSeed(42))
	require.NoError(t, f.Fit(trainData))

	score, err := f.PredictOne([]float64{0.5, 0.5, 0.5})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestDecisionFunction(t *testing.T) {
	data := generateTestData(200, 3)
	data = append(data, []float64{40, -40, 40})

	f := New(WithTrees(100), WithContamination(0.05), WithSeed(42))
	require.NoError(t, f.Fit(data))

	scores, err := f.Predict(data)
	require.NoError(t, err)
	decisions, err := f.DecisionFunction(data)
	require.NoError(t, err)

	outliers := 0
	for i := range data {
		assert.InDelta(t, f.Threshold()-scores[i], decisions[i], 1e-12)
		if decisions[i] < 0 {
			outliers++
		}
	}

	// The planted point is the most anomalous and lands below zero.
	last := len(data) - 1
	assert.Less(t, decisions[last], 0.0)
	for i := 0; i < last; i++ {
		assert.Less(t, decisions[last], decisions[i])
	}

	// Roughly the contamination share is flagged.
	assert.InDelta(t, 0.05*float64(len(data)), float64(outliers), 3)

	_, err = New().DecisionFunction(data)
	assert.ErrorIs(t, err, ErrNotTrained)
}

func TestSingleSampleScore(t *testing.T) {
	f := New(WithTrees(5))
	require.NoError(t, f.Fit([][]float64{{3, 4}}))

	decisions, err := f.DecisionFunction([][]float64{{3, 4}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, decisions)
}

func TestConstantFeaturesAreSkipped(t *testing.T) {
	// Only the second column varies; the split must land on it.
	data := [][]float64{{1, 0}, {1, 1}, {1, 2}, {1, 3}, {1, 100}}
	f := New(WithTrees(1), WithSampleSize(5), WithSeed(3))
	require.NoError(t, f.Fit(data))

	root := f.trees[0].root
	require.NotNil(t, root.left)
	assert.Equal(t, 1, root.splitFeature)
}

func TestPercentile(t *testing.T) {
	data := []float64{5, 1, 4, 2, 3}

	assert.Equal(t, 1.0, percentile(data, 0))
	assert.Equal(t, 3.0, percentile(data, 50))
	assert.Equal(t, 5.0, percentile(data, 100))
	assert.InDelta(t, 4.6, percentile(data, 90), 1e-12)
	assert.Equal(t, 0.0, percentile(nil, 50))
	assert.Equal(t, []float64{5, 1, 4, 2, 3}, data, "input must not be reordered")
}

func TestAveragePathLength(t *testing.T) {
	assert.Equal(t, 0.0, averagePathLength(1))
	assert.Equal(t, 1.0, averagePathLength(2))
	assert.InDelta(t, 10.2447, averagePathLength(256), 1e-3)
}

func BenchmarkFit(b *testing.B) {
	data := generateTestData(10000, 10)
	f := New(WithTrees(100), WithSampleSize(256))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Fit(data)
	}
}

func BenchmarkPredict(b *testing.B) {
	trainData := generateTestData(5000, 10)
	testData := generateTestData(1000, 10)

	f := New(WithTrees(100), WithSampleSize(256))
	f.Fit(trainData)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Predict(testData)
	}
}

func BenchmarkPredictOne(b *testing.B) {
	trainData := generateTestData(5000, 10)
	sample := make([]float64, 10)
	for i := range sample {
		sample[i] = rand.Float64()
	}

	f := New(WithTrees(100), WithSampleSize(256))
	f.Fit(trainData)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.PredictOne(sample)
	}
}

func generateTestData(n, features int) [][]float64 {
	data := make([][]float64, n)
	for i := 0; i < n; i++ {
		data[i] = make([]float64, features)
		for j := 0; j < features; j++ {
			data[i][j] = rand.NormFloat64()
		}
	}
	return data
}
