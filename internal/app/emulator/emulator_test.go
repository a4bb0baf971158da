package emulator

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func params() Params {
	return Params{
		Strategy:  "single",
		GridSize:  4,
		TP:        0.9,
		TN:        0.9,
		MinReps:   1,
		MaxReps:   6,
		Trials:    300,
		Threshold: 0.9,
		Seed:      42,
		Step:      176 * time.Millisecond,
		Baseline:  200 * time.Millisecond,
		Workers:   2,
	}
}

func TestPerfectClassifier(t *testing.T) {
	for _, strategy := range []string{"single", "rowcol"} {
		p := params()
		p.Strategy = strategy
		p.TP, p.TN = 1, 1
		res, err := Run(context.Background(), p)
		require.NoError(t, err)
		for _, pt := range res.Points {
			assert.InDelta(t, 1.0, pt.Accuracy, 1e-9, "%s reps=%d", strategy, pt.Repetitions)
		}
		assert.Equal(t, 1, res.MinReps)
	}
}

func TestAccuracyGrowsWithRepetitions(t *testing.T) {
	res, err := Run(context.Background(), params())
	require.NoError(t, err)
	require.Len(t, res.Points, 6)
	assert.Less(t, res.Points[0].Accuracy, res.Points[5].Accuracy)

	best, ok := res.Best()
	require.True(t, ok)
	assert.GreaterOrEqual(t, best.Accuracy, 0.9)
	// 16 шагов на повторение
	assert.Equal(t, 200*time.Millisecond+time.Duration(16*best.Repetitions)*176*time.Millisecond, best.TrialTime)
}

func TestDeterministicWithSeed(t *testing.T) {
	a, err := Run(context.Background(), params())
	require.NoError(t, err)
	b, err := Run(context.Background(), params())
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(a, b))
}

func TestThresholdNotReached(t *testing.T) {
	p := params()
	p.TP, p.TN = 0.5, 0.5
	p.MaxReps = 2
	res, err := Run(context.Background(), p)
	require.NoError(t, err)
	assert.Zero(t, res.MinReps)
	_, ok := res.Best()
	assert.False(t, ok)
}

func TestInvalidParams(t *testing.T) {
	p := params()
	p.Strategy = "diagonal"
	p.MinReps = 0
	_, err := Run(context.Background(), p)
	require.Error(t, err)
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, params())
	require.ErrorIs(t, err, context.Canceled)
}
