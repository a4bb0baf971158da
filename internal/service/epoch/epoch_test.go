package epoch

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDrained = errors.New("drained")

type sliceSource struct {
	samples []Sample
	pos     int
}

func (s *sliceSource) Next(time.Duration) (Sample, error) {
	if s.pos >= len(s.samples) {
		return nil, errDrained
	}
	v := s.samples[s.pos]
	s.pos++
	return v, nil
}

func stream(n int) *sliceSource {
	out := make([]Sample, n)
	for i := range out {
		out[i] = Sample{float64(i), float64(-i)}
	}
	return &sliceSource{samples: out}
}

func TestCollectOverlapping(t *testing.T) {
	const size, stride, k = 10, 3, 5
	src := stream(SamplesNeeded(size, stride, k))
	epochs, err := NewWindower(src, size, stride, time.Millisecond).Collect(k)
	require.NoError(t, err)
	require.Len(t, epochs, k)

	for j, e := range epochs {
		require.Len(t, e, size)
		assert.Equal(t, float64(j*stride), e[0][0], "epoch %d start", j)
		if j > 0 {
			assert.Equal(t, epochs[j-1][stride:], e[:size-stride])
		}
	}
	assert.Equal(t, len(src.samples), src.pos, "all samples consumed")
}

func TestCollectStrideLargerThanSize(t *testing.T) {
	const size, stride, k = 3, 5, 3
	src := stream(SamplesNeeded(size, stride, k))
	epochs, err := NewWindower(src, size, stride, time.Millisecond).Collect(k)
	require.NoError(t, err)
	require.Len(t, epochs, k)
	assert.Equal(t, float64(10), epochs[2][0][0])
	assert.Equal(t, float64(12), epochs[2][2][0])
}

func TestCollectStarvation(t *testing.T) {
	const size, stride, k = 10, 3, 5
	src := stream(SamplesNeeded(size, stride, k) - 1)
	epochs, err := NewWindower(src, size, stride, time.Millisecond).Collect(k)
	require.ErrorIs(t, err, ErrStarvation)
	require.ErrorIs(t, err, errDrained)
	assert.Len(t, epochs, k-1)
}

func TestEpochsAreIndependentCopies(t *testing.T) {
	src := stream(SamplesNeeded(4, 2, 3))
	epochs, err := NewWindower(src, 4, 2, time.Millisecond).Collect(3)
	require.NoError(t, err)
	first := epochs[0][2][0]
	epochs[1][0] = Sample{42}
	assert.Equal(t, first, epochs[0][2][0])
}

func TestWindowsStopsEarly(t *testing.T) {
	src := stream(100)
	n := 0
	for _, err := range NewWindower(src, 5, 5, time.Millisecond).Windows(10) {
		require.NoError(t, err)
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 10, src.pos)
}

func TestSamplesNeeded(t *testing.T) {
	assert.Equal(t, 200+15*44, SamplesNeeded(200, 44, 16))
	assert.Equal(t, 0, SamplesNeeded(200, 44, 0))
}
