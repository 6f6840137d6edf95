package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameCount(t *testing.T) {
	tests := []struct {
		target float64
		fps    int
		want   int
	}{
		{0, 30, 1},
		{-1, 30, 1},
		{2.0, 30, 61},
		{0.1, 30, 4},
		{2.01, 30, 62},
		{3.3, 30, 100},
		{1, 24, 25},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FrameCount(tt.target, tt.fps), "target=%v fps=%d", tt.target, tt.fps)
	}
}

func TestFrameCountMonotonic(t *testing.T) {
	prev := FrameCount(0, 30)
	for ms := 1; ms <= 20000; ms++ {
		n := FrameCount(float64(ms)/1000, 30)
		require.GreaterOrEqual(t, n, prev, "ms=%d", ms)
		require.GreaterOrEqual(t, n, 1)
		prev = n
	}
}

func TestBuildTimeline(t *testing.T) {
	tl := BuildTimeline([]float64{2.0, 3.0}, 1.0, 0.3)
	require.Len(t, tl.Entries, 2)

	first, last := tl.Entries[0], tl.Entries[1]

	assert.Equal(t, 0.0, first.Start)
	assert.Equal(t, 1.0, first.Gap)
	assert.Equal(t, 0.0, first.EndBuffer)
	assert.InDelta(t, 3.0, first.Effective(), 1e-9)
	assert.InDelta(t, 2.0, first.End(), 1e-9)

	assert.InDelta(t, 3.0, last.Start, 1e-9)
	assert.Equal(t, 0.0, last.Gap)
	assert.Equal(t, 0.3, last.EndBuffer)
	assert.InDelta(t, 3.3, last.Effective(), 1e-9)
	assert.InDelta(t, 6.0, last.End(), 1e-9)

	assert.InDelta(t, 6.3, tl.Total(), 1e-9)
	assert.InDelta(t, 6.0, tl.AudioDuration(), 1e-9)
}

func TestBuildTimelineSingleScene(t *testing.T) {
	tl := BuildTimeline([]float64{4.2}, 2.0, DefaultEndBuffer)
	require.Len(t, tl.Entries, 1)
	assert.Equal(t, 0.0, tl.Entries[0].Gap)
	assert.InDelta(t, 4.5, tl.Total(), 1e-9)
}

func TestBuildTimelineClampsNegatives(t *testing.T) {
	tl := BuildTimeline([]float64{1, 1}, -2, -1)
	assert.Equal(t, 0.0, tl.Gap)
	assert.Equal(t, 0.0, tl.EndBuffer)
	assert.InDelta(t, 2.0, tl.Total(), 1e-9)
}

func TestTimelineDrift(t *testing.T) {
	tl := BuildTimeline([]float64{2.0, 3.0, 1.7}, 0.5, DefaultEndBuffer)

	drift, ok := tl.Drift(30)
	assert.True(t, ok)
	assert.Greater(t, drift, 0.0)
	assert.LessOrEqual(t, drift, 6.0/30+1e-9)
}

func TestTimelineVideoDuration(t *testing.T) {
	tl := BuildTimeline([]float64{2.0}, 0, 0)
	assert.InDelta(t, 61.0/30, tl.VideoDuration(30), 1e-9)
}
