package schedule

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSegment(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		fps   FrameRate
		index int
		want  Segment
	}{
		{
			name:  "first sample at 30fps",
			cfg:   Config{SampleLength: 10, SampleGap: 300, SampleCount: 1},
			fps:   FrameRate{Num: 30, Den: 1},
			index: 0,
			want:  Segment{Index: 0, Start: 0, End: 300},
		},
		{
			name:  "second sample at 30fps",
			cfg:   Config{SampleLength: 10, SampleGap: 300, SampleCount: 1},
			fps:   FrameRate{Num: 30, Den: 1},
			index: 1,
			want:  Segment{Index: 1, Start: 9300, End: 9600},
		},
		{
			name:  "begin skip at 25fps",
			cfg:   Config{BeginSkip: 5, SampleLength: 2},
			fps:   FrameRate{Num: 25, Den: 1},
			index: 0,
			want:  Segment{Index: 0, Start: 125, End: 175},
		},
		{
			name:  "ntsc rate rounds down",
			cfg:   Config{BeginSkip: 1, SampleLength: 1, SampleGap: 1},
			fps:   FrameRate{Num: 30000, Den: 1001},
			index: 1,
			// start = floor(3*30000/1001) = 89, length = floor(30000/1001) = 29
			want: Segment{Index: 1, Start: 89, End: 118},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeSegment(tt.cfg, tt.index, tt.fps)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeSegmentRejectsInvalidInput(t *testing.T) {
	valid := Config{SampleLength: 10, SampleGap: 300}
	tests := []struct {
		name  string
		cfg   Config
		fps   FrameRate
		index int
	}{
		{name: "zero fps", cfg: valid, fps: FrameRate{}},
		{name: "negative fps", cfg: valid, fps: FrameRate{Num: -25, Den: 1}},
		{name: "zero sample length", cfg: Config{SampleGap: 1}, fps: FrameRate{Num: 25, Den: 1}},
		{name: "negative sample length", cfg: Config{SampleLength: -1}, fps: FrameRate{Num: 25, Den: 1}},
		{name: "negative begin skip", cfg: Config{SampleLength: 1, BeginSkip: -1}, fps: FrameRate{Num: 25, Den: 1}},
		{name: "negative gap", cfg: Config{SampleLength: 1, SampleGap: -3}, fps: FrameRate{Num: 25, Den: 1}},
		{name: "negative index", cfg: valid, fps: FrameRate{Num: 25, Den: 1}, index: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeSegment(tt.cfg, tt.index, tt.fps)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestComputeSegmentProperties(t *testing.T) {
	rates := []FrameRate{
		{Num: 24, Den: 1},
		{Num: 25, Den: 1},
		{Num: 30000, Den: 1001},
		{Num: 60000, Den: 1001},
		{Num: 1, Den: 2},
	}
	configs := []Config{
		{SampleLength: 1},
		{SampleLength: 10, SampleGap: 300},
		{BeginSkip: 7, SampleLength: 3, SampleGap: 0},
		{BeginSkip: 60, SampleLength: 2, SampleGap: 13},
	}

	for _, fps := range rates {
		for _, cfg := range configs {
			first, err := ComputeSegment(cfg, 0, fps)
			require.NoError(t, err)
			length := first.End - first.Start

			prev := first
			for i := 1; i < 500; i++ {
				seg, err := ComputeSegment(cfg, i, fps)
				require.NoError(t, err)
				if fps.Frames(cfg.SampleLength+cfg.SampleGap) > 0 {
					assert.Greater(t, seg.Start, prev.Start, "fps=%s cfg=%+v i=%d", fps, cfg, i)
				}
				assert.Equal(t, length, seg.End-seg.Start, "fps=%s cfg=%+v i=%d", fps, cfg, i)
				assert.LessOrEqual(t, seg.Start, seg.End)
				prev = seg
			}
		}
	}
}

func TestPlan(t *testing.T) {
	cfg := Config{SampleLength: 2, SampleGap: 1, SampleCount: 10}
	fps := FrameRate{Num: 10, Den: 1}

	got, err := Plan(cfg, fps, 75)
	require.NoError(t, err)

	want := []Segment{
		{Index: 0, Start: 0, End: 20},
		{Index: 1, Start: 30, End: 50},
		{Index: 2, Start: 60, End: 74},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Plan() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, int64(21+21+15), PlannedFrames(got))
}

func TestPlanRespectsSampleCount(t *testing.T) {
	cfg := Config{SampleLength: 1, SampleCount: 0}
	got, err := Plan(cfg, FrameRate{Num: 25, Den: 1}, 10_000)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestPlanUnknownLength(t *testing.T) {
	_, err := Plan(DefaultConfig(), FrameRate{Num: 25, Den: 1}, 0)
	assert.ErrorIs(t, err, ErrUnknownLength)
}
