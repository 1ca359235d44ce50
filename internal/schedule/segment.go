package schedule

import (
	"errors"
	"fmt"
)

// ErrUnknownLength is returned by Plan when the stream length is not known.
var ErrUnknownLength = errors.New("stream length unknown")

// Segment is the inclusive frame range kept for one sample.
type Segment struct {
	Index int
	Start int64
	End   int64
}

// Contains reports whether frame lies in [Start, End].
func (s Segment) Contains(frame int64) bool {
	return frame >= s.Start && frame <= s.End
}

// Frames is the number of frames covered, both ends included.
func (s Segment) Frames() int64 {
	return s.End - s.Start + 1
}

func (s Segment) String() string {
	return fmt.Sprintf("#%d[%d,%d]", s.Index, s.Start, s.End)
}

// ComputeSegment returns the frame range of sample index.
//
//	Start = floor((BeginSkip + index*(SampleLength+SampleGap)) * fps)
//	End   = Start + floor(SampleLength * fps)
//
// Both terms are computed in integer arithmetic on the rational rate, so the
// segment length is the same for every index and boundaries never drift.
func ComputeSegment(cfg Config, index int, fps FrameRate) (Segment, error) {
	if !fps.Valid() {
		return Segment{}, fmt.Errorf("%w: frame rate must be positive, got %s", ErrInvalidConfig, fps)
	}
	if err := cfg.Validate(); err != nil {
		return Segment{}, err
	}
	if index < 0 {
		return Segment{}, fmt.Errorf("%w: sample index must not be negative, got %d", ErrInvalidConfig, index)
	}

	offset := cfg.BeginSkip + index*(cfg.SampleLength+cfg.SampleGap)
	start := fps.Frames(offset)
	return Segment{
		Index: index,
		Start: start,
		End:   start + fps.Frames(cfg.SampleLength),
	}, nil
}

// Plan lists the segments that begin inside a stream of totalFrames frames.
// The last segment is clipped to the stream end.
func Plan(cfg Config, fps FrameRate, totalFrames int64) ([]Segment, error) {
	if totalFrames <= 0 {
		return nil, ErrUnknownLength
	}

	var segments []Segment
	for i := 0; i <= cfg.SampleCount; i++ {
		seg, err := ComputeSegment(cfg, i, fps)
		if err != nil {
			return nil, err
		}
		if seg.Start >= totalFrames {
			break
		}
		if seg.End >= totalFrames {
			seg.End = totalFrames - 1
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// PlannedFrames sums the frames covered by segments.
func PlannedFrames(segments []Segment) int64 {
	var n int64
	for _, s := range segments {
		n += s.Frames()
	}
	return n
}
