package schedule

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/melody-ding/go-vidsr/internal/types"
)

// Stream is a forward-only source of frames. ReadFrame returns io.EOF once
// the stream is exhausted.
type Stream interface {
	FrameRate() FrameRate
	ReadFrame() (types.Frame, error)
}

// Sink receives every frame that falls inside a segment.
type Sink interface {
	WriteFrame(frame types.Frame) error
}

// SegmentSink is a Sink that also wants to know where samples begin and end.
// BeginSegment is called before the first frame of a segment and EndSegment
// after its last one, including when the run stops mid-segment.
type SegmentSink interface {
	Sink
	BeginSegment(seg Segment) error
	EndSegment(seg Segment) error
}

// Preview is shown every windowed frame. Returning true stops the run.
type Preview interface {
	Show(frame types.Frame) (stop bool)
}

// StopReason tells why a run ended.
type StopReason string

const (
	StopExhausted   StopReason = "exhausted"
	StopSampleCount StopReason = "sample_count"
	StopPreview     StopReason = "preview"
	StopCancelled   StopReason = "cancelled"
	StopError       StopReason = "error"
)

// Stats summarises a run.
type Stats struct {
	FramesRead    int64
	FramesWritten int64
	// BoundaryDrops counts frames that triggered an advance, were dropped,
	// and would have belonged to the next segment.
	BoundaryDrops int64
	Segments      int
	Reason        StopReason
}

// Option configures Run.
type Option func(*runner)

// WithPreview attaches a preview that may stop the run.
func WithPreview(p Preview) Option {
	return func(r *runner) { r.preview = p }
}

// WithLogger logs segment transitions at debug level.
func WithLogger(l zerolog.Logger) Option {
	return func(r *runner) { r.log = l }
}

type runner struct {
	cfg     Config
	fps     FrameRate
	sink    Sink
	segs    SegmentSink
	preview Preview
	log     zerolog.Logger

	seg   Segment
	open  bool
	stats Stats
}

// Run reads stream to the end or until sample index exceeds cfg.SampleCount,
// forwarding frames inside the active segment to sink.
//
// The config and the stream's frame rate are checked before the first read.
// Stream exhaustion is a normal stop; a Preview stop is a clean stop.
func Run(ctx context.Context, stream Stream, cfg Config, sink Sink, opts ...Option) (Stats, error) {
	r := &runner{
		cfg:  cfg,
		fps:  stream.FrameRate(),
		sink: sink,
		log:  zerolog.Nop(),
	}
	r.segs, _ = sink.(SegmentSink)
	for _, opt := range opts {
		opt(r)
	}

	seg, err := ComputeSegment(cfg, 0, r.fps)
	if err != nil {
		return Stats{}, err
	}
	r.seg = seg

	err = r.loop(ctx, stream)
	if cerr := r.closeSegment(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil && r.stats.Reason == "" {
		r.stats.Reason = StopError
	}
	return r.stats, err
}

func (r *runner) loop(ctx context.Context, stream Stream) error {
	var cursor int64
	for {
		if r.seg.Index > r.cfg.SampleCount {
			r.stats.Reason = StopSampleCount
			return nil
		}
		if err := ctx.Err(); err != nil {
			r.stats.Reason = StopCancelled
			return err
		}

		frame, err := stream.ReadFrame()
		if errors.Is(err, io.EOF) {
			r.stats.Reason = StopExhausted
			return nil
		}
		if err != nil {
			return fmt.Errorf("read frame %d: %w", cursor, err)
		}
		r.stats.FramesRead++

		stop, err := r.step(cursor, frame)
		if err != nil {
			return err
		}
		if stop {
			r.stats.Reason = StopPreview
			return nil
		}
		cursor++
	}
}

// step applies one frame to the state machine.
func (r *runner) step(cursor int64, frame types.Frame) (stop bool, err error) {
	for {
		switch {
		case r.seg.Contains(cursor):
			// The frame a stop is requested on is shown but not written.
			if r.preview != nil && r.preview.Show(frame) {
				return true, nil
			}
			if err := r.openSegment(); err != nil {
				return false, err
			}
			if err := r.sink.WriteFrame(frame); err != nil {
				return false, fmt.Errorf("write frame %d: %w", cursor, err)
			}
			r.stats.FramesWritten++
			return false, nil

		case cursor > r.seg.End:
			if err := r.advance(); err != nil {
				return false, err
			}
			if r.seg.Index > r.cfg.SampleCount {
				return false, nil
			}
			if !r.cfg.RetestBoundary {
				if r.seg.Contains(cursor) {
					r.stats.BoundaryDrops++
				}
				return false, nil
			}

		default:
			return false, nil
		}
	}
}

func (r *runner) advance() error {
	if err := r.closeSegment(); err != nil {
		return err
	}
	next, err := ComputeSegment(r.cfg, r.seg.Index+1, r.fps)
	if err != nil {
		return err
	}
	r.log.Debug().
		Stringer("from", r.seg).
		Stringer("to", next).
		Msg("segment advanced")
	r.seg = next
	return nil
}

func (r *runner) openSegment() error {
	if r.open {
		return nil
	}
	r.open = true
	r.stats.Segments++
	if r.segs != nil {
		if err := r.segs.BeginSegment(r.seg); err != nil {
			return fmt.Errorf("begin segment %s: %w", r.seg, err)
		}
	}
	return nil
}

func (r *runner) closeSegment() error {
	if !r.open {
		return nil
	}
	r.open = false
	if r.segs != nil {
		if err := r.segs.EndSegment(r.seg); err != nil {
			return fmt.Errorf("end segment %s: %w", r.seg, err)
		}
	}
	return nil
}
