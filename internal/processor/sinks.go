package processor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	xlog "github.com/melody-ding/go-vidsr/internal/log"
	"github.com/melody-ding/go-vidsr/internal/numpy"
	"github.com/melody-ding/go-vidsr/internal/schedule"
	"github.com/melody-ding/go-vidsr/internal/sharding"
	"github.com/melody-ding/go-vidsr/internal/types"
	"github.com/melody-ding/go-vidsr/internal/video"
)

type frameWriter interface {
	WriteFrame(f types.Frame) error
	Close() error
}

type frameSink interface {
	schedule.SegmentSink
	Close() error
	Outputs() []string
}

// writerFactory opens outputs of one format.
type writerFactory struct {
	format string
	create func(path string, size video.Dimensions, fps schedule.FrameRate) (frameWriter, error)
}

func newFactory(format, output string) (writerFactory, error) {
	if output == "" {
		return writerFactory{}, fmt.Errorf("%w: output path is required", schedule.ErrInvalidConfig)
	}
	switch format {
	case FormatVideo:
		codec, err := video.CodecForPath(output)
		if err != nil {
			return writerFactory{}, err
		}
		return writerFactory{
			format: codec.FourCC,
			create: func(path string, size video.Dimensions, fps schedule.FrameRate) (frameWriter, error) {
				w, err := video.Create(path, codec, fps, size)
				if err != nil {
					return nil, err
				}
				return w, nil
			},
		}, nil
	case FormatNPY:
		if !strings.EqualFold(filepath.Ext(output), ".npy") {
			return writerFactory{}, fmt.Errorf("%w: npy output must end in .npy, got %s", schedule.ErrInvalidConfig, output)
		}
		return writerFactory{
			format: FormatNPY,
			create: func(path string, size video.Dimensions, _ schedule.FrameRate) (frameWriter, error) {
				if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
					return nil, fmt.Errorf("create output dir: %w", err)
				}
				w, err := numpy.NewWriter(path, size.Width, size.Height)
				if err != nil {
					return nil, err
				}
				return w, nil
			},
		}, nil
	default:
		return writerFactory{}, fmt.Errorf("%w: unknown format %q", schedule.ErrInvalidConfig, format)
	}
}

// singleSink concatenates every sample into one output. The output is only
// created once the first sample begins.
type singleSink struct {
	factory writerFactory
	path    string
	size    video.Dimensions
	fps     schedule.FrameRate
	w       frameWriter
}

func newSingleSink(f writerFactory, path string, size video.Dimensions, fps schedule.FrameRate) *singleSink {
	return &singleSink{factory: f, path: path, size: size, fps: fps}
}

func (s *singleSink) BeginSegment(schedule.Segment) error {
	if s.w != nil {
		return nil
	}
	w, err := s.factory.create(s.path, s.size, s.fps)
	if err != nil {
		return err
	}
	s.w = w
	return nil
}

func (s *singleSink) EndSegment(schedule.Segment) error { return nil }

func (s *singleSink) WriteFrame(f types.Frame) error {
	return s.w.WriteFrame(f)
}

func (s *singleSink) Close() error {
	if s.w == nil {
		return nil
	}
	return s.w.Close()
}

func (s *singleSink) Outputs() []string {
	if s.w == nil {
		return nil
	}
	return []string{s.path}
}

// splitSink writes one output plus a JSON sidecar per sample.
type splitSink struct {
	factory writerFactory
	output  string
	source  string
	size    video.Dimensions
	fps     schedule.FrameRate
	log     zerolog.Logger

	w       frameWriter
	path    string
	first   int64
	written int64
	outputs []string
}

func newSplitSink(f writerFactory, opts Options, info video.Info, size video.Dimensions, log zerolog.Logger) *splitSink {
	return &splitSink{
		factory: f,
		output:  opts.Output,
		source:  opts.Input,
		size:    size,
		fps:     info.FPS,
		log:     log,
	}
}

func (s *splitSink) BeginSegment(seg schedule.Segment) error {
	s.path = SamplePath(s.output, seg.Index)
	w, err := s.factory.create(s.path, s.size, s.fps)
	if err != nil {
		return err
	}
	s.w = w
	s.written = 0
	return nil
}

func (s *splitSink) WriteFrame(f types.Frame) error {
	if err := s.w.WriteFrame(f); err != nil {
		return err
	}
	if s.written == 0 {
		s.first = f.Index
	}
	s.written++
	return nil
}

func (s *splitSink) EndSegment(seg schedule.Segment) error {
	if s.w == nil {
		return nil
	}
	err := s.w.Close()
	s.w = nil
	if err != nil {
		return err
	}
	s.outputs = append(s.outputs, s.path)

	meta := s.metadata(seg)
	if err := writeSidecar(sharding.SidecarPath(s.path), meta); err != nil {
		return err
	}
	s.log.Debug().
		Int(xlog.FieldSample, seg.Index).
		Int64(xlog.FieldStartFrame, meta.StartFrame).
		Int64(xlog.FieldEndFrame, meta.EndFrame).
		Str(xlog.FieldOutput, s.path).
		Msg("sample written")
	return nil
}

func (s *splitSink) metadata(seg schedule.Segment) types.SampleMetadata {
	base := filepath.Base(s.path)
	return types.SampleMetadata{
		Key:          strings.TrimSuffix(base, filepath.Ext(base)),
		Source:       s.source,
		SampleIndex:  seg.Index,
		StartFrame:   s.first,
		EndFrame:     s.first + s.written - 1,
		FrameCount:   int(s.written),
		FPS:          s.fps.String(),
		StartSeconds: s.fps.Seconds(s.first),
		Size:         []int{s.size.Height, s.size.Width, 3},
		Format:       s.factory.format,
		IsTrimmed:    s.written < seg.Frames(),
	}
}

func (s *splitSink) Close() error {
	if s.w == nil {
		return nil
	}
	err := s.w.Close()
	s.w = nil
	return err
}

func (s *splitSink) Outputs() []string {
	return s.outputs
}

func writeSidecar(path string, meta types.SampleMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := renameio.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}
