package processor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	xlog "github.com/melody-ding/go-vidsr/internal/log"
	"github.com/melody-ding/go-vidsr/internal/metrics"
	"github.com/melody-ding/go-vidsr/internal/schedule"
	"github.com/melody-ding/go-vidsr/internal/video"
)

const tool = "vidsample"

// Output formats.
const (
	FormatVideo = "video"
	FormatNPY   = "npy"
)

// Options describes one sampling job.
type Options struct {
	Input    string
	Output   string
	Sampling schedule.Config
	// FPS overrides the probed frame rate, e.g. "30000/1001" or "25".
	FPS    string
	Format string
	// Split writes every sample to its own file with a JSON sidecar.
	Split  bool
	Resize string
	// Preview is consulted for every kept frame and may stop the run.
	Preview  schedule.Preview
	Progress bool
}

// Result reports what a job produced.
type Result struct {
	Input   string
	Info    video.Info
	Outputs []string
	Stats   schedule.Stats
	Elapsed time.Duration
}

// SampleVideo extracts the periodic samples of opts.Input into opts.Output.
//
// Configuration and the output container are checked before the decoder is
// started. A stop by the preview or by the sample count is a clean result.
func SampleVideo(ctx context.Context, opts Options, log zerolog.Logger) (*Result, error) {
	start := time.Now()
	if err := opts.Sampling.Validate(); err != nil {
		return nil, err
	}
	format := opts.Format
	if format == "" {
		format = FormatVideo
	}

	var readerOpts []video.ReaderOption
	if opts.FPS != "" {
		fps, err := schedule.ParseFrameRate(opts.FPS)
		if err != nil {
			return nil, fmt.Errorf("fps override: %w", err)
		}
		readerOpts = append(readerOpts, video.WithFrameRate(fps))
	}
	if opts.Resize != "" {
		d, err := video.ParseDimensions(opts.Resize)
		if err != nil {
			return nil, fmt.Errorf("%w: resize: %w", schedule.ErrInvalidConfig, err)
		}
		readerOpts = append(readerOpts, video.WithTransforms(video.ScaleTransform{Width: d.Width, Height: d.Height}))
	}

	factory, err := newFactory(format, opts.Output)
	if err != nil {
		return nil, err
	}

	log = log.With().Str(xlog.FieldInput, opts.Input).Logger()
	reader, err := video.Open(ctx, opts.Input, append(readerOpts, video.WithReaderLogger(log))...)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	info := reader.Info()
	log.Info().
		Stringer(xlog.FieldFPS, info.FPS).
		Stringer(xlog.FieldResolution, reader.Size()).
		Int64(xlog.FieldFrames, info.Frames).
		Msg("source opened")

	var sink frameSink
	if opts.Split {
		sink = newSplitSink(factory, opts, info, reader.Size(), log)
	} else {
		sink = newSingleSink(factory, opts.Output, reader.Size(), info.FPS)
	}

	runOpts := []schedule.Option{schedule.WithLogger(log)}
	preview := opts.Preview
	if opts.Progress {
		bar := newProgressPreview(opts.Sampling, info, preview)
		defer bar.Finish()
		preview = bar
	}
	if preview != nil {
		runOpts = append(runOpts, schedule.WithPreview(preview))
	}

	stats, runErr := schedule.Run(ctx, reader, opts.Sampling, sink, runOpts...)
	closeErr := sink.Close()

	metrics.FramesRead.WithLabelValues(tool).Add(float64(stats.FramesRead))
	metrics.FramesWritten.WithLabelValues(tool).Add(float64(stats.FramesWritten))
	metrics.BoundaryDrops.Add(float64(stats.BoundaryDrops))
	metrics.SamplesWindowed.Add(float64(stats.Segments))

	res := &Result{
		Input:   opts.Input,
		Info:    info,
		Outputs: sink.Outputs(),
		Stats:   stats,
		Elapsed: time.Since(start),
	}

	if runErr != nil {
		// a killed decoder surfaces as a decode error; report the cancellation instead
		if cerr := ctx.Err(); cerr != nil && !errors.Is(runErr, cerr) {
			runErr = fmt.Errorf("%w: %w", cerr, runErr)
		}
		return res, runErr
	}
	if closeErr != nil {
		return res, closeErr
	}

	log.Info().
		Str(xlog.FieldReason, string(stats.Reason)).
		Int64(xlog.FieldFrames, stats.FramesWritten).
		Int("samples", stats.Segments).
		Int64("boundary_drops", stats.BoundaryDrops).
		Dur("elapsed", res.Elapsed).
		Msg("sampling finished")
	return res, nil
}

// PlanVideo probes input and lists the segments a run would keep.
func PlanVideo(ctx context.Context, input string, cfg schedule.Config, fpsOverride string) (video.Info, []schedule.Segment, error) {
	info, err := video.Probe(ctx, input)
	if err != nil {
		return video.Info{}, nil, err
	}
	if fpsOverride != "" {
		fps, err := schedule.ParseFrameRate(fpsOverride)
		if err != nil {
			return info, nil, fmt.Errorf("fps override: %w", err)
		}
		info.FPS = fps
	}
	if !info.FPS.Valid() {
		return info, nil, fmt.Errorf("%w: %s has no usable frame rate", video.ErrUnreadableSource, input)
	}
	segments, err := schedule.Plan(cfg, info.FPS, info.Frames)
	return info, segments, err
}

// SamplePath names sample index of a split run: out/clip.avi -> out/clip_003.avi.
func SamplePath(output string, index int) string {
	ext := filepath.Ext(output)
	return fmt.Sprintf("%s_%03d%s", strings.TrimSuffix(output, ext), index, ext)
}
