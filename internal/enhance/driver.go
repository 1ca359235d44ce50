package enhance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	xlog "github.com/melody-ding/go-vidsr/internal/log"
	"github.com/melody-ding/go-vidsr/internal/metrics"
	"github.com/melody-ding/go-vidsr/internal/types"
	"github.com/melody-ding/go-vidsr/internal/video"
)

const tool = "videnhance"

// ExtAuto keeps the input's container.
const ExtAuto = "auto"

// Containers the enhancer writes.
var outputExts = map[string]bool{"avi": true, "mp4": true}

// Options configures a Driver.
type Options struct {
	OutputDir   string
	Suffix      string
	Ext         string
	OutScale    float64
	NetScale    int
	FaceEnhance bool
	// MaxRPS caps enhance requests per second; 0 disables the cap.
	MaxRPS float64
}

// Report summarises one enhanced video.
type Report struct {
	Input    string
	Output   string
	Frames   int64
	Enhanced int64
	Failures map[Cause]int64
	Bytes    int64
	Elapsed  time.Duration
}

// Failed is the number of frames that were skipped.
func (r *Report) Failed() int64 {
	var n int64
	for _, c := range r.Failures {
		n += c
	}
	return n
}

// Driver enhances videos frame by frame through an Upsampler.
type Driver struct {
	up      Upsampler
	opts    Options
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewDriver returns a driver writing into opts.OutputDir.
func NewDriver(up Upsampler, opts Options, log zerolog.Logger) *Driver {
	if opts.Ext == "" {
		opts.Ext = ExtAuto
	}
	d := &Driver{up: up, opts: opts, log: log}
	if opts.MaxRPS > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(opts.MaxRPS), 1)
	}
	return d
}

// OutputPath names the enhanced copy of clip: {dir}/{key}_{suffix}.{ext}.
// A clip without a key is named after its file. ext "auto" keeps the input
// extension. Extensions the enhancer cannot write return
// video.ErrUnsupportedCodec.
func OutputPath(dir string, clip types.Clip, suffix, ext string) (string, error) {
	base := filepath.Base(clip.Path)
	inExt := filepath.Ext(base)
	name := clip.Key
	if name == "" {
		name = strings.TrimSuffix(base, inExt)
	}
	if ext == ExtAuto {
		ext = strings.TrimPrefix(inExt, ".")
	}
	ext = strings.ToLower(ext)
	if !outputExts[ext] {
		return "", fmt.Errorf("%w: invalid video extension %q", video.ErrUnsupportedCodec, ext)
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s.%s", name, suffix, ext)), nil
}

// EnhanceVideo enhances every frame of clip. Frames the model fails on are
// logged and left out; they never fail the video. A decoder failure ends the
// video early with what was written so far.
func (d *Driver) EnhanceVideo(ctx context.Context, clip types.Clip) (*Report, error) {
	start := time.Now()
	input := clip.Path
	log := d.log.With().Str(xlog.FieldInput, input).Logger()

	outPath, err := OutputPath(d.opts.OutputDir, clip, d.opts.Suffix, d.opts.Ext)
	if err != nil {
		return nil, err
	}
	codec, err := video.CodecForPath(outPath)
	if err != nil {
		return nil, err
	}

	reader, err := video.Open(ctx, input, video.WithReaderLogger(log))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	info := reader.Info()
	inSize := reader.Size()
	if advice := SizeAdvice(d.opts.NetScale, inSize); advice != "" {
		log.Warn().Stringer(xlog.FieldResolution, inSize).Msg(advice)
	}

	outSize := OutputSize(inSize, d.opts.OutScale)
	writer, err := video.Create(outPath, codec, info.FPS, outSize)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str(xlog.FieldOutput, outPath).
		Str(xlog.FieldFourCC, codec.FourCC).
		Stringer(xlog.FieldFPS, info.FPS).
		Stringer(xlog.FieldResolution, outSize).
		Msg("enhancing video")

	rep := &Report{Input: input, Output: outPath, Failures: map[Cause]int64{}}
	loopErr := d.loop(ctx, reader, writer, rep, log)
	if err := writer.Close(); err != nil && loopErr == nil {
		loopErr = err
	}

	metrics.FramesRead.WithLabelValues(tool).Add(float64(rep.Frames))
	metrics.FramesWritten.WithLabelValues(tool).Add(float64(rep.Enhanced))

	rep.Elapsed = time.Since(start)
	if st, err := os.Stat(outPath); err == nil {
		rep.Bytes = st.Size()
	}
	if loopErr != nil {
		return rep, loopErr
	}

	log.Info().
		Int64(xlog.FieldFrames, rep.Enhanced).
		Int64("failed", rep.Failed()).
		Str("size", humanize.Bytes(uint64(rep.Bytes))).
		Dur("elapsed", rep.Elapsed).
		Msg("video enhanced")
	return rep, nil
}

func (d *Driver) loop(ctx context.Context, reader *video.Reader, writer *video.Writer, rep *Report, log zerolog.Logger) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := reader.ReadFrame()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			d.record(Result{Index: rep.Frames, Cause: CauseDecode, Err: err}, rep, log)
			return nil
		}
		rep.Frames++

		res := d.Process(ctx, frame)
		if res.Err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if res.OK() {
			err := writer.WriteFrame(res.Frame)
			if errors.Is(err, video.ErrFrameSize) {
				res = Result{Index: res.Index, Cause: CauseModel, Err: fmt.Errorf("%w: %w", ErrModel, err), Duration: res.Duration}
			} else if err != nil {
				return err
			}
		}
		if res.OK() {
			rep.Enhanced++
			continue
		}
		d.record(res, rep, log)
	}
}

// Process enhances one frame.
func (d *Driver) Process(ctx context.Context, frame types.Frame) Result {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return Result{Index: frame.Index, Cause: CauseModel, Err: err}
		}
	}
	start := time.Now()
	out, err := d.up.Enhance(ctx, frame, d.opts.OutScale, d.opts.FaceEnhance)
	elapsed := time.Since(start)
	metrics.EnhanceDuration.Observe(elapsed.Seconds())
	if err != nil {
		return Result{Index: frame.Index, Cause: Classify(err), Err: err, Duration: elapsed}
	}
	return Result{Index: frame.Index, Frame: out, Duration: elapsed}
}

func (d *Driver) record(res Result, rep *Report, log zerolog.Logger) {
	rep.Failures[res.Cause]++
	metrics.FrameFailures.WithLabelValues(res.Cause.String()).Inc()

	ev := log.Warn().
		Err(res.Err).
		Int64(xlog.FieldFrame, res.Index).
		Stringer(xlog.FieldCause, res.Cause)
	switch res.Cause {
	case CauseOutOfMemory:
		ev.Msg("frame skipped: out of memory, try a smaller --tile")
	case CauseDecode:
		ev.Msg("frame could not be decoded")
	default:
		ev.Msg("frame skipped")
	}
}
