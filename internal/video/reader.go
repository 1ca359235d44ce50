package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/melody-ding/go-vidsr/internal/schedule"
	"github.com/melody-ding/go-vidsr/internal/types"
)

// ErrDecode is returned when the decoder fails mid-stream.
var ErrDecode = errors.New("decode failed")

// Reader decodes a video file into rgb24 frames through an ffmpeg pipe.
// It implements schedule.Stream.
type Reader struct {
	info   Info
	size   Dimensions
	cmd    *exec.Cmd
	out    io.ReadCloser
	stderr *tailBuffer
	buf    []byte
	next   int64
	log    zerolog.Logger

	stopCtx  func() bool
	waitOnce sync.Once
	waitErr  error
	exited   bool
	closed   bool
}

type readerOptions struct {
	transforms []Transform
	fps        schedule.FrameRate
	log        zerolog.Logger
}

// ReaderOption configures Open.
type ReaderOption func(*readerOptions)

// WithTransforms applies decode-side filters; the reported frame size follows them.
func WithTransforms(t ...Transform) ReaderOption {
	return func(o *readerOptions) { o.transforms = append(o.transforms, t...) }
}

// WithFrameRate overrides the probed frame rate.
func WithFrameRate(fps schedule.FrameRate) ReaderOption {
	return func(o *readerOptions) { o.fps = fps }
}

// WithReaderLogger sets the logger used for process diagnostics.
func WithReaderLogger(l zerolog.Logger) ReaderOption {
	return func(o *readerOptions) { o.log = l }
}

// Open probes path and starts decoding it. A source without a usable frame
// rate and no override is unreadable. The decoder is killed when ctx is
// cancelled or Close is called.
func Open(ctx context.Context, path string, opts ...ReaderOption) (*Reader, error) {
	o := readerOptions{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	info, err := Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	if o.fps.Valid() {
		info.FPS = o.fps
	}
	if !info.FPS.Valid() {
		return nil, fmt.Errorf("%w: %s has no usable frame rate", ErrUnreadableSource, path)
	}

	size := Dimensions{Width: info.Width, Height: info.Height}
	for _, t := range o.transforms {
		size = t.Apply(size)
	}

	kw := ffmpeg.KwArgs{
		"format":   "rawvideo",
		"pix_fmt":  "rgb24",
		"fps_mode": "passthrough",
	}
	if vf := ComposeTransforms(o.transforms...); vf != "" {
		kw["vf"] = vf
	}
	cmd := ffmpeg.Input(path).
		Output("pipe:", kw).
		GlobalArgs("-hide_banner", "-nostdin", "-loglevel", "error").
		Compile()
	setProcessGroup(cmd)

	r := &Reader{
		info:   info,
		size:   size,
		cmd:    cmd,
		stderr: newTailBuffer(4096),
		buf:    make([]byte, types.FrameSize(size.Width, size.Height)),
		log:    o.log,
	}
	cmd.Stderr = r.stderr

	r.out, err = cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: pipe stdout: %v", ErrUnreadableSource, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start decoder for %s: %v", ErrUnreadableSource, path, err)
	}
	r.log.Debug().Strs("args", cmd.Args).Msg("decoder started")

	r.stopCtx = context.AfterFunc(ctx, r.kill)
	return r, nil
}

// Info returns the probed metadata with the frame rate override applied.
func (r *Reader) Info() Info {
	return r.info
}

// Size is the size of frames returned by ReadFrame.
func (r *Reader) Size() Dimensions {
	return r.size
}

// FrameRate implements schedule.Stream.
func (r *Reader) FrameRate() schedule.FrameRate {
	return r.info.FPS
}

// ReadFrame returns the next frame. The returned Data is reused by the next call.
func (r *Reader) ReadFrame() (types.Frame, error) {
	if r.closed {
		return types.Frame{}, io.EOF
	}

	_, err := io.ReadFull(r.out, r.buf)
	if err == nil {
		f := types.Frame{Index: r.next, Width: r.size.Width, Height: r.size.Height, Data: r.buf}
		r.next++
		return f, nil
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		if werr := r.wait(); werr != nil {
			return types.Frame{}, fmt.Errorf("%w: after %d frames: %v: %s", ErrDecode, r.next, werr, r.stderr.String())
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return types.Frame{}, fmt.Errorf("%w: truncated frame %d", ErrDecode, r.next)
		}
		return types.Frame{}, io.EOF
	}
	return types.Frame{}, fmt.Errorf("%w: read frame %d: %v", ErrDecode, r.next, err)
}

// Close stops the decoder if it is still running and releases the process.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.stopCtx != nil {
		r.stopCtx()
	}
	if !r.exited {
		r.kill()
	}
	_ = r.wait()
	return nil
}

func (r *Reader) kill() {
	if err := killProcessGroup(r.cmd); err != nil {
		r.log.Debug().Err(err).Msg("kill decoder")
	}
}

func (r *Reader) wait() error {
	r.waitOnce.Do(func() {
		r.waitErr = r.cmd.Wait()
		r.exited = true
	})
	return r.waitErr
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
