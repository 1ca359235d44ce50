package video

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/melody-ding/go-vidsr/internal/schedule"
	"github.com/melody-ding/go-vidsr/internal/types"
)

// ErrFrameSize is returned when a frame does not match the writer's size.
var ErrFrameSize = errors.New("frame size mismatch")

// Writer encodes rgb24 frames into a container through an ffmpeg pipe.
type Writer struct {
	path   string
	codec  Codec
	size   Dimensions
	cmd    *exec.Cmd
	in     io.WriteCloser
	stderr *tailBuffer
	frames int64
	closed bool
}

// Create starts an encoder writing path with the given codec, rate and frame size.
// Close must be called to flush the container.
func Create(path string, codec Codec, fps schedule.FrameRate, size Dimensions) (*Writer, error) {
	if !fps.Valid() {
		return nil, fmt.Errorf("invalid frame rate %s", fps)
	}
	if size.Width <= 0 || size.Height <= 0 {
		return nil, fmt.Errorf("invalid output size %s", size)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	out := ffmpeg.KwArgs{
		"c:v":     codec.Encoder,
		"pix_fmt": codec.PixFmt,
		"q:v":     3,
	}
	if codec.Tag != "" {
		out["tag:v"] = codec.Tag
	}
	cmd := ffmpeg.Input("pipe:", ffmpeg.KwArgs{
		"format":    "rawvideo",
		"pix_fmt":   "rgb24",
		"s":         size.String(),
		"framerate": fps.String(),
	}).
		Output(path, out).
		OverWriteOutput().
		GlobalArgs("-hide_banner", "-loglevel", "error").
		Compile()
	setProcessGroup(cmd)

	w := &Writer{
		path:   path,
		codec:  codec,
		size:   size,
		cmd:    cmd,
		stderr: newTailBuffer(4096),
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = w.stderr

	in, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("pipe stdin: %w", err)
	}
	w.in = in
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start encoder for %s: %w", path, err)
	}
	return w, nil
}

// Path is the output file.
func (w *Writer) Path() string {
	return w.path
}

// Frames is the number of frames written so far.
func (w *Writer) Frames() int64 {
	return w.frames
}

// WriteFrame implements schedule.Sink.
func (w *Writer) WriteFrame(f types.Frame) error {
	if w.closed {
		return fmt.Errorf("write to closed writer %s", w.path)
	}
	if f.Width != w.size.Width || f.Height != w.size.Height || len(f.Data) != types.FrameSize(w.size.Width, w.size.Height) {
		return fmt.Errorf("%w: got %dx%d (%d bytes), want %s", ErrFrameSize, f.Width, f.Height, len(f.Data), w.size)
	}
	if _, err := w.in.Write(f.Data); err != nil {
		return fmt.Errorf("encode %s: %w: %s", w.path, err, w.stderr.String())
	}
	w.frames++
	return nil
}

// Close flushes the encoder and waits for the container to be finalised.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	cerr := w.in.Close()
	if err := w.cmd.Wait(); err != nil {
		return fmt.Errorf("finalise %s: %w: %s", w.path, err, w.stderr.String())
	}
	if cerr != nil {
		return fmt.Errorf("close encoder input: %w", cerr)
	}
	return nil
}
