package enhance

import (
	"errors"
	"time"

	"github.com/melody-ding/go-vidsr/internal/types"
	"github.com/melody-ding/go-vidsr/internal/video"
)

var (
	// ErrOutOfMemory is returned when the model server ran out of device memory.
	ErrOutOfMemory = errors.New("model server out of memory")
	// ErrFrameRejected is returned when the model server could not decode a frame.
	ErrFrameRejected = errors.New("frame rejected by model server")
	// ErrModel covers every other inference failure.
	ErrModel = errors.New("model error")
)

// Cause classifies the outcome of one frame.
type Cause int

const (
	CauseNone Cause = iota
	CauseDecode
	CauseOutOfMemory
	CauseModel
)

func (c Cause) String() string {
	switch c {
	case CauseNone:
		return "none"
	case CauseDecode:
		return "decode"
	case CauseOutOfMemory:
		return "out_of_memory"
	case CauseModel:
		return "model"
	}
	return "unknown"
}

// Classify maps an enhancement error to its cause.
func Classify(err error) Cause {
	switch {
	case err == nil:
		return CauseNone
	case errors.Is(err, ErrOutOfMemory):
		return CauseOutOfMemory
	case errors.Is(err, ErrFrameRejected), errors.Is(err, video.ErrDecode):
		return CauseDecode
	}
	return CauseModel
}

// Result is the outcome of one frame. Frame is only set when Cause is CauseNone.
type Result struct {
	Index    int64
	Frame    types.Frame
	Cause    Cause
	Err      error
	Duration time.Duration
}

// OK reports whether the frame was enhanced.
func (r Result) OK() bool {
	return r.Cause == CauseNone
}
