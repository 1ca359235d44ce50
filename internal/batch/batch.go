package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	xlog "github.com/melody-ding/go-vidsr/internal/log"
	"github.com/melody-ding/go-vidsr/internal/metrics"
	"github.com/melody-ding/go-vidsr/internal/schedule"
	"github.com/melody-ding/go-vidsr/internal/tar_reader"
	"github.com/melody-ding/go-vidsr/internal/types"
	"github.com/melody-ding/go-vidsr/internal/video"
)

// Collect resolves input into the clips to process: a single file, the
// video files of a directory in name order, or the videos of a .tar archive
// extracted into workDir.
func Collect(input, workDir string) ([]types.Clip, error) {
	st, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", video.ErrUnreadableSource, err)
	}

	switch {
	case st.IsDir():
		return collectDir(input)
	case strings.EqualFold(filepath.Ext(input), ".tar"):
		clips, err := tar_reader.ExtractClipsFromTar(input, workDir)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", video.ErrUnreadableSource, err)
		}
		return clips, nil
	default:
		return []types.Clip{{Key: key(input), Path: input}}, nil
	}
}

func collectDir(dir string) ([]types.Clip, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", video.ErrUnreadableSource, err)
	}
	var clips []types.Clip
	for _, e := range entries {
		if !e.Type().IsRegular() || !video.IsVideoFile(e.Name()) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		clips = append(clips, types.Clip{Path: p})
	}
	sort.Slice(clips, func(i, j int) bool { return clips[i].Path < clips[j].Path })
	// clip.avi and clip.mp4 would otherwise share output names
	keys := types.KeySet{}
	for i := range clips {
		clips[i].Key = keys.Claim(key(clips[i].Path))
	}
	return clips, nil
}

func key(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ErrStop is returned by a Func to end the batch after the current item
// without treating it as a failure.
var ErrStop = errors.New("batch stopped")

// Status of one batch item.
type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
	StatusStopped Status = "stopped"
)

// Outcome is the result of one item.
type Outcome struct {
	Clip    types.Clip
	Status  Status
	Err     error
	Elapsed time.Duration
}

// Summary collects the outcomes of a batch.
type Summary struct {
	Outcomes []Outcome
}

// Count returns the number of items with status s.
func (s Summary) Count(status Status) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Err joins the failures of the batch, or returns nil.
func (s Summary) Err() error {
	var errs []error
	for _, o := range s.Outcomes {
		if o.Status == StatusFailed {
			errs = append(errs, fmt.Errorf("%s: %w", o.Clip.Key, o.Err))
		}
	}
	return errors.Join(errs...)
}

// Func processes one clip.
type Func func(ctx context.Context, clip types.Clip) error

// Run calls fn for every clip in order. Item errors are recorded and the
// batch moves on; an unsupported output container skips the item. Invalid
// configuration and cancellation stop the batch and are returned. ErrStop
// ends the batch cleanly.
func Run(ctx context.Context, tool string, clips []types.Clip, fn Func, log zerolog.Logger) (Summary, error) {
	var sum Summary
	for i, clip := range clips {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		l := log.With().Str(xlog.FieldKey, clip.Key).Logger()
		l.Info().Int("index", i).Int("total", len(clips)).Msg("processing")

		start := time.Now()
		err := fn(ctx, clip)
		o := Outcome{Clip: clip, Status: StatusOK, Err: err, Elapsed: time.Since(start)}

		switch {
		case err == nil:
		case errors.Is(err, ErrStop):
			o.Status, o.Err = StatusStopped, nil
			sum.Outcomes = append(sum.Outcomes, o)
			metrics.Videos.WithLabelValues(tool, string(o.Status)).Inc()
			l.Info().Int("remaining", len(clips)-i-1).Msg("batch stopped")
			return sum, nil
		case errors.Is(err, schedule.ErrInvalidConfig):
			o.Status = StatusFailed
			sum.Outcomes = append(sum.Outcomes, o)
			metrics.Videos.WithLabelValues(tool, string(o.Status)).Inc()
			return sum, err
		case ctx.Err() != nil:
			return sum, err
		case errors.Is(err, video.ErrUnsupportedCodec):
			o.Status = StatusSkipped
			l.Warn().Err(err).Msg("skipped")
		default:
			o.Status = StatusFailed
			l.Error().Err(err).Msg("failed")
		}
		sum.Outcomes = append(sum.Outcomes, o)
		metrics.Videos.WithLabelValues(tool, string(o.Status)).Inc()
	}

	log.Info().
		Int("ok", sum.Count(StatusOK)).
		Int("skipped", sum.Count(StatusSkipped)).
		Int("failed", sum.Count(StatusFailed)).
		Msg("batch finished")
	return sum, nil
}
