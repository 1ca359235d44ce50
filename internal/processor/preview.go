package processor

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/melody-ding/go-vidsr/internal/schedule"
	"github.com/melody-ding/go-vidsr/internal/types"
	"github.com/melody-ding/go-vidsr/internal/video"
)

// KeyPreview stops a run once a line reading "q" arrives on its input.
type KeyPreview struct {
	stop atomic.Bool
	done chan struct{}
}

// NewKeyPreview starts watching r. The watcher exits when r is exhausted.
func NewKeyPreview(r io.Reader) *KeyPreview {
	p := &KeyPreview{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			if strings.EqualFold(strings.TrimSpace(sc.Text()), "q") {
				p.stop.Store(true)
				return
			}
		}
	}()
	return p
}

// Show implements schedule.Preview.
func (p *KeyPreview) Show(types.Frame) bool {
	return p.stop.Load()
}

// Stopped reports whether a stop was requested. The request is never
// cleared, so a preview shared by a batch stops every later run too.
func (p *KeyPreview) Stopped() bool {
	return p.stop.Load()
}

// progressPreview advances a bar per kept frame and defers to next.
type progressPreview struct {
	bar  *progressbar.ProgressBar
	next schedule.Preview
}

func newProgressPreview(cfg schedule.Config, info video.Info, next schedule.Preview) *progressPreview {
	total := int64(-1)
	if segments, err := schedule.Plan(cfg, info.FPS, info.Frames); err == nil {
		total = schedule.PlannedFrames(segments)
	}
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetDescription("Sampling"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	return &progressPreview{bar: bar, next: next}
}

func (p *progressPreview) Show(f types.Frame) bool {
	_ = p.bar.Add(1)
	return p.next != nil && p.next.Show(f)
}

func (p *progressPreview) Finish() {
	_ = p.bar.Finish()
}
