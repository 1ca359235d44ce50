package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/melody-ding/go-vidsr/internal/schedule"
)

// ErrUnreadableSource is returned when an input cannot be opened or carries no video stream.
var ErrUnreadableSource = errors.New("unreadable source")

// Info is the container metadata needed to drive a frame loop.
type Info struct {
	Path      string
	Width     int
	Height    int
	FPS       schedule.FrameRate
	Frames    int64 // 0 when the container does not tell
	Duration  float64
	Codec     string
	Container string
}

// probe is swapped in tests.
var probe = ffmpeg.Probe

// Probe runs ffprobe on path and returns the first video stream's metadata.
// A missing frame rate is not an error here; callers validate it against
// their own needs.
func Probe(ctx context.Context, path string) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	out, err := probe(path)
	if err != nil {
		return Info{}, fmt.Errorf("%w: ffprobe %s: %v", ErrUnreadableSource, path, err)
	}
	info, err := parseProbe([]byte(out))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %s: %v", ErrUnreadableSource, path, err)
	}
	info.Path = path
	return info, nil
}

type probeData struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

func parseProbe(data []byte) (Info, error) {
	var pd probeData
	if err := json.Unmarshal(data, &pd); err != nil {
		return Info{}, fmt.Errorf("json decode: %w", err)
	}

	var info Info
	found := false
	for _, s := range pd.Streams {
		if s.CodecType != "video" {
			continue
		}
		found = true
		info.Width = s.Width
		info.Height = s.Height
		info.Codec = s.CodecName
		// avg_frame_rate is what decoders deliver; r_frame_rate is the fallback
		for _, rate := range []string{s.AvgFrameRate, s.RFrameRate} {
			if rate == "" || rate == "0/0" {
				continue
			}
			if fps, err := schedule.ParseFrameRate(rate); err == nil {
				info.FPS = fps
				break
			}
		}
		if n, err := strconv.ParseInt(s.NbFrames, 10, 64); err == nil && n > 0 {
			info.Frames = n
		}
		if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
			info.Duration = d
		}
		break
	}
	if !found {
		return Info{}, errors.New("no video stream")
	}
	if info.Width <= 0 || info.Height <= 0 {
		return Info{}, fmt.Errorf("invalid frame size %dx%d", info.Width, info.Height)
	}

	if info.Duration == 0 && pd.Format.Duration != "" {
		if d, err := strconv.ParseFloat(pd.Format.Duration, 64); err == nil {
			info.Duration = d
		}
	}
	if info.Frames == 0 && info.Duration > 0 && info.FPS.Valid() {
		info.Frames = int64(info.Duration * info.FPS.Float())
	}
	info.Container, _, _ = strings.Cut(pd.Format.FormatName, ",")
	return info, nil
}
