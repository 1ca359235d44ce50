package video

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/melody-ding/go-vidsr/internal/schedule"
	"github.com/melody-ding/go-vidsr/internal/types"
)

const probeFixture = `{
  "streams": [
    {"codec_type": "audio", "codec_name": "aac"},
    {
      "codec_type": "video",
      "codec_name": "h264",
      "width": 1920,
      "height": 1080,
      "avg_frame_rate": "30000/1001",
      "r_frame_rate": "30000/1001",
      "nb_frames": "1798",
      "duration": "59.993267"
    }
  ],
  "format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "60.010000"}
}`

func TestParseProbe(t *testing.T) {
	info, err := parseProbe([]byte(probeFixture))
	require.NoError(t, err)

	assert.Equal(t, 1920, info.Width)
	assert.Equal(t, 1080, info.Height)
	assert.Equal(t, schedule.FrameRate{Num: 30000, Den: 1001}, info.FPS)
	assert.Equal(t, int64(1798), info.Frames)
	assert.Equal(t, "h264", info.Codec)
	assert.Equal(t, "mov", info.Container)
	assert.InDelta(t, 59.99, info.Duration, 0.01)
}

func TestParseProbeFallbacks(t *testing.T) {
	data := `{
	  "streams": [{"codec_type": "video", "codec_name": "mjpeg", "width": 640, "height": 480,
	               "avg_frame_rate": "0/0", "r_frame_rate": "25/1"}],
	  "format": {"format_name": "avi", "duration": "4.000000"}
	}`
	info, err := parseProbe([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, schedule.FrameRate{Num: 25, Den: 1}, info.FPS)
	assert.Equal(t, int64(100), info.Frames, "frame count estimated from duration")
}

func TestParseProbeErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: "nope"},
		{name: "audio only", data: `{"streams":[{"codec_type":"audio"}],"format":{}}`},
		{name: "zero size", data: `{"streams":[{"codec_type":"video","width":0,"height":0}],"format":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseProbe([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestProbeWrapsUnreadableSource(t *testing.T) {
	orig := probe
	t.Cleanup(func() { probe = orig })
	probe = func(string, ...ffmpeg.KwArgs) (string, error) { return "", errors.New("exit status 1") }

	_, err := Probe(context.Background(), "missing.mp4")
	assert.ErrorIs(t, err, ErrUnreadableSource)
}

func TestOpenWithoutFrameRateIsUnreadable(t *testing.T) {
	orig := probe
	t.Cleanup(func() { probe = orig })
	probe = func(string, ...ffmpeg.KwArgs) (string, error) {
		return `{"streams":[{"codec_type":"video","width":4,"height":2,"avg_frame_rate":"0/0","r_frame_rate":"0/0"}],"format":{}}`, nil
	}

	_, err := Open(context.Background(), "nofps.avi")
	assert.ErrorIs(t, err, ErrUnreadableSource)
	assert.NotErrorIs(t, err, schedule.ErrInvalidConfig)
}

func TestCodecForExt(t *testing.T) {
	tests := []struct {
		ext    string
		fourcc string
	}{
		{ext: "avi", fourcc: "MJPG"},
		{ext: ".AVI", fourcc: "MJPG"},
		{ext: "mp4", fourcc: "XVID"},
		{ext: ".mkv", fourcc: "MJPG"},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			c, err := CodecForExt(tt.ext)
			require.NoError(t, err)
			assert.Equal(t, tt.fourcc, c.FourCC)
		})
	}

	_, err := CodecForPath("out/clip.webm")
	assert.ErrorIs(t, err, ErrUnsupportedCodec)
	_, err = CodecForPath("out/clip")
	assert.ErrorIs(t, err, ErrUnsupportedCodec)
}

func TestIsVideoFile(t *testing.T) {
	assert.True(t, IsVideoFile("a/b/c.MP4"))
	assert.True(t, IsVideoFile("clip.mkv"))
	assert.False(t, IsVideoFile("notes.txt"))
	assert.False(t, IsVideoFile("._clip"))
}

func TestParseDimensions(t *testing.T) {
	tests := []struct {
		name    string
		size    string
		want    Dimensions
		wantErr bool
	}{
		{name: "valid dimensions", size: "256x256", want: Dimensions{Width: 256, Height: 256}},
		{name: "upper case separator", size: "640X360", want: Dimensions{Width: 640, Height: 360}},
		{name: "invalid format", size: "256", wantErr: true},
		{name: "invalid width", size: "abcx256", wantErr: true},
		{name: "invalid height", size: "256xabc", wantErr: true},
		{name: "zero width", size: "0x256", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDimensions(tt.size)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComposeTransforms(t *testing.T) {
	assert.Equal(t, "", ComposeTransforms())
	assert.Equal(t, "scale=320:240", ComposeTransforms(ScaleTransform{Width: 320, Height: 240}))
	assert.Equal(t, Dimensions{Width: 320, Height: 240}, ScaleTransform{Width: 320, Height: 240}.Apply(Dimensions{Width: 1, Height: 1}))
}

func TestTailBufferKeepsTail(t *testing.T) {
	b := newTailBuffer(5)
	_, _ = b.Write([]byte("abc"))
	_, _ = b.Write([]byte("defg"))
	assert.Equal(t, "cdefg", b.String())
}

// createTestVideo creates a small test video file using ffmpeg
func createTestVideo(t *testing.T, frames int) string {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not installed")
	}

	path := filepath.Join(t.TempDir(), "test.avi")
	cmd := exec.Command("ffmpeg",
		"-f", "lavfi",
		"-i", "testsrc=size=64x48:rate=10",
		"-frames:v", strconv.Itoa(frames),
		"-c:v", "mjpeg",
		"-y", path,
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	return path
}

func TestReaderWriterRoundTrip(t *testing.T) {
	src := createTestVideo(t, 30)
	ctx := context.Background()

	r, err := Open(ctx, src)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, Dimensions{Width: 64, Height: 48}, r.Size())
	assert.Equal(t, schedule.FrameRate{Num: 10, Den: 1}, r.FrameRate())

	codec, err := CodecForExt("avi")
	require.NoError(t, err)
	dst := filepath.Join(t.TempDir(), "nested", "copy.avi")
	w, err := Create(dst, codec, r.FrameRate(), r.Size())
	require.NoError(t, err)

	var n int64
	for {
		f, err := r.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, n, f.Index)
		require.NoError(t, w.WriteFrame(f))
		n++
	}
	require.NoError(t, w.Close())
	assert.Equal(t, int64(30), n)
	assert.Equal(t, int64(30), w.Frames())

	info, err := Probe(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, 64, info.Width)
	assert.Equal(t, 48, info.Height)
}

func TestReaderScaleTransform(t *testing.T) {
	src := createTestVideo(t, 3)

	r, err := Open(context.Background(), src, WithTransforms(ScaleTransform{Width: 32, Height: 24}))
	require.NoError(t, err)
	defer r.Close()

	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, 32, f.Width)
	assert.Len(t, f.Data, types.FrameSize(32, 24))
}

func TestReaderCloseEarly(t *testing.T) {
	src := createTestVideo(t, 100)

	r, err := Open(context.Background(), src)
	require.NoError(t, err)
	_, err = r.ReadFrame()
	require.NoError(t, err)
	require.NoError(t, r.Close())

	_, err = r.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not installed")
	}
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	assert.ErrorIs(t, err, ErrUnreadableSource)
}

func TestWriterRejectsWrongFrameSize(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	codec, _ := CodecForExt("avi")
	w, err := Create(filepath.Join(t.TempDir(), "x.avi"), codec, schedule.FrameRate{Num: 10, Den: 1}, Dimensions{Width: 4, Height: 4})
	require.NoError(t, err)
	defer os.Remove(w.Path())

	err = w.WriteFrame(types.Frame{Width: 2, Height: 2, Data: make([]byte, 12)})
	assert.ErrorIs(t, err, ErrFrameSize)
	require.NoError(t, w.WriteFrame(types.Frame{Width: 4, Height: 4, Data: make([]byte, 48)}))
	require.NoError(t, w.Close())
}
