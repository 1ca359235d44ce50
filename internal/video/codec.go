package video

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnsupportedCodec is returned for output extensions without a codec mapping.
var ErrUnsupportedCodec = errors.New("unsupported codec")

// Codec maps an output container to the FourCC it is written with.
type Codec struct {
	Ext     string
	FourCC  string
	Encoder string // ffmpeg encoder name
	Tag     string // on-disk codec tag, empty to let the muxer choose
	PixFmt  string
}

// mp4 cannot carry the XVID tag, so MPEG-4 part 2 is tagged mp4v in that container.
var codecs = map[string]Codec{
	"avi": {Ext: "avi", FourCC: "MJPG", Encoder: "mjpeg", Tag: "MJPG", PixFmt: "yuvj420p"},
	"mp4": {Ext: "mp4", FourCC: "XVID", Encoder: "mpeg4", Tag: "mp4v", PixFmt: "yuv420p"},
	"mkv": {Ext: "mkv", FourCC: "MJPG", Encoder: "mjpeg", PixFmt: "yuvj420p"},
	"mov": {Ext: "mov", FourCC: "MJPG", Encoder: "mjpeg", PixFmt: "yuvj420p"},
}

// CodecForExt looks up an extension given with or without the leading dot.
func CodecForExt(ext string) (Codec, error) {
	key := strings.ToLower(strings.TrimPrefix(ext, "."))
	c, ok := codecs[key]
	if !ok {
		return Codec{}, fmt.Errorf("%w: extension %q (supported: %s)", ErrUnsupportedCodec, ext, strings.Join(Extensions(), ", "))
	}
	return c, nil
}

// CodecForPath looks up the codec for an output file name.
func CodecForPath(path string) (Codec, error) {
	return CodecForExt(filepath.Ext(path))
}

// Extensions lists the supported output extensions.
func Extensions() []string {
	out := make([]string, 0, len(codecs))
	for ext := range codecs {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// IsVideoFile reports whether name looks like a video the decoder can read.
func IsVideoFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4", ".avi", ".mkv", ".mov", ".m4v", ".webm", ".flv", ".ts", ".mpg", ".mpeg", ".wmv":
		return true
	default:
		return false
	}
}
