package enhance

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/melody-ding/go-vidsr/internal/video"
)

// ModelSpec is the model server session requested by a run.
type ModelSpec struct {
	Path        string  `json:"model_path"`
	NetScale    int     `json:"netscale"`
	NumBlock    int     `json:"num_block"`
	Tile        int     `json:"tile"`
	TilePad     int     `json:"tile_pad"`
	PrePad      int     `json:"pre_pad"`
	Half        bool    `json:"half"`
	FaceEnhance bool    `json:"face_enhance"`
	OutScale    float64 `json:"outscale"`
}

// ResolveModel adjusts the network shape for weights that need it: the
// anime 6B weights have 6 RRDB blocks and the x2plus weights upscale by 2.
func ResolveModel(spec ModelSpec) ModelSpec {
	name := filepath.Base(spec.Path)
	switch {
	case strings.Contains(name, "RealESRGAN_x4plus_anime_6B"):
		spec.NumBlock = 6
	case strings.Contains(name, "RealESRGAN_x2plus"):
		spec.NetScale = 2
	}
	return spec
}

// Validate checks the values the model server cannot recover from.
func (s ModelSpec) Validate() error {
	switch {
	case s.Path == "":
		return fmt.Errorf("model path is required")
	case s.NetScale <= 0:
		return fmt.Errorf("netscale must be positive, got %d", s.NetScale)
	case s.NumBlock <= 0:
		return fmt.Errorf("block count must be positive, got %d", s.NumBlock)
	case s.OutScale <= 0:
		return fmt.Errorf("outscale must be positive, got %v", s.OutScale)
	case s.Tile < 0 || s.TilePad < 0 || s.PrePad < 0:
		return fmt.Errorf("tile, tile pad and pre pad must not be negative")
	}
	return nil
}

// SizeAdvice suggests a better suited network for the input size, or returns "".
func SizeAdvice(netScale int, size video.Dimensions) string {
	longest := max(size.Width, size.Height)
	switch {
	case longest > 1000 && netScale == 4:
		return "the input video is large, try the X2 model for better performance"
	case longest < 500 && netScale == 2:
		return "the input video is small, try the X4 model for better performance"
	}
	return ""
}

// OutputSize is the enhanced frame size, truncated to whole pixels.
func OutputSize(in video.Dimensions, outScale float64) video.Dimensions {
	return video.Dimensions{
		Width:  int(float64(in.Width) * outScale),
		Height: int(float64(in.Height) * outScale),
	}
}
