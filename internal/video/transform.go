package video

import (
	"fmt"
	"strconv"
	"strings"
)

// Transform is a decode-side ffmpeg video filter
type Transform interface {
	// FilterArgs returns the ffmpeg filter expressions for this transformation
	FilterArgs() []string
	// Apply returns the frame size after the filter
	Apply(d Dimensions) Dimensions
}

// Dimensions is a frame size in pixels
type Dimensions struct {
	Width  int
	Height int
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// ParseDimensions parses a size such as "256x256"
func ParseDimensions(size string) (Dimensions, error) {
	parts := strings.Split(strings.ToLower(size), "x")
	if len(parts) != 2 {
		return Dimensions{}, fmt.Errorf("invalid size format: %s", size)
	}
	width, err := strconv.Atoi(parts[0])
	if err != nil || width <= 0 {
		return Dimensions{}, fmt.Errorf("invalid width: %s", parts[0])
	}
	height, err := strconv.Atoi(parts[1])
	if err != nil || height <= 0 {
		return Dimensions{}, fmt.Errorf("invalid height: %s", parts[1])
	}
	return Dimensions{Width: width, Height: height}, nil
}

// ScaleTransform resizes every frame
type ScaleTransform struct {
	Width  int
	Height int
}

func (t ScaleTransform) FilterArgs() []string {
	return []string{fmt.Sprintf("scale=%d:%d", t.Width, t.Height)}
}

func (t ScaleTransform) Apply(Dimensions) Dimensions {
	return Dimensions{Width: t.Width, Height: t.Height}
}

// ComposeTransforms joins the filters into one -vf chain
func ComposeTransforms(transforms ...Transform) string {
	var args []string
	for _, t := range transforms {
		args = append(args, t.FilterArgs()...)
	}
	return strings.Join(args, ",")
}
