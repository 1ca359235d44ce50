package types

// Frame is a single decoded picture as packed rgb24 bytes.
// Readers may reuse Data between reads; sinks that keep a frame must copy it.
type Frame struct {
	Index  int64
	Width  int
	Height int
	Data   []byte
}

// FrameSize returns the byte length of an rgb24 frame of the given size
func FrameSize(width, height int) int {
	return width * height * 3
}
