package types

// SampleMetadata describes one extracted sample and is written next to it as JSON
type SampleMetadata struct {
	Key          string  `json:"key"`
	Source       string  `json:"source"`
	SampleIndex  int     `json:"sample_index"`
	StartFrame   int64   `json:"start_frame"`
	EndFrame     int64   `json:"end_frame"`
	FrameCount   int     `json:"frame_count"`
	FPS          string  `json:"fps"`
	StartSeconds float64 `json:"start_seconds"`
	Size         []int   `json:"size"`
	Format       string  `json:"format"`
	IsTrimmed    bool    `json:"is_trimmed,omitempty"`
}
