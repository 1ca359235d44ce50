package schedule

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned for sampling parameters or frame rates that
// cannot produce a meaningful frame range.
var ErrInvalidConfig = errors.New("invalid sampling config")

// Config holds the sampling parameters. All durations are whole seconds.
type Config struct {
	// BeginSkip is skipped before the first sample.
	BeginSkip int `yaml:"begin_skip"`
	// SampleLength is the duration kept per sample.
	SampleLength int `yaml:"sample_length"`
	// SampleGap is skipped between two samples.
	SampleGap int `yaml:"sample_gap"`
	// SampleCount bounds the sample index: samples 0..SampleCount are windowed.
	SampleCount int `yaml:"sample_count"`
	// RetestBoundary re-tests the frame that closes a segment against the
	// next segment instead of dropping it.
	RetestBoundary bool `yaml:"retest_boundary"`
}

// DefaultConfig returns the stock sampling parameters: one 10s sample, 300s apart.
func DefaultConfig() Config {
	return Config{
		SampleLength: 10,
		SampleGap:    300,
	}
}

// Validate rejects negative offsets and empty samples.
func (c Config) Validate() error {
	var errs []error
	if c.SampleLength <= 0 {
		errs = append(errs, fmt.Errorf("sample length must be positive, got %d", c.SampleLength))
	}
	if c.BeginSkip < 0 {
		errs = append(errs, fmt.Errorf("begin skip must not be negative, got %d", c.BeginSkip))
	}
	if c.SampleGap < 0 {
		errs = append(errs, fmt.Errorf("sample gap must not be negative, got %d", c.SampleGap))
	}
	if c.SampleCount < 0 {
		errs = append(errs, fmt.Errorf("sample count must not be negative, got %d", c.SampleCount))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
