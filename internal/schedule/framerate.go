package schedule

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FrameRate is an exact rational frame rate such as 30000/1001.
type FrameRate struct {
	Num int64
	Den int64
}

// ParseFrameRate accepts "num/den" as printed by ffprobe, or a decimal such as "25" or "29.97".
func ParseFrameRate(s string) (FrameRate, error) {
	s = strings.TrimSpace(s)
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
		if err != nil {
			return FrameRate{}, fmt.Errorf("%w: frame rate %q: %v", ErrInvalidConfig, s, err)
		}
		d, err := strconv.ParseInt(strings.TrimSpace(den), 10, 64)
		if err != nil {
			return FrameRate{}, fmt.Errorf("%w: frame rate %q: %v", ErrInvalidConfig, s, err)
		}
		r := FrameRate{Num: n, Den: d}.reduce()
		if !r.Valid() {
			return FrameRate{}, fmt.Errorf("%w: frame rate %q must be positive", ErrInvalidConfig, s)
		}
		return r, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return FrameRate{}, fmt.Errorf("%w: frame rate %q: %v", ErrInvalidConfig, s, err)
	}
	r := FrameRateFromFloat(f)
	if !r.Valid() {
		return FrameRate{}, fmt.Errorf("%w: frame rate %q must be positive", ErrInvalidConfig, s)
	}
	return r, nil
}

// FrameRateFromFloat converts a decimal rate with millihertz precision.
func FrameRateFromFloat(f float64) FrameRate {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return FrameRate{}
	}
	return FrameRate{Num: int64(math.Round(f * 1000)), Den: 1000}.reduce()
}

// Valid reports whether the rate is finite and strictly positive.
func (r FrameRate) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

// Float returns the rate as frames per second.
func (r FrameRate) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Frames converts whole seconds into a frame count, rounding down.
func (r FrameRate) Frames(seconds int) int64 {
	if !r.Valid() || seconds <= 0 {
		return 0
	}
	return int64(seconds) * r.Num / r.Den
}

// Seconds returns the timestamp of a frame index.
func (r FrameRate) Seconds(frame int64) float64 {
	if !r.Valid() {
		return 0
	}
	return float64(frame) * float64(r.Den) / float64(r.Num)
}

func (r FrameRate) String() string {
	if r.Den == 1 {
		return strconv.FormatInt(r.Num, 10)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

func (r FrameRate) reduce() FrameRate {
	if r.Num == 0 || r.Den == 0 {
		return r
	}
	a, b := r.Num, r.Den
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return FrameRate{Num: r.Num / a, Den: r.Den / a}
}
