package types

import "fmt"

// Clip represents one input video with its key and location on disk
type Clip struct {
	Key  string
	Path string
}

// KeySet hands out clip keys that are unique within one batch.
type KeySet map[string]bool

// Claim returns name, or name_1, name_2... for the first of those not yet taken,
// and marks it taken.
func (s KeySet) Claim(name string) string {
	key := name
	for n := 1; s[key]; n++ {
		key = fmt.Sprintf("%s_%d", name, n)
	}
	s[key] = true
	return key
}
