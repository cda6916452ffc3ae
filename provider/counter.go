package provider

import (
	"fmt"
	"hash/maphash"
	"strconv"
	"sync"
)

// FormatInt is the stored representation of a counter.
func FormatInt(n int64) []byte { return strconv.AppendInt(nil, n, 10) }

// ParseInt decodes a counter written by FormatInt or by a backend's native incr.
func ParseInt(b []byte) (int64, error) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotInteger, b)
	}
	return n, nil
}

const stripeCount = 64

// Stripes serializes read-modify-write cycles per key for in-process stores
// that have no native increment. The zero value is ready to use.
type Stripes struct {
	once sync.Once
	seed maphash.Seed
	mu   [stripeCount]sync.Mutex
}

// Lock locks the stripe owning key and returns its unlock func.
func (s *Stripes) Lock(key string) func() {
	s.once.Do(func() { s.seed = maphash.MakeSeed() })
	m := &s.mu[maphash.String(s.seed, key)%stripeCount]
	m.Lock()
	return m.Unlock
}
