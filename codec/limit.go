package codec

import (
	"errors"
	"fmt"
)

// ErrTooLarge is returned by Limit.Decode for payloads over MaxDecode.
var ErrTooLarge = errors.New("codec: payload too large")

// Limit caps the payload size Decode accepts before handing it to Inner.
// Entries in a shared cache can be written by any replica; a corrupt or
// hostile oversized entry fails fast and is self-healed by the reader.
// MaxDecode <= 0 disables the check. Encode is forwarded unchanged.
type Limit[V any] struct {
	Inner     Codec[V]
	MaxDecode int
}

var _ Codec[struct{}] = Limit[struct{}]{}

func (c Limit[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }
func (c Limit[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("%w: %d > %d", ErrTooLarge, len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
