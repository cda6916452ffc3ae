package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Protobuf caches generated message types. ctor allocates the message
// Decode fills, e.g. func() *pb.User { return new(pb.User) }.
type Protobuf[T proto.Message] struct {
	ctor func() T
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{ctor: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) { return proto.Marshal(v) }
func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.ctor()
	if err := proto.Unmarshal(b, m); err != nil {
		var zero T
		return zero, fmt.Errorf("codec: protobuf: %w", err)
	}
	return m, nil
}
