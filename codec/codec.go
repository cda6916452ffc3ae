// Package codec turns cached values into bytes and back. A Query uses one
// codec per table; memo uses one per decorated function.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
