package codec

import "strconv"

// Bytes passes []byte values through unchanged.
type Bytes struct{}

func (Bytes) Encode(b []byte) ([]byte, error) { return b, nil }
func (Bytes) Decode(b []byte) ([]byte, error) { return b, nil }

// String stores a string as its bytes, without validation.
type String struct{}

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }

// Int64 stores base-10 ASCII, the format providers use for counters, so a
// value cached through it can also be moved by Provider.Incr.
type Int64 struct{}

func (Int64) Encode(n int64) ([]byte, error) { return strconv.AppendInt(nil, n, 10), nil }
func (Int64) Decode(b []byte) (int64, error) { return strconv.ParseInt(string(b), 10, 64) }
