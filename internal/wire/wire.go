// Package wire frames cached entity payloads with a generation so that a
// reader can tell whether the entry predates the last write-path event.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version byte = 1

	// KindEntity entries are validated against the key's current generation.
	KindEntity byte = 1
	// KindQuery entries (filter-first results) carry generation 0 and are
	// never validated; their staleness is bounded by TTL only.
	KindQuery byte = 2

	hdrLen = 4 + 1 + 1 + 8 + 4
)

var (
	ErrCorrupt = errors.New("querycache: corrupt entry")
	magic4     = [...]byte{'Q', 'C', 'E', 'N'}
)

// Entry: magic(4) | ver(1) | kind(1) | gen(u64 be) | vlen(u32 be) | payload(vlen)
type Entry struct {
	Kind    byte
	Gen     uint64
	Payload []byte
}

func Encode(kind byte, gen uint64, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kind)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], gen)
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// Decode rejects unknown versions/kinds, short buffers and trailing bytes.
// The returned payload aliases b.
func Decode(b []byte) (Entry, error) {
	if len(b) < hdrLen || !bytes.Equal(b[:4], magic4[:]) || b[4] != version {
		return Entry{}, ErrCorrupt
	}
	kind := b[5]
	if kind != KindEntity && kind != KindQuery {
		return Entry{}, ErrCorrupt
	}
	gen := binary.BigEndian.Uint64(b[6:14])
	vlen := int(binary.BigEndian.Uint32(b[14:18]))
	if vlen != len(b)-hdrLen {
		return Entry{}, ErrCorrupt
	}
	return Entry{Kind: kind, Gen: gen, Payload: b[hdrLen:]}, nil
}
