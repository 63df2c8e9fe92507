// In-memory index and its CBOR wire format.
//
// The index is an insertion-order-preserving mapping from key to
// (offset,size). On the wire it is a single CBOR map: encoding walks
// entries in insertion order and writes the map header by hand so the
// pair order in the byte stream matches; decoding reads the header by
// hand and then asks the codec to decode each key/value pair in turn,
// rebuilding the same order. Nothing about a Go map would preserve that
// order, so the header and the pairs are handled at two different
// layers: bytes for the shape, the codec for the values.
package jsonblite

import (
	"bytes"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// indexEntry is the decoded form of a single index value: [offset, size].
type indexEntry struct {
	Offset uint64
	Size   uint64
}

// orderedIndex is the in-memory key → (offset,size) mapping. keys holds
// insertion order; pos gives O(1) position lookup for overwrite-in-place;
// vals gives O(1) value lookup.
type orderedIndex struct {
	keys []string
	pos  map[string]int
	vals map[string]indexEntry
}

func newOrderedIndex() *orderedIndex {
	return &orderedIndex{
		pos:  make(map[string]int),
		vals: make(map[string]indexEntry),
	}
}

// get returns the entry for key and whether it exists.
func (oi *orderedIndex) get(key string) (indexEntry, bool) {
	e, ok := oi.vals[key]
	return e, ok
}

// set inserts or overwrites key. An overwrite keeps the key's original
// position in the insertion order.
func (oi *orderedIndex) set(key string, e indexEntry) {
	if _, exists := oi.pos[key]; !exists {
		oi.pos[key] = len(oi.keys)
		oi.keys = append(oi.keys, key)
	}
	oi.vals[key] = e
}

// delete removes key. Reports whether it was present.
func (oi *orderedIndex) delete(key string) bool {
	i, exists := oi.pos[key]
	if !exists {
		return false
	}
	oi.keys = append(oi.keys[:i], oi.keys[i+1:]...)
	delete(oi.pos, key)
	delete(oi.vals, key)
	for k, p := range oi.pos {
		if p > i {
			oi.pos[k] = p - 1
		}
	}
	return true
}

// keyList returns a snapshot of keys in insertion order.
func (oi *orderedIndex) keyList() []string {
	out := make([]string, len(oi.keys))
	copy(out, oi.keys)
	return out
}

func (oi *orderedIndex) len() int { return len(oi.keys) }

// clone returns a deep copy, so a pending operation can build its result
// against a private index without mutating the live one until commit.
func (oi *orderedIndex) clone() *orderedIndex {
	next := &orderedIndex{
		keys: make([]string, len(oi.keys)),
		pos:  make(map[string]int, len(oi.pos)),
		vals: make(map[string]indexEntry, len(oi.vals)),
	}
	copy(next.keys, oi.keys)
	for k, v := range oi.pos {
		next.pos[k] = v
	}
	for k, v := range oi.vals {
		next.vals[k] = v
	}
	return next
}

// MarshalCBOR encodes the index as a definite-length CBOR map, writing
// pairs in insertion order.
func (oi *orderedIndex) MarshalCBOR() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(encodeMapHeader(len(oi.keys)))
	for _, k := range oi.keys {
		kb, err := cbor.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)

		e := oi.vals[k]
		vb, err := cbor.Marshal([2]uint64{e.Offset, e.Size})
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	return buf.Bytes(), nil
}

// UnmarshalCBOR decodes a CBOR map produced by MarshalCBOR (or any
// definite-length text-keyed CBOR map of 2-element unsigned arrays),
// preserving the pair order found in the byte stream.
func (oi *orderedIndex) UnmarshalCBOR(data []byte) error {
	r := bytes.NewReader(data)
	n, err := readMapHeader(r)
	if err != nil {
		return CorruptFileError("index: " + err.Error())
	}

	next := newOrderedIndex()
	dec := cbor.NewDecoder(r)
	for i := 0; i < n; i++ {
		var key string
		if err := dec.Decode(&key); err != nil {
			return CorruptFileError("index: decode key: " + err.Error())
		}
		var pair [2]uint64
		if err := dec.Decode(&pair); err != nil {
			return CorruptFileError("index: decode value: " + err.Error())
		}
		next.set(key, indexEntry{Offset: pair[0], Size: pair[1]})
	}

	*oi = *next
	return nil
}

// decodeIndex parses the index region read from disk.
func decodeIndex(buf []byte) (*orderedIndex, error) {
	oi := newOrderedIndex()
	if err := oi.UnmarshalCBOR(buf); err != nil {
		return nil, err
	}
	return oi, nil
}

// encodeMapHeader writes the CBOR major-type-5 (map) header for a
// definite-length map of n pairs.
func encodeMapHeader(n int) []byte {
	return encodeHeader(5, uint64(n))
}

// encodeHeader writes a CBOR initial byte plus any following length
// bytes for the given major type and argument value.
func encodeHeader(major byte, n uint64) []byte {
	lead := major << 5
	switch {
	case n < 24:
		return []byte{lead | byte(n)}
	case n <= 0xFF:
		return []byte{lead | 24, byte(n)}
	case n <= 0xFFFF:
		return []byte{lead | 25, byte(n >> 8), byte(n)}
	case n <= 0xFFFFFFFF:
		return []byte{lead | 26, byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
	default:
		return []byte{
			lead | 27,
			byte(n >> 56), byte(n >> 48), byte(n >> 40), byte(n >> 32),
			byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n),
		}
	}
}

// readMapHeader reads a CBOR map header (major type 5) and returns the
// pair count. Only definite-length maps are accepted; an index encoded
// by this package never produces an indefinite-length map.
func readMapHeader(r io.ByteReader) (int, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	major := b >> 5
	if major != 5 {
		return 0, CorruptFileError("index: not a CBOR map")
	}
	ai := b & 0x1F
	switch {
	case ai < 24:
		return int(ai), nil
	case ai == 24:
		n, err := readBigEndian(r, 1)
		return int(n), err
	case ai == 25:
		n, err := readBigEndian(r, 2)
		return int(n), err
	case ai == 26:
		n, err := readBigEndian(r, 4)
		return int(n), err
	case ai == 27:
		n, err := readBigEndian(r, 8)
		return int(n), err
	default:
		return 0, CorruptFileError("index: indefinite-length map unsupported")
	}
}

func readBigEndian(r io.ByteReader, n int) (uint64, error) {
	var v uint64
	for i := 0; i < n; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		v = v<<8 | uint64(b)
	}
	return v, nil
}
