// Fixed header layout for the database file.
//
// The header is exactly 36 bytes at offset 0. Every field is little-endian
// and occupies a fixed byte range, so it can be read or patched without
// decoding the rest of the file — the same "byte position is the contract"
// discipline the rest of this package uses for the data and index regions.
package jsonblite

import (
	"encoding/binary"
	"os"
)

// HeaderSize is the fixed size of the header in bytes.
const HeaderSize = 36

// magic identifies a jsonblite file. Exactly 9 bytes.
var magic = [9]byte{'j', 's', 'o', 'n', 'b', 'l', 'i', 't', 'e'}

// currentVersion is the only format version this package writes or accepts.
const currentVersion = 1

// Byte offsets within the header, named so callers never hardcode them twice.
const (
	offMagic        = 0
	offVersion      = 9
	offIndexSize    = 10
	offDataSize     = 14
	offLastModified = 20
	offLastVacuum   = 28
)

// header is the in-memory mirror of the 36-byte on-disk header.
type header struct {
	Version      uint8
	IndexSize    uint32 // byte length of the index region
	DataSize     uint64 // byte length of the data region (48 bits on disk)
	LastModified int64  // ms, strictly increasing across commits
	LastVacuum   int64  // ms, set by vacuum
}

// dataTail is the file offset at which the next appended value begins,
// and the offset at which the index region starts.
func (h *header) dataTail() int64 {
	return HeaderSize + int64(h.DataSize)
}

// encode serialises the header to exactly HeaderSize bytes.
func (h *header) encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[offMagic:], magic[:])
	buf[offVersion] = h.Version
	binary.LittleEndian.PutUint32(buf[offIndexSize:], h.IndexSize)
	putUint48(buf[offDataSize:], h.DataSize)
	binary.LittleEndian.PutUint64(buf[offLastModified:], uint64(h.LastModified))
	binary.LittleEndian.PutUint64(buf[offLastVacuum:], uint64(h.LastVacuum))
	return buf
}

// decodeHeader parses a 36-byte buffer read from offset 0. It validates
// magic and version; any other inconsistency is the caller's problem to
// catch against the actual file size.
func decodeHeader(buf []byte) (*header, error) {
	if len(buf) < HeaderSize {
		return nil, CorruptFileError("short header")
	}
	if string(buf[offMagic:offMagic+len(magic)]) != string(magic[:]) {
		return nil, CorruptFileError("bad magic")
	}
	version := buf[offVersion]
	if version != currentVersion {
		return nil, CorruptFileError("unsupported version")
	}
	return &header{
		Version:      version,
		IndexSize:    binary.LittleEndian.Uint32(buf[offIndexSize:]),
		DataSize:     getUint48(buf[offDataSize:]),
		LastModified: int64(binary.LittleEndian.Uint64(buf[offLastModified:])),
		LastVacuum:   int64(binary.LittleEndian.Uint64(buf[offLastVacuum:])),
	}, nil
}

// readHeader reads and decodes the header from offset 0 of an open file.
func readHeader(f *os.File) (*header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return nil, IoError("read header", err)
	}
	return decodeHeader(buf)
}

// readLastModified reads only the 8-byte last_modified field, the cheap
// check C5 uses on every operation before deciding whether to reload the
// full header and index from disk.
func readLastModified(f *os.File) (int64, error) {
	buf := make([]byte, 8)
	if _, err := f.ReadAt(buf, offLastModified); err != nil {
		return 0, IoError("read last_modified", err)
	}
	return int64(binary.LittleEndian.Uint64(buf)), nil
}

func putUint48(b []byte, v uint64) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 32)
	b[5] = byte(v >> 40)
}

func getUint48(b []byte) uint64 {
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 |
		uint64(b[3])<<24 | uint64(b[4])<<32 | uint64(b[5])<<40
}
