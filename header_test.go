// Header serialisation and validation tests.
//
// The header is a fixed 36-byte little-endian block at offset 0 of
// every jsonblite file (§3). Every other region's position is computed
// from its fields, so a single wrong byte here misdirects every read in
// the file.
package jsonblite

import "testing"

func TestHeaderSizeConstant(t *testing.T) {
	if HeaderSize != 36 {
		t.Errorf("HeaderSize = %d, want 36", HeaderSize)
	}
}

// TestHeaderEncodeDecodeRoundTrip verifies every field survives an
// encode/decode cycle unchanged.
func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := &header{
		Version:      currentVersion,
		IndexSize:    1234,
		DataSize:     987654321,
		LastModified: 1706000000000,
		LastVacuum:   1705000000000,
	}

	buf := h.encode()
	if len(buf) != HeaderSize {
		t.Fatalf("encoded length = %d, want %d", len(buf), HeaderSize)
	}

	got, err := decodeHeader(buf)
	if err != nil {
		t.Fatalf("decodeHeader: %v", err)
	}
	if *got != *h {
		t.Errorf("decodeHeader = %+v, want %+v", *got, *h)
	}
}

// TestHeaderRejectsBadMagic verifies a file that doesn't start with the
// jsonblite magic is reported as corrupt rather than silently misread.
func TestHeaderRejectsBadMagic(t *testing.T) {
	h := &header{Version: currentVersion}
	buf := h.encode()
	buf[0] = 'x'

	if _, err := decodeHeader(buf); err == nil {
		t.Error("decodeHeader accepted bad magic")
	}
}

// TestHeaderRejectsUnsupportedVersion verifies forward compatibility is
// refused explicitly rather than silently misinterpreting a future
// layout.
func TestHeaderRejectsUnsupportedVersion(t *testing.T) {
	h := &header{Version: currentVersion + 1}
	buf := h.encode()

	if _, err := decodeHeader(buf); err == nil {
		t.Error("decodeHeader accepted unsupported version")
	}
}

// TestHeaderRejectsShortBuffer verifies a truncated header (e.g. a file
// cut off mid-write) is caught before any field is read out of bounds.
func TestHeaderRejectsShortBuffer(t *testing.T) {
	if _, err := decodeHeader(make([]byte, HeaderSize-1)); err == nil {
		t.Error("decodeHeader accepted a short buffer")
	}
}

// TestDataTail verifies dataTail is exactly HeaderSize plus DataSize,
// the offset every index read depends on.
func TestDataTail(t *testing.T) {
	h := &header{DataSize: 500}
	if got, want := h.dataTail(), int64(HeaderSize+500); got != want {
		t.Errorf("dataTail = %d, want %d", got, want)
	}
}

// TestUint48RoundTrip verifies the 48-bit little-endian helpers used for
// DataSize, since data_size never needs the full 64 bits this package
// otherwise reaches for.
func TestUint48RoundTrip(t *testing.T) {
	values := []uint64{0, 1, 0xFF, 0xFFFF, 0xFFFFFFFFFFFF}
	for _, v := range values {
		buf := make([]byte, 6)
		putUint48(buf, v)
		if got := getUint48(buf); got != v {
			t.Errorf("getUint48(putUint48(%d)) = %d", v, got)
		}
	}
}
