// Delete operation tests.
package jsonblite

import "testing"

// TestDeleteMissingKeyIsIdempotent verifies deleting an absent key is
// not an error and still advances last_modified — the reference
// behavior for the ambiguity §9 calls out explicitly.
func TestDeleteMissingKeyIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	before := db.hdr.LastModified

	if err := db.Delete("missing"); err != nil {
		t.Errorf("Delete(missing) = %v, want nil", err)
	}
	if db.hdr.LastModified <= before {
		t.Errorf("LastModified did not advance on delete of absent key: %d -> %d", before, db.hdr.LastModified)
	}
}

func TestDeleteRemovesKey(t *testing.T) {
	db := openTestDB(t)
	if err := db.Write("k", "v"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := db.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var out string
	if err := db.Read("k", &out); err != ErrNotFound {
		t.Errorf("Read after Delete = %v, want ErrNotFound", err)
	}

	keys, err := db.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Keys after Delete = %v, want empty", keys)
	}
}

// TestDeleteLeavesDataSizeUnchanged verifies delete only rewrites the
// header and index, never the data region — the value's bytes are left
// behind for Vacuum to reclaim (§4.6).
func TestDeleteLeavesDataSizeUnchanged(t *testing.T) {
	db := openTestDB(t)
	if err := db.Write("k", "v"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	before := db.hdr.DataSize

	if err := db.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if db.hdr.DataSize != before {
		t.Errorf("DataSize after delete = %d, want %d (unchanged)", db.hdr.DataSize, before)
	}
}

// TestDeleteThenWriteSameKey verifies a key can be re-written after
// being deleted and behaves like a fresh insertion.
func TestDeleteThenWriteSameKey(t *testing.T) {
	db := openTestDB(t)
	if err := db.Write("k", "v1"); err != nil {
		t.Fatalf("Write 1: %v", err)
	}
	if err := db.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := db.Write("k", "v2"); err != nil {
		t.Fatalf("Write 2: %v", err)
	}

	var got string
	if err := db.Read("k", &got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "v2" {
		t.Errorf("Read = %q, want %q", got, "v2")
	}
}
