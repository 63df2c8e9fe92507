// Write operation tests.
package jsonblite

import "testing"

func TestWriteRejectsEmptyKey(t *testing.T) {
	db := openTestDB(t)
	if err := db.Write("", "v"); err == nil {
		t.Error("Write(\"\", ...) succeeded, want error")
	}
}

// TestWriteThenReadRoundTrip verifies a written value decodes back to
// an equal Go value through CBOR.
func TestWriteThenReadRoundTrip(t *testing.T) {
	db := openTestDB(t)

	type payload struct {
		Name string
		N    int
	}
	want := payload{Name: "alice", N: 42}

	if err := db.Write("user", want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var got payload
	if err := db.Read("user", &got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != want {
		t.Errorf("Read = %+v, want %+v", got, want)
	}
}

// TestWriteOverwriteAppendsNewValue verifies overwriting a key does not
// reuse its old data-region bytes: the new value is appended at the
// current tail, and only the index is repointed (§3, append-only
// invariant).
func TestWriteOverwriteAppendsNewValue(t *testing.T) {
	db := openTestDB(t)

	if err := db.Write("k", "first"); err != nil {
		t.Fatalf("Write 1: %v", err)
	}
	firstTail := db.tail

	if err := db.Write("k", "second-and-longer"); err != nil {
		t.Fatalf("Write 2: %v", err)
	}

	e, ok := db.idx.get("k")
	if !ok {
		t.Fatal("key k missing after overwrite")
	}
	if int64(e.Offset) != firstTail {
		t.Errorf("new value offset = %d, want %d (old tail)", e.Offset, firstTail)
	}

	var got string
	if err := db.Read("k", &got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "second-and-longer" {
		t.Errorf("Read = %q, want %q", got, "second-and-longer")
	}
}

// TestWriteAdvancesLastModified verifies every write strictly advances
// last_modified, even when called twice in immediate succession (§4.6
// next_timestamp monotonicity).
func TestWriteAdvancesLastModified(t *testing.T) {
	db := openTestDB(t)

	if err := db.Write("a", 1); err != nil {
		t.Fatalf("Write 1: %v", err)
	}
	first := db.hdr.LastModified

	if err := db.Write("b", 2); err != nil {
		t.Fatalf("Write 2: %v", err)
	}
	second := db.hdr.LastModified

	if second <= first {
		t.Errorf("LastModified did not advance: %d -> %d", first, second)
	}
}

// TestWriteClearsJournalOnSuccess verifies no journal file is left
// behind once a write completes normally.
func TestWriteClearsJournalOnSuccess(t *testing.T) {
	db := openTestDB(t)
	if err := db.Write("a", 1); err != nil {
		t.Fatalf("Write: %v", err)
	}

	exists, err := db.journalExists()
	if err != nil {
		t.Fatalf("journalExists: %v", err)
	}
	if exists {
		t.Error("journal file left behind after successful write")
	}
}
