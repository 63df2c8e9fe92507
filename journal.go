// Write-ahead journal and crash recovery (C4).
//
// A mutating operation never overwrites header, data, or index bytes
// directly. It first stages the whole transaction — the bytes it is about
// to write, and where — as a single CBOR record at <db>.journal. Creating
// that file (create-or-truncate) is the commit point: once it exists, the
// operation is guaranteed to converge to "fully applied" no matter when the
// process dies, because applying it is just positional overwrites
// determined entirely by the record's own fields, and overwriting the same
// bytes twice is a no-op.
package jsonblite

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/xxh3"
)

const (
	journalOpWrite  = "write"
	journalOpDelete = "delete"
)

// journalRecord is the single pending transaction (§4.4).
type journalRecord struct {
	Key        string `cbor:"key"`
	Operation  string `cbor:"operation"`
	Data       []byte `cbor:"data"`
	Index      []byte `cbor:"index"`
	Header     []byte `cbor:"header"`
	DataOffset uint64 `cbor:"data_offset"`
	Checksum   uint64 `cbor:"checksum"`
}

// checksum hashes every field but itself with xxh3, a fast non-cryptographic
// hash. It catches a journal file truncated or torn mid-write that happens
// to still decode as valid CBOR (e.g. a partially-flushed page) — belt and
// braces alongside the decode-failure check §4.4 already requires.
func (j *journalRecord) checksum() uint64 {
	h := xxh3.New()
	h.WriteString(j.Operation)
	h.WriteString(j.Key)
	h.Write(j.Data)
	h.Write(j.Index)
	h.Write(j.Header)
	var off [8]byte
	binary.LittleEndian.PutUint64(off[:], j.DataOffset)
	h.Write(off[:])
	return h.Sum64()
}

// beginTransaction stages rec to the journal file. This is the commit
// point (§4.4 step 1): create-or-truncate semantics, so a crash leaves no
// journal (nothing happened), a complete one, or a partial one that fails
// decoding or the checksum and is treated as absent by readJournal.
func (db *DB) beginTransaction(rec *journalRecord) error {
	rec.Checksum = rec.checksum()
	body, err := cbor.Marshal(rec)
	if err != nil {
		return IoError("encode journal", err)
	}

	f, err := db.root.OpenFile(db.journalName, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return IoError("create journal", err)
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		return IoError("write journal", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return IoError("sync journal", err)
	}
	return IoError("close journal", f.Close())
}

// applyTransaction performs §4.4 step 2: write the value (if any), the new
// header, and the new index at their final positions. Every write here is
// a plain positional overwrite, which is what makes replay idempotent.
func (db *DB) applyTransaction(rec *journalRecord) error {
	if rec.Operation == journalOpWrite {
		valueOffset := int64(rec.DataOffset) - int64(len(rec.Data))
		if _, err := db.writer.WriteAt(rec.Data, valueOffset); err != nil {
			return IoError("apply data", err)
		}
	}
	if _, err := db.writer.WriteAt(rec.Header, 0); err != nil {
		return IoError("apply header", err)
	}
	if _, err := db.writer.WriteAt(rec.Index, int64(rec.DataOffset)); err != nil {
		return IoError("apply index", err)
	}
	if db.config.SyncWrites {
		if err := db.writer.Sync(); err != nil {
			return IoError("sync apply", err)
		}
	}
	return nil
}

// commitTransaction performs §4.4 step 3: remove the journal. A missing
// journal at this point is not an error — commit itself may be the step
// that was interrupted and is now being retried.
func (db *DB) commitTransaction() error {
	err := db.root.Remove(db.journalName)
	if err != nil && !os.IsNotExist(err) {
		return IoError("remove journal", err)
	}
	return nil
}

// readJournal reads and decodes the pending journal, if any. A missing
// file returns (nil, nil). A file that exists but fails checksum or CBOR
// decoding returns a JournalCorrupt error — callers treat that the same
// as "no journal" (§4.4 failure modes).
func (db *DB) readJournal() (*journalRecord, error) {
	f, err := db.root.Open(db.journalName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, IoError("open journal", err)
	}
	defer f.Close()

	body, err := io.ReadAll(f)
	if err != nil {
		return nil, JournalCorruptError("read", err)
	}
	if len(body) == 0 {
		return nil, JournalCorruptError("empty journal", nil)
	}

	var rec journalRecord
	if err := cbor.Unmarshal(body, &rec); err != nil {
		return nil, JournalCorruptError("decode", err)
	}
	if rec.checksum() != rec.Checksum {
		return nil, JournalCorruptError("checksum mismatch", nil)
	}
	return &rec, nil
}

// recoverLocked implements §4.4 Recovery. Callers must hold the exclusive
// OS lock. A corrupt/truncated journal is logged and treated as absent,
// leaving the db image untouched; a valid journal is replayed and
// committed, then in-memory state is rebuilt from disk.
func (db *DB) recoverLocked() error {
	rec, err := db.readJournal()
	if err != nil {
		db.logger.Warn().Err(err).Msg("journal present but undecodable; treating as absent")
		return nil
	}
	if rec == nil {
		return nil
	}

	if err := db.applyTransaction(rec); err != nil {
		return err
	}
	if err := db.commitTransaction(); err != nil {
		return err
	}
	if err := db.reloadLocked(); err != nil {
		return err
	}
	db.logger.Info().Str("key", rec.Key).Str("op", rec.Operation).Msg("journal recovered")
	return nil
}
