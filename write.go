// Write operation (§4.6).
package jsonblite

import (
	"github.com/fxamacker/cbor/v2"
)

// Write encodes value as CBOR and stores it under key, creating the key if
// absent or appending a new value and superseding the old one if present.
// The data region is append-only: an overwrite never reuses the old
// value's bytes, which only vacuum reclaims.
func (db *DB) Write(key string, value any) error {
	if key == "" {
		return InvalidKeyError("key must not be empty")
	}
	return db.withWriteLock(func() error {
		return db.writeLocked(key, value)
	})
}

// writeLocked performs a write against the in-memory image. Callers must
// hold the exclusive OS lock and db.mu (i.e. be inside withWriteLock).
func (db *DB) writeLocked(key string, value any) error {
	valueBytes, err := cbor.Marshal(value)
	if err != nil {
		return IoError("encode value", err)
	}

	offset := db.tail
	newTail := offset + int64(len(valueBytes))

	next := db.idx.clone()
	next.set(key, indexEntry{Offset: uint64(offset), Size: uint64(len(valueBytes))})
	idxBytes, err := next.MarshalCBOR()
	if err != nil {
		return IoError("encode index", err)
	}

	h := &header{
		Version:      currentVersion,
		DataSize:     uint64(newTail - HeaderSize),
		IndexSize:    uint32(len(idxBytes)),
		LastModified: db.nextTimestamp(),
		LastVacuum:   db.hdr.LastVacuum,
	}

	rec := &journalRecord{
		Key:        key,
		Operation:  journalOpWrite,
		Data:       valueBytes,
		Index:      idxBytes,
		Header:     h.encode(),
		DataOffset: uint64(newTail),
	}
	return db.commitAndApply(rec, h, next, newTail)
}

// commitAndApply stages, applies, and commits a transaction, then updates
// the in-memory image to match — the shared tail of both Write and Delete.
func (db *DB) commitAndApply(rec *journalRecord, h *header, idx *orderedIndex, tail int64) error {
	if err := db.beginTransaction(rec); err != nil {
		return err
	}
	if err := db.applyTransaction(rec); err != nil {
		return err
	}
	if err := db.commitTransaction(); err != nil {
		return err
	}
	db.hdr = h
	db.idx = idx
	db.tail = tail
	return nil
}
