// Delete operation (§4.6).
package jsonblite

// Delete removes key from the index. It is idempotent: deleting an
// absent key is not an error and still advances last_modified, the
// reference behavior for an ambiguity §9 calls out explicitly (some
// implementations no-op instead; this one always proceeds). The value's
// bytes in the data region are left in place — append-only, like a
// write, reclaimed only by Vacuum — and only the index and header are
// rewritten.
func (db *DB) Delete(key string) error {
	if key == "" {
		return InvalidKeyError("key must not be empty")
	}
	return db.withWriteLock(func() error {
		return db.deleteLocked(key)
	})
}

// deleteLocked performs a delete against the in-memory image. Callers
// must hold the exclusive OS lock and db.mu (i.e. be inside
// withWriteLock).
func (db *DB) deleteLocked(key string) error {
	next := db.idx.clone()
	next.delete(key)
	idxBytes, err := next.MarshalCBOR()
	if err != nil {
		return IoError("encode index", err)
	}

	h := &header{
		Version:      currentVersion,
		DataSize:     db.hdr.DataSize,
		IndexSize:    uint32(len(idxBytes)),
		LastModified: db.nextTimestamp(),
		LastVacuum:   db.hdr.LastVacuum,
	}

	rec := &journalRecord{
		Key:        key,
		Operation:  journalOpDelete,
		Index:      idxBytes,
		Header:     h.encode(),
		DataOffset: uint64(db.tail),
	}
	return db.commitAndApply(rec, h, next, db.tail)
}
