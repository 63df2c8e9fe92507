// Vacuum reclaims space occupied by superseded and deleted values.
//
// Unlike Write and Delete, which only ever append, Vacuum rebuilds the
// file from scratch: every live value is read through the current index
// and rewritten contiguously into a temp file, which then atomically
// replaces the original. The OS lock is held across the whole swap, so
// no other handle observes a half-written file.
package jsonblite

import (
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// Vacuum rewrites the file keeping only live values, discarding the dead
// bytes left behind by overwrites and deletes.
func (db *DB) Vacuum() error {
	return db.withWriteLock(func() error {
		return db.vacuumLocked()
	})
}

func (db *DB) vacuumLocked() error {
	tmp, err := db.root.Create(db.tempName)
	if err != nil {
		return IoError("create temp", err)
	}

	if err := db.rebuildInto(tmp); err != nil {
		tmp.Close()
		db.root.Remove(db.tempName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return IoError("sync temp", err)
	}
	if err := tmp.Close(); err != nil {
		return IoError("close temp", err)
	}

	// natefinch/atomic needs real filesystem paths; os.Root's handles are
	// sandboxed and don't expose one, which is why the directory path is
	// kept alongside root.
	tempPath := filepath.Join(db.dir, db.tempName)
	finalPath := filepath.Join(db.dir, db.name)
	if err := atomic.ReplaceFile(tempPath, finalPath); err != nil {
		return IoError("replace", err)
	}

	db.reader.Close()
	db.writer.Close()

	reader, err := db.root.OpenFile(db.name, os.O_RDONLY, 0o644)
	if err != nil {
		return IoError("reopen reader", err)
	}
	writer, err := db.root.OpenFile(db.name, os.O_RDWR, 0o644)
	if err != nil {
		reader.Close()
		return IoError("reopen writer", err)
	}
	db.reader = reader
	db.writer = writer
	db.lock.setFile(writer)

	if err := db.reloadLocked(); err != nil {
		return err
	}
	db.logger.Info().Int("keys", db.idx.len()).Msg("vacuum complete")
	return nil
}

// rebuildInto writes a fresh header, data region, and index to tmp,
// copying only values still reachable from the live index.
func (db *DB) rebuildInto(tmp *os.File) error {
	if _, err := tmp.Write(make([]byte, HeaderSize)); err != nil {
		return IoError("write placeholder", err)
	}

	next := newOrderedIndex()
	offset := int64(HeaderSize)
	buf := make([]byte, 0, db.config.ReadBuffer)

	for _, key := range db.idx.keyList() {
		e, _ := db.idx.get(key)
		if cap(buf) < int(e.Size) {
			buf = make([]byte, e.Size)
		}
		value := buf[:e.Size]
		if _, err := db.reader.ReadAt(value, int64(e.Offset)); err != nil {
			return IoError("read value", err)
		}
		if _, err := tmp.WriteAt(value, offset); err != nil {
			return IoError("write value", err)
		}
		next.set(key, indexEntry{Offset: uint64(offset), Size: e.Size})
		offset += int64(e.Size)
	}

	idxBytes, err := next.MarshalCBOR()
	if err != nil {
		return IoError("encode index", err)
	}
	if _, err := tmp.WriteAt(idxBytes, offset); err != nil {
		return IoError("write index", err)
	}

	ts := db.nextTimestamp()
	h := &header{
		Version:      currentVersion,
		DataSize:     uint64(offset - HeaderSize),
		IndexSize:    uint32(len(idxBytes)),
		LastModified: ts,
		LastVacuum:   ts,
	}
	if _, err := tmp.WriteAt(h.encode(), 0); err != nil {
		return IoError("write header", err)
	}
	return nil
}
