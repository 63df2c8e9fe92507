// Core database type and lifecycle.
//
// DB is a handle onto one on-disk file: a 36-byte header, an append-only
// data region, and a CBOR-encoded index placed immediately after it (§3).
// Opening a handle reads that state into memory; every operation
// re-validates it against the file before acting, because another process
// (or another handle in this one) may have mutated the file since the last
// look (§4.5).
package jsonblite

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds runtime options for an open database. There is no external
// configuration file (§6) — every behavioural knob lives here.
type Config struct {
	// Verbose turns on informational logging at component boundaries
	// (open, recovery, external-change sync, vacuum). Default: off.
	Verbose bool

	// ReadBuffer is the initial capacity of the buffer Vacuum uses to copy
	// values into the rebuilt file; larger values grow it. Default: 64KiB.
	ReadBuffer int

	// SyncWrites calls fsync after every durable write, for callers who
	// want stronger-than-journal-commit durability. Default: off.
	SyncWrites bool
}

const defaultReadBuffer = 64 * 1024

func (c *Config) applyDefaults() {
	if c.ReadBuffer <= 0 {
		c.ReadBuffer = defaultReadBuffer
	}
}

// DB is an open handle onto one jsonblite file.
type DB struct {
	root *os.Root // sandboxed access to the file's directory
	name string   // database filename within root
	dir  string   // directory path, kept for the vacuum rename step

	journalName string
	tempName    string

	reader *os.File
	writer *os.File
	lock   *fileLock

	config Config
	logger zerolog.Logger

	mu     sync.Mutex // guards hdr/idx/tail against concurrent Go-routine misuse
	hdr    *header
	idx    *orderedIndex
	tail   int64 // data_tail: 36 + data_size, also where the index begins

	closed bool
}

// Open opens or creates the database file at path.
func Open(path string, config Config) (*DB, error) {
	config.applyDefaults()

	dir := filepath.Dir(path)
	name := filepath.Base(path)

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, IoError("open directory", err)
	}

	db := &DB{
		root:        root,
		name:        name,
		dir:         dir,
		journalName: name + ".journal",
		tempName:    name + ".temp",
		config:      config,
		logger:      newLogger(config),
		lock:        &fileLock{},
	}

	_, statErr := root.Stat(name)
	fresh := os.IsNotExist(statErr)

	if fresh {
		db.logger.Info().Str("path", path).Msg("initializing new database")
		if err := db.createFresh(); err != nil {
			root.Close()
			return nil, err
		}
	}

	reader, err := root.OpenFile(name, os.O_RDONLY, 0o644)
	if err != nil {
		root.Close()
		return nil, IoError("open reader", err)
	}
	writer, err := root.OpenFile(name, os.O_RDWR, 0o644)
	if err != nil {
		reader.Close()
		root.Close()
		return nil, IoError("open writer", err)
	}
	db.reader = reader
	db.writer = writer
	db.lock.setFile(writer)

	if err := db.lock.Lock(lockExclusive); err != nil {
		db.closeHandles()
		return nil, err
	}
	defer db.lock.Unlock()

	if !fresh {
		exists, err := db.journalExists()
		if err != nil {
			db.closeHandles()
			return nil, err
		}
		if exists {
			db.logger.Info().Msg("pending journal found at open; recovering")
			if err := db.recoverLocked(); err != nil {
				db.closeHandles()
				return nil, err
			}
		}
	}

	if db.hdr == nil {
		if err := db.reloadLocked(); err != nil {
			db.closeHandles()
			return nil, err
		}
	}

	db.logger.Info().Str("path", path).Int("keys", db.idx.len()).Msg("database open")
	return db, nil
}

// createFresh writes a valid empty image for a path that does not yet
// exist: header, zero-length data region, encoded empty index (§4.7).
func (db *DB) createFresh() error {
	f, err := db.root.Create(db.name)
	if err != nil {
		return IoError("create", err)
	}
	defer f.Close()

	emptyIdx := newOrderedIndex()
	idxBytes, err := emptyIdx.MarshalCBOR()
	if err != nil {
		return IoError("encode empty index", err)
	}

	h := &header{
		Version:   currentVersion,
		DataSize:  0,
		IndexSize: uint32(len(idxBytes)),
	}

	if _, err := f.Write(h.encode()); err != nil {
		return IoError("write header", err)
	}
	if _, err := f.Write(idxBytes); err != nil {
		return IoError("write index", err)
	}
	if err := f.Sync(); err != nil {
		return IoError("sync", err)
	}
	return nil
}

// reloadLocked rebuilds the in-memory header and index from disk. It only
// reads the file, so callers must hold the OS lock, shared or exclusive.
func (db *DB) reloadLocked() error {
	info, err := db.reader.Stat()
	if err != nil {
		return IoError("stat", err)
	}

	hdr, err := readHeader(db.reader)
	if err != nil {
		return err
	}

	dataTail := hdr.dataTail()
	total := dataTail + int64(hdr.IndexSize)
	if info.Size() < total {
		return CorruptFileError("file shorter than declared header+data+index")
	}

	idxBuf := make([]byte, hdr.IndexSize)
	if hdr.IndexSize > 0 {
		if _, err := db.reader.ReadAt(idxBuf, dataTail); err != nil {
			return IoError("read index", err)
		}
	}
	idx, err := decodeIndex(idxBuf)
	if err != nil {
		return err
	}
	for _, k := range idx.keyList() {
		e, _ := idx.get(k)
		if int64(e.Offset) < HeaderSize || int64(e.Offset)+int64(e.Size) > dataTail {
			return CorruptFileError("index entry out of bounds")
		}
	}

	db.hdr = hdr
	db.idx = idx
	db.tail = dataTail
	return nil
}

// journalExists reports whether a pending journal file is present.
func (db *DB) journalExists() (bool, error) {
	_, err := db.root.Stat(db.journalName)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, IoError("stat journal", err)
}

// syncLocked implements C5: optionally recover a pending journal, then
// reload state if another handle advanced last_modified. Callers must
// hold db.mu and the OS lock: exclusive when recoverIfJournal is true,
// shared otherwise.
func (db *DB) syncLocked(recoverIfJournal bool) error {
	if recoverIfJournal {
		exists, err := db.journalExists()
		if err != nil {
			return err
		}
		if exists {
			db.logger.Info().Msg("pending journal found; recovering")
			if err := db.recoverLocked(); err != nil {
				return err
			}
		}
	}

	lastModified, err := readLastModified(db.reader)
	if err != nil {
		return err
	}
	if lastModified != db.hdr.LastModified {
		db.logger.Info().Msg("external change detected; reloading from disk")
		return db.reloadLocked()
	}
	return nil
}

// recoverBeforeRead runs recovery (if a journal is pending) under its own
// exclusive lock acquisition, released before the caller takes the shared
// lock a read operation uses. Recovery itself requires an exclusive lock;
// this is how a reader gets that without holding an exclusive lock for the
// whole read (§4.5, Open Question 1).
func (db *DB) recoverBeforeRead() error {
	if err := db.lock.Lock(lockExclusive); err != nil {
		return err
	}
	defer db.lock.Unlock()

	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.checkOpen(); err != nil {
		return err
	}

	exists, err := db.journalExists()
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	db.logger.Info().Msg("pending journal found before read; recovering")
	return db.recoverLocked()
}

// withReadLock runs fn with the shared OS lock and the in-process mutex
// held, after first running recoverBeforeRead. This is the skeleton every
// read-only operation (read, keys, dump, Stats) follows.
func (db *DB) withReadLock(fn func() error) error {
	db.mu.Lock()
	closed := db.closed
	db.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if err := db.recoverBeforeRead(); err != nil {
		return err
	}
	if err := db.lock.Lock(lockShared); err != nil {
		return err
	}
	defer db.lock.Unlock()

	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.checkOpen(); err != nil {
		return err
	}
	if err := db.syncLocked(false); err != nil {
		return err
	}
	return fn()
}

// withWriteLock runs fn with the exclusive OS lock and the in-process
// mutex held, after syncing (recovering a pending journal if present).
// This is the skeleton every mutating operation (write, delete, vacuum)
// follows (§4.6).
func (db *DB) withWriteLock(fn func() error) error {
	if err := db.lock.Lock(lockExclusive); err != nil {
		return err
	}
	defer db.lock.Unlock()

	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.checkOpen(); err != nil {
		return err
	}
	if err := db.syncLocked(true); err != nil {
		return err
	}
	return fn()
}

// nextTimestamp returns a timestamp strictly greater than the cached
// last_modified, falling back to cached+1 when wall-clock time hasn't
// advanced (§4.6). Callers must hold db.mu.
func (db *DB) nextTimestamp() int64 {
	now := time.Now().UnixMilli()
	if now > db.hdr.LastModified {
		return now
	}
	return db.hdr.LastModified + 1
}

// Close releases the handle's resources. The file persists.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true
	db.closeHandles()
	db.logger.Info().Str("name", db.name).Msg("database closed")
	return nil
}

func (db *DB) closeHandles() {
	db.lock.setFile(nil)
	if db.reader != nil {
		db.reader.Close()
	}
	if db.writer != nil {
		db.writer.Close()
	}
	if db.root != nil {
		db.root.Close()
	}
}

func (db *DB) checkOpen() error {
	if db.closed {
		return ErrClosed
	}
	return nil
}

// Stats reports header-level metadata without performing a full dump.
type Stats struct {
	Version      uint8
	DataSize     uint64
	IndexSize    uint32
	LastModified int64
	LastVacuum   int64
	Keys         int
}

// Stats returns a snapshot of the current header and key count.
func (db *DB) Stats() (Stats, error) {
	var out Stats
	err := db.withReadLock(func() error {
		out = Stats{
			Version:      db.hdr.Version,
			DataSize:     db.hdr.DataSize,
			IndexSize:    db.hdr.IndexSize,
			LastModified: db.hdr.LastModified,
			LastVacuum:   db.hdr.LastVacuum,
			Keys:         db.idx.len(),
		}
		return nil
	})
	return out, err
}

func newLogger(config Config) zerolog.Logger {
	if !config.Verbose {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Str("component", "jsonblite").Logger()
}
