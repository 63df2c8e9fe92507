// Read operation (§4.6).
package jsonblite

import (
	"github.com/fxamacker/cbor/v2"
)

// Read looks up key and decodes its stored value into out, which must be
// a pointer (or nil, to check presence only without decoding).
func (db *DB) Read(key string, out any) error {
	if key == "" {
		return InvalidKeyError("key must not be empty")
	}

	var value []byte
	err := db.withReadLock(func() error {
		e, ok := db.idx.get(key)
		if !ok {
			return ErrNotFound
		}
		value = make([]byte, e.Size)
		if _, err := db.reader.ReadAt(value, int64(e.Offset)); err != nil {
			return IoError("read value", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return cbor.Unmarshal(value, out)
}
