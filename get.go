// Existence check, a cheap companion to Read that never touches the
// data region.
package jsonblite

// Exists reports whether key is present in the index.
func (db *DB) Exists(key string) (bool, error) {
	if key == "" {
		return false, InvalidKeyError("key must not be empty")
	}
	var exists bool
	err := db.withReadLock(func() error {
		_, exists = db.idx.get(key)
		return nil
	})
	return exists, err
}
