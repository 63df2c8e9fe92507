// Key enumeration (§4.6).
package jsonblite

// Keys returns every key currently in the index, in insertion order.
func (db *DB) Keys() ([]string, error) {
	var keys []string
	err := db.withReadLock(func() error {
		keys = db.idx.keyList()
		return nil
	})
	return keys, err
}
