// Batch applies several writes and deletes under a single lock
// acquisition, for callers who would otherwise pay per-operation lock
// overhead one key at a time. Each op still runs its own journal
// transaction.
package jsonblite

// BatchOp is one operation within a Batch call: either a write (Delete
// false, Value set) or a delete (Delete true).
type BatchOp struct {
	Key    string
	Value  any
	Delete bool
}

// Batch runs every op in slice order against a single exclusive lock
// hold. Ops are validated up front; if any key is empty, nothing is
// written.
func (db *DB) Batch(ops ...BatchOp) error {
	for _, op := range ops {
		if op.Key == "" {
			return InvalidKeyError("key must not be empty")
		}
	}

	return db.withWriteLock(func() error {
		for _, op := range ops {
			if op.Delete {
				if err := db.deleteLocked(op.Key); err != nil {
					return err
				}
				continue
			}
			if err := db.writeLocked(op.Key, op.Value); err != nil {
				return err
			}
		}
		return nil
	})
}
