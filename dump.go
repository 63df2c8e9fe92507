// Dump renders the whole database as a single JSON document, for
// inspection and export (§4.6). Like the index's own wire format, key
// order in the "data" object follows insertion order — encoding/json
// (and goccy/go-json) only ever marshal a Go map in sorted-key order, so
// that object is built by hand, one key/value pair at a time, rather
// than through a map value.
package jsonblite

import (
	"bytes"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	json "github.com/goccy/go-json"
)

// Dump returns the database as a JSON document:
//
//	{ "meta": { "version", "data_size", "index_size", "last_vacuum" },
//	  "data": { <key>: <json-of-value>, ... } }
//
// last_vacuum is emitted as a decimal string, since its range exceeds
// safe JSON integer precision. A value that can't be represented in
// JSON (NaN, Infinity, a map with non-string keys, ...) is omitted from
// "data" rather than failing the whole dump.
func (db *DB) Dump() ([]byte, error) {
	var out []byte
	err := db.withReadLock(func() error {
		var buf bytes.Buffer
		buf.WriteString(`{"meta":{"version":`)
		buf.WriteString(strconv.Itoa(int(db.hdr.Version)))
		buf.WriteString(`,"data_size":`)
		buf.WriteString(strconv.FormatUint(db.hdr.DataSize, 10))
		buf.WriteString(`,"index_size":`)
		buf.WriteString(strconv.FormatUint(uint64(db.hdr.IndexSize), 10))
		buf.WriteString(`,"last_vacuum":"`)
		buf.WriteString(strconv.FormatInt(db.hdr.LastVacuum, 10))
		buf.WriteString(`"},"data":{`)

		first := true
		for _, key := range db.idx.keyList() {
			e, _ := db.idx.get(key)
			raw := make([]byte, e.Size)
			if _, err := db.reader.ReadAt(raw, int64(e.Offset)); err != nil {
				return IoError("read value", err)
			}

			var value any
			if err := cbor.Unmarshal(raw, &value); err != nil {
				return CorruptFileError("dump: decode value for " + key + ": " + err.Error())
			}

			valueJSON, err := json.Marshal(value)
			if err != nil {
				db.logger.Warn().Str("key", key).Err(err).Msg("dump: value not representable in JSON, omitting")
				continue
			}

			keyJSON, err := json.Marshal(key)
			if err != nil {
				return IoError("encode key", err)
			}

			if !first {
				buf.WriteByte(',')
			}
			first = false
			buf.Write(keyJSON)
			buf.WriteByte(':')
			buf.Write(valueJSON)
		}

		buf.WriteString(`}}`)
		out = buf.Bytes()
		return nil
	})
	return out, err
}
