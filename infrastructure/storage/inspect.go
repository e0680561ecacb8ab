package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Record is a human readable view of one badger entry, used by the debug
// endpoint and the offline inspect command.
type Record struct {
	Key     string `json:"key"`
	Kind    string `json:"kind"`
	Created string `json:"created"`
	Detail  string `json:"detail"`
	Size    int    `json:"size"`
}

// Describe decodes val according to the key layout. Unknown or corrupt
// entries are reported as RAW rather than failing the scan.
func Describe(key string, val []byte) Record {
	kind, _, _ := strings.Cut(key, ":")
	rec := Record{Key: key, Kind: strings.ToUpper(kind), Created: "--:--:--", Size: len(val)}

	switch {
	case strings.HasPrefix(key, "msg:"):
		if m, err := decodeMessage(val); err == nil {
			rec.Created = m.CreatedAt.Format(time.TimeOnly)
			rec.Detail = fmt.Sprintf("#%d %s: %s", m.Sequence, m.SenderName, m.Content)
			return rec
		}
	case strings.HasPrefix(key, roomPrefix):
		if r, err := decodeRoom(val); err == nil {
			rec.Created = r.CreatedAt.Format(time.TimeOnly)
			rec.Detail = fmt.Sprintf("%q by user %d", r.Name, r.CreatedBy)
			return rec
		}
	case strings.HasPrefix(key, userPrefix):
		if u, err := decodeUser(val); err == nil {
			rec.Created = u.CreatedAt.Format(time.TimeOnly)
			rec.Detail = fmt.Sprintf("%s <%s>", u.Username, u.Email)
			return rec
		}
	case strings.HasPrefix(key, "msg-seq:"), strings.HasPrefix(key, "id-seq:"):
		if v, err := decodeCounter(val); err == nil {
			rec.Detail = fmt.Sprintf("last=%d", v)
			return rec
		}
	case strings.HasPrefix(key, "member:"), strings.HasPrefix(key, "user-room:"):
		rec.Detail = "index"
		return rec
	case strings.HasPrefix(key, "user-email:"):
		rec.Detail = "-> user " + string(val)
		return rec
	}

	rec.Kind = "RAW"
	rec.Detail = fmt.Sprintf("Size: %d bytes", len(val))
	return rec
}

// Scan describes every entry under prefix, in key order, stopping after
// limit entries when limit is positive.
func Scan(db *badger.DB, prefix string, limit int) ([]Record, error) {
	var records []Record
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if limit > 0 && len(records) >= limit {
				return nil
			}
			item := it.Item()
			key := string(item.Key())
			if err := item.Value(func(val []byte) error {
				records = append(records, Describe(key, val))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return records, err
}
