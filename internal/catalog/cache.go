package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/peterbourgon/diskv/v3"
)

type cacheEntry struct {
	FetchedAt time.Time `json:"fetched_at"`
	Records   []Record  `json:"records"`
}

// Cached serves repeated lookups from disk until they expire. Failed lookups
// and lookups without records are never cached, so a record catalogued later
// is found on the next try.
type Cached struct {
	id    string
	inner Lookup
	store *diskv.Diskv
	ttl   time.Duration
	now   func() time.Time
}

var _ Lookup = (*Cached)(nil)

// NewCached wraps inner with an on-disk cache rooted at dir.
func NewCached(id string, inner Lookup, dir string, ttl time.Duration) *Cached {
	flatTransform := func(s string) []string { return []string{} }
	return &Cached{
		id:    id,
		inner: inner,
		store: diskv.New(diskv.Options{
			BasePath:     dir,
			Transform:    flatTransform,
			CacheSizeMax: 1024 * 1024,
		}),
		ttl: ttl,
		now: time.Now,
	}
}

// Find returns a fresh cached answer or delegates to the wrapped lookup.
func (c *Cached) Find(ctx context.Context, field, value string) ([]Record, error) {
	key := c.key(field, value)
	if c.store.Has(key) {
		if raw, err := c.store.Read(key); err == nil {
			var entry cacheEntry
			if err := json.Unmarshal(raw, &entry); err == nil && c.now().Sub(entry.FetchedAt) < c.ttl {
				return entry.Records, nil
			}
		}
	}

	records, err := c.inner.Find(ctx, field, value)
	if err != nil || len(records) == 0 {
		return records, err
	}
	if raw, err := json.Marshal(cacheEntry{FetchedAt: c.now().UTC(), Records: records}); err == nil {
		// a failed cache write only costs a future round trip
		_ = c.store.Write(key, raw)
	}
	return records, nil
}

// Purge removes every cached entry.
func (c *Cached) Purge() error {
	return c.store.EraseAll()
}

func (c *Cached) key(field, value string) string {
	sum := sha256.Sum256([]byte(c.id + "\x00" + field + "\x00" + value))
	return hex.EncodeToString(sum[:])
}
