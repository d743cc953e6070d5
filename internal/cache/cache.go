// Package cache is the process-local response cache for dashboard reads.
// Entries expire lazily on Get; nothing sweeps in the background.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"slices"
	"strings"
	"time"
)

const (
	DefaultTTL        = 300 * time.Second
	DefaultMaxEntries = 1000
)

// Stats is a point-in-time view of the cache.
type Stats struct {
	Items     int      `json:"items"`
	Keys      []string `json:"keys"`
	Hits      uint64   `json:"hits"`
	Misses    uint64   `json:"misses"`
	Evictions uint64   `json:"evictions"`
}

// OwnerPrefix is the key prefix shared by every entry of one owner.
func OwnerPrefix(ownerID string) string {
	return "owner:" + url.QueryEscape(ownerID) + ":"
}

// Key derives a cache key from the request identity. Query parameters are
// sorted by name and value, so parameter order never matters. Headers and
// bodies are not part of the key.
func Key(method, path string, query url.Values, ownerID string) string {
	names := make([]string, 0, len(query))
	for k := range query {
		names = append(names, k)
	}
	slices.Sort(names)

	var sb strings.Builder
	sb.WriteString(strings.ToUpper(method))
	sb.WriteByte('|')
	sb.WriteString(path)
	for _, k := range names {
		vals := slices.Clone(query[k])
		slices.Sort(vals)
		for _, v := range vals {
			sb.WriteByte('|')
			sb.WriteString(url.QueryEscape(k))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(v))
		}
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return OwnerPrefix(ownerID) + hex.EncodeToString(sum[:16])
}

// ownerPrefixOf returns the owner prefix of key, or "" when key is not an
// owner key. Escaped owner ids never contain ':'.
func ownerPrefixOf(key string) string {
	const head = "owner:"
	if !strings.HasPrefix(key, head) {
		return ""
	}
	i := strings.IndexByte(key[len(head):], ':')
	if i < 0 {
		return ""
	}
	return key[:len(head)+i+1]
}

// GetOrLoad returns the cached value for key or calls load and caches its
// result. Errors are never cached. A result is dropped when an invalidation
// covering key ran during load. A nil cache always loads.
func GetOrLoad[T any](c *ResponseCache, key string, ttl time.Duration, load func() (T, error)) (value T, hit bool, err error) {
	var gen uint64
	if c != nil {
		if v, ok := c.Get(key); ok {
			if typed, ok := v.(T); ok {
				return typed, true, nil
			}
		}
		gen = c.Generation(key)
	}
	value, err = load()
	if err != nil {
		return value, false, err
	}
	if c != nil {
		c.SetIfCurrent(key, value, ttl, gen)
	}
	return value, false, nil
}
