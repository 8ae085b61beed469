package term

import (
	lru "github.com/hashicorp/golang-lru"
)

// atomCacheSize bounds the number of distinct atom spellings kept around.
// Real traffic on a busy link repeats a handful of atoms constantly (the
// empty cookie atom used by SEND, "normal", monitor/demonitor control
// atoms, peer node names), so a small cache avoids reallocating the same
// strings on every decode.
const atomCacheSize = 1024

// AtomCache deduplicates decoded atom byte-strings into existing Atom
// values, bounded by an LRU so it cannot grow without limit if a hostile
// or buggy peer sends many distinct atoms.
type AtomCache struct {
	cache *lru.Cache
}

// NewAtomCache creates an AtomCache with the package default capacity.
func NewAtomCache() *AtomCache {
	c, err := lru.New(atomCacheSize)
	if err != nil {
		// lru.New only errors for a non-positive size, which
		// atomCacheSize never is.
		panic(err)
	}
	return &AtomCache{cache: c}
}

// Intern returns the cached Atom equal to raw, storing raw as the
// canonical instance on first sight.
func (c *AtomCache) Intern(raw []byte) Atom {
	key := string(raw)
	if v, ok := c.cache.Get(key); ok {
		return v.(Atom)
	}
	a := Atom(key)
	c.cache.Add(key, a)
	return a
}
