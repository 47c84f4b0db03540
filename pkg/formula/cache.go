package formula

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"sync/atomic"
)

// Key identifies a token list by content. Equal token lists have equal keys.
func Key(tokens []Token) string {
	h := sha256.New()
	var n [binary.MaxVarintLen64]byte
	str := func(s string) {
		h.Write(n[:binary.PutUvarint(n[:], uint64(len(s)))])
		h.Write([]byte(s))
	}
	for _, tok := range tokens {
		h.Write([]byte{byte(tok.Kind), byte(tok.Side)})
		str(tok.Symbol)
		str(tok.Display)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Cache holds parsed trees by Key. Storing is idempotent: a tree for a key is
// fully determined by the key, so racing writers store equivalent trees and
// either may win. Once capacity is reached new trees are not stored.
type Cache struct {
	trees    sync.Map
	size     atomic.Int64
	capacity int64
}

// NewCache returns a cache bounded to capacity trees.
func NewCache(capacity int) *Cache {
	return &Cache{capacity: int64(capacity)}
}

// Get returns the cached tree for key. Cached trees are shared and must not
// be modified.
func (c *Cache) Get(key string) (*Tree, bool) {
	v, ok := c.trees.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*Tree), true
}

// Put stores t under key unless the cache is full. It returns the tree held
// for key afterwards, which may be one stored concurrently by another caller.
func (c *Cache) Put(key string, t *Tree) *Tree {
	if c.size.Load() >= c.capacity {
		if cur, ok := c.Get(key); ok {
			return cur
		}
		return t
	}
	v, loaded := c.trees.LoadOrStore(key, t)
	if !loaded {
		c.size.Add(1)
	}
	return v.(*Tree)
}

// Len returns the number of cached trees.
func (c *Cache) Len() int {
	return int(c.size.Load())
}
