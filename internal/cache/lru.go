package cache

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUProvider keeps entries in process memory, bounded by count and age.
// The TTL is fixed at construction; the per-call ttl passed to Set is ignored.
type LRUProvider struct {
	lru *expirable.LRU[string, []byte]
}

// NewLRUProvider creates an in-memory provider holding at most size entries.
func NewLRUProvider(size int, ttl time.Duration) (*LRUProvider, error) {
	if size <= 0 {
		return nil, errors.New("lru cache size must be positive")
	}
	return &LRUProvider{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}, nil
}

// Get returns a copy of the cached bytes or ErrCacheMiss.
func (p *LRUProvider) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	value, ok := p.lru.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), value...), nil
}

// Set stores a copy of value.
func (p *LRUProvider) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.lru.Add(key, append([]byte(nil), value...))
	return nil
}

// Len reports the number of live entries.
func (p *LRUProvider) Len() int { return p.lru.Len() }

// Close purges the cache.
func (p *LRUProvider) Close() error {
	p.lru.Purge()
	return nil
}
