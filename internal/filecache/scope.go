package filecache

import (
	"context"

	gocache "github.com/patrickmn/go-cache"
)

// Scope is an in-memory shadow of the disk cache for one logical request or
// scan pass. Entries never expire; the scope is dropped when the pass ends.
type Scope struct {
	items *gocache.Cache
}

// NewScope returns an empty scope.
func NewScope() *Scope {
	return &Scope{items: gocache.New(gocache.NoExpiration, 0)}
}

// Get returns the document stored for key.
func (s *Scope) Get(key Key) (any, bool) {
	if s == nil {
		return nil, false
	}
	return s.items.Get(key.Path())
}

// Set stores doc for key.
func (s *Scope) Set(key Key, doc any) {
	if s == nil {
		return
	}
	s.items.Set(key.Path(), doc, gocache.NoExpiration)
}

// Len reports how many documents the scope holds.
func (s *Scope) Len() int {
	if s == nil {
		return 0
	}
	return s.items.ItemCount()
}

type scopeKey struct{}

// WithScope attaches s to ctx.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the scope attached to ctx, or nil.
func ScopeFrom(ctx context.Context) *Scope {
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	return s
}
