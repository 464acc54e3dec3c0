package identity

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// Storage keys. Tab storage holds the session id and page counter, durable
// storage holds the visitor id.
const (
	SessionKey   = "brand_session_id"
	VisitorKey   = "brand_visitor_id"
	PageCountKey = "brand_page_count"
)

// Storage is a string key/value scope: tab-lifetime or browser-lifetime.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// MemoryStorage is a Storage safe for concurrent use.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStorage returns an empty storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (s *MemoryStorage) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryStorage) Set(key, value string) {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
}

// Resolver derives session and visitor identity from the two storages.
// Each method is independent; callers must call NextPageCount exactly once
// per navigation.
type Resolver struct {
	tab     Storage
	durable Storage
	newID   func() string
}

// NewResolver builds a resolver generating random UUID tokens.
func NewResolver(tab, durable Storage) *Resolver {
	return &Resolver{tab: tab, durable: durable, newID: uuid.NewString}
}

// SessionID returns the tab's session token, creating it on first use.
func (r *Resolver) SessionID() string {
	if id, ok := r.tab.Get(SessionKey); ok && id != "" {
		return id
	}
	id := r.newID()
	r.tab.Set(SessionKey, id)
	return id
}

// IsReturningVisitor reports whether a visitor token existed before this
// call. The first call in a brand-new browser writes the token and returns
// false.
func (r *Resolver) IsReturningVisitor() bool {
	if id, ok := r.durable.Get(VisitorKey); ok && id != "" {
		return true
	}
	r.durable.Set(VisitorKey, r.newID())
	return false
}

// NextPageCount increments the tab counter and returns the new value, so the
// first navigation of a session is page 1.
func (r *Resolver) NextPageCount() int {
	n := r.PageCount() + 1
	r.tab.Set(PageCountKey, strconv.Itoa(n))
	return n
}

// PageCount reads the tab counter without changing it.
func (r *Resolver) PageCount() int {
	raw, ok := r.tab.Get(PageCountKey)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
