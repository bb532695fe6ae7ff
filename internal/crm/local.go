package crm

import (
	"fmt"
	"sync"
	"time"
)

// LocalContactStore keeps contacts in memory when the remote CRM is
// unreachable or unconfigured. Contacts are deduplicated by phone number.
type LocalContactStore struct {
	mu      sync.Mutex
	byPhone map[string]Contact
	now     func() time.Time
}

// NewLocalContactStore creates an empty fallback store.
func NewLocalContactStore() *LocalContactStore {
	return &LocalContactStore{
		byPhone: make(map[string]Contact),
		now:     time.Now,
	}
}

// Ensure returns the existing contact for the phone number or creates one.
func (s *LocalContactStore) Ensure(in NewContactInput) Contact {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.byPhone[in.Phone]; ok {
		return c
	}

	name := in.Name
	if name == "" {
		name = "WhatsApp Customer"
	}
	c := Contact{
		ID:    fmt.Sprintf("local_%d", s.now().UnixMilli()),
		Name:  name,
		Phone: in.Phone,
		Email: in.Email,
		Local: true,
	}
	s.byPhone[in.Phone] = c
	return c
}

// Lookup returns the contact for a phone number, if present.
func (s *LocalContactStore) Lookup(phone string) (Contact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byPhone[phone]
	return c, ok
}

// Len reports how many fallback contacts are held.
func (s *LocalContactStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byPhone)
}
