// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package signin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/fedsignin/native"
)

const (
	// DefaultBindingTTL is how long a persisted session can be reattached.
	DefaultBindingTTL = 10 * time.Minute

	// DefaultBindingExpirySkew defines a default time skew when checking a
	// Binding's expiration.
	DefaultBindingExpirySkew = 1 * time.Second
)

// Binding is the durable form of a sign-in session. It holds what's needed
// to reattach the session's request codes after the hosting process was
// recreated while native UI was showing.
type Binding struct {
	// Key identifies the orchestrator the binding belongs to.
	Key string

	SessionID string
	Nonce     string

	ResolutionRequestCode int
	ConsentRequestCode    int

	Scopes            []string
	Target            string
	RememberLastLogin bool

	Phase Phase

	// RecoveryStatus is the status being resolved while Phase is
	// PhaseErrorResolutionPending.
	RecoveryStatus native.Status

	// PlatformState is the opaque state of the consent launched while Phase
	// is PhaseConsentPending. It's handed back to the platform on reattach.
	PlatformState []byte

	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether b expired at now, allowing for skew.
func (b *Binding) IsExpired(now time.Time, skew time.Duration) bool {
	return b.ExpiresAt.Before(now.Add(skew))
}

// BindingStore persists Bindings. Implementations must be safe for
// concurrent use.
type BindingStore interface {
	// Save creates or replaces the binding for b.Key.
	Save(ctx context.Context, b *Binding) error

	// Load returns the binding for key, or ErrNotFound.
	Load(ctx context.Context, key string) (*Binding, error)

	// Delete removes the binding for key if it belongs to sessionID. It's
	// not an error if there's no such binding.
	Delete(ctx context.Context, key, sessionID string) error
}

// MemoryStore is an in-memory BindingStore. It only helps with reattaching
// within one process; use a durable store to survive process restarts.
type MemoryStore struct {
	mu       sync.Mutex
	bindings map[string]Binding
}

// ensure that MemoryStore implements the BindingStore interface
var _ BindingStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bindings: map[string]Binding{}}
}

// Save implements BindingStore.
func (s *MemoryStore) Save(_ context.Context, b *Binding) error {
	const op = "signin.(MemoryStore).Save"
	if b == nil {
		return fmt.Errorf("%s: binding is nil: %w", op, ErrNilParameter)
	}
	if b.Key == "" {
		return fmt.Errorf("%s: binding key is empty: %w", op, ErrInvalidParameter)
	}
	cp := *b
	cp.Scopes = append([]string(nil), b.Scopes...)
	cp.PlatformState = cloneBytes(b.PlatformState)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[b.Key] = cp
	return nil
}

// Load implements BindingStore.
func (s *MemoryStore) Load(_ context.Context, key string) (*Binding, error) {
	const op = "signin.(MemoryStore).Load"
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bindings[key]
	if !ok {
		return nil, fmt.Errorf("%s: binding %q: %w", op, key, ErrNotFound)
	}
	b.Scopes = append([]string(nil), b.Scopes...)
	b.PlatformState = cloneBytes(b.PlatformState)
	return &b, nil
}

// Delete implements BindingStore.
func (s *MemoryStore) Delete(_ context.Context, key, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bindings[key]; ok && b.SessionID == sessionID {
		delete(s.bindings, key)
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}
