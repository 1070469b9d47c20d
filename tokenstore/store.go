package tokenstore

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNotFound is returned by Load when no token is persisted.
	ErrNotFound = errors.New("token not found")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("token store unavailable")
)

// Store persists one raw token.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	// Delete removes the token. Deleting an absent token is not an error.
	Delete(ctx context.Context) error
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*File)(nil)
	_ Store = (*Redis)(nil)
)

// Memory is an in-process Store.
type Memory struct {
	mu    sync.RWMutex
	token string
	set   bool
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.set {
		return "", ErrNotFound
	}
	return m.token, nil
}

func (m *Memory) Save(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.set = true
	return nil
}

func (m *Memory) Delete(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.set = false
	return nil
}
