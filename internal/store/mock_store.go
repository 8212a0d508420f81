// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject chat log write failures

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account // keyed by account ID
	chatLogs []ChatLog

	// AppendErr, when set, is returned by AppendChatLog instead of storing.
	AppendErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		accounts: make(map[string]*Account),
	}
}

// CreateAccount stores a copy of the account.
func (m *MockStore) CreateAccount(ctx context.Context, a *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Status == "" {
		a.Status = AccountStatusPending
	}
	for _, existing := range m.accounts {
		if strings.EqualFold(existing.Email, a.Email) || (a.Nickname != "" && existing.Nickname == a.Nickname) {
			return ErrDuplicateAccount
		}
	}

	cp := *a
	m.accounts[cp.ID] = &cp
	return nil
}

// GetAccount retrieves an account by ID.
func (m *MockStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// GetAccountByLogin retrieves an account by email or nickname.
func (m *MockStore) GetAccountByLogin(ctx context.Context, identifier string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, identifier) || (a.Nickname != "" && a.Nickname == identifier) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// AppendChatLog records a chat log unless AppendErr is set.
func (m *MockStore) AppendChatLog(ctx context.Context, l *ChatLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AppendErr != nil {
		return m.AppendErr
	}
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	cp := *l
	cp.ToolsCalled = append([]string(nil), l.ToolsCalled...)
	m.chatLogs = append(m.chatLogs, cp)
	return nil
}

// ListChatLogs returns matching logs, newest first.
func (m *MockStore) ListChatLogs(ctx context.Context, f ChatLogFilter) ([]ChatLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []ChatLog{}
	for _, l := range m.chatLogs {
		if f.UserID != nil && l.UserID != *f.UserID {
			continue
		}
		if f.Status != nil && l.Status != *f.Status {
			continue
		}
		if f.Since != nil && l.CreatedAt.Before(*f.Since) {
			continue
		}
		result = append(result, l)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit := normalizeChatLogLimit(f.Limit); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Close is a no-op for the mock.
func (m *MockStore) Close() error {
	return nil
}

// Ensure MockStore implements Store
var _ Store = (*MockStore)(nil)
