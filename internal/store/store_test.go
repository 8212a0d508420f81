package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func generateTestID(prefix string, i int) string {
	return prefix + "-" + string(rune('a'+i))
}

func TestStore_CreateAndGetAccount(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	acct := &Account{
		Email:         "Student@Example.org",
		Nickname:      "jiho",
		PreferredName: "김지호",
		LegacyName:    "Jiho Kim",
		Grade:         "11",
		Status:        AccountStatusActive,
		AIEnabled:     true,
		PasswordHash:  "hash",
	}
	require.NoError(t, store.CreateAccount(ctx, acct))
	assert.NotEmpty(t, acct.ID)
	assert.False(t, acct.CreatedAt.IsZero())

	got, err := store.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "Student@Example.org", got.Email)
	assert.Equal(t, "jiho", got.Nickname)
	assert.Equal(t, "김지호", got.PreferredName)
	assert.Equal(t, "11", got.Grade)
	assert.Equal(t, AccountStatusActive, got.Status)
	assert.True(t, got.AIEnabled)
}

func TestStore_GetAccount_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetAccount(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetAccountByLogin(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	acct := &Account{Email: "parent@example.org", Nickname: "mom", Status: AccountStatusPending}
	require.NoError(t, store.CreateAccount(ctx, acct))

	tests := []struct {
		name       string
		identifier string
		wantErr    error
	}{
		{"email exact", "parent@example.org", nil},
		{"email different case", "PARENT@example.org", nil},
		{"nickname", "mom", nil},
		{"nickname is case sensitive", "MOM", ErrNotFound},
		{"unknown", "nobody", ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.GetAccountByLogin(ctx, tt.identifier)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, acct.ID, got.ID)
		})
	}
}

func TestStore_CreateAccount_Duplicate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, &Account{Email: "a@example.org", Nickname: "a"}))

	err := store.CreateAccount(ctx, &Account{Email: "A@example.org"})
	assert.ErrorIs(t, err, ErrDuplicateAccount)

	err = store.CreateAccount(ctx, &Account{Email: "b@example.org", Nickname: "a"})
	assert.ErrorIs(t, err, ErrDuplicateAccount)
}

func TestStore_CreateAccount_EmptyNicknamesDoNotCollide(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, &Account{Email: "one@example.org"}))
	require.NoError(t, store.CreateAccount(ctx, &Account{Email: "two@example.org"}))
}

func TestStore_CreateAccount_InvalidStatus(t *testing.T) {
	store := setupTestStore(t)

	err := store.CreateAccount(context.Background(), &Account{Email: "x@example.org", Status: "banished"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid account status")
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	s1, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.CreateAccount(ctx, &Account{ID: "acct-1", Email: "r@example.org"}))
	require.NoError(t, s1.Close())

	s2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "r@example.org", got.Email)
}
