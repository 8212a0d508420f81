// ABOUTME: Store interfaces and data types for missionlink-gateway persistence
// ABOUTME: Defines Account and ChatLog structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateAccount is returned when an email or nickname is already taken
var ErrDuplicateAccount = errors.New("account already exists")

// AccountStatus is the lifecycle state of a member account.
type AccountStatus string

const (
	AccountStatusPending   AccountStatus = "pending"
	AccountStatusActive    AccountStatus = "active"
	AccountStatusRejected  AccountStatus = "rejected"
	AccountStatusSuspended AccountStatus = "suspended"
)

// Valid reports whether s is one of the known statuses.
func (s AccountStatus) Valid() bool {
	switch s {
	case AccountStatusPending, AccountStatusActive, AccountStatusRejected, AccountStatusSuspended:
		return true
	}
	return false
}

// Account is a member who may converse with the assistant.
type Account struct {
	ID            string
	Email         string
	Nickname      string
	PreferredName string // e.g. Korean name, shown first when present
	LegacyName    string
	Grade         string
	Status        AccountStatus
	AIEnabled     bool
	PasswordHash  string
	CreatedAt     time.Time
}

// ChatStatus is the outcome recorded for one exchange.
type ChatStatus string

const (
	ChatStatusSuccess   ChatStatus = "success"
	ChatStatusError     ChatStatus = "error"
	ChatStatusTruncated ChatStatus = "truncated"
)

// ChatLog is the durable summary of one completed chat exchange.
type ChatLog struct {
	ID           string
	UserID       string
	Query        string   // last user message, verbatim
	Response     string   // final assistant text
	ToolsCalled  []string // in invocation order
	Status       ChatStatus
	Error        string // set when Status is error
	Steps        int
	InputTokens  int
	OutputTokens int
	CreatedAt    time.Time
}

// ChatLogFilter specifies filtering options for listing chat logs.
type ChatLogFilter struct {
	UserID *string
	Status *ChatStatus
	Since  *time.Time
	Limit  int // default 100, max 1000
}

// AccountStore reads and creates member accounts.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*Account, error)
	// GetAccountByLogin finds an account by email (case-insensitive) or nickname.
	GetAccountByLogin(ctx context.Context, identifier string) (*Account, error)
	CreateAccount(ctx context.Context, a *Account) error
}

// ChatLogStore persists chat exchange summaries.
type ChatLogStore interface {
	AppendChatLog(ctx context.Context, l *ChatLog) error
	ListChatLogs(ctx context.Context, f ChatLogFilter) ([]ChatLog, error)
}

// Store combines every persistence interface the gateway needs.
type Store interface {
	AccountStore
	ChatLogStore
	Close() error
}
