// ABOUTME: Credentials login that exchanges email-or-nickname and password for a session token
// ABOUTME: Password hashes are bcrypt, compatible with hashes produced by the signup flow

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/2389/missionlink-gateway/internal/store"
)

// ErrInvalidCredentials is returned for any unknown login or wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// LoginLookup is the subset of store.AccountStore used by Authenticator.
type LoginLookup interface {
	GetAccountByLogin(ctx context.Context, identifier string) (*store.Account, error)
}

// Authenticator verifies passwords and issues session tokens.
type Authenticator struct {
	accounts LoginLookup
	issuer   TokenIssuer
	ttl      time.Duration
}

// NewAuthenticator creates an Authenticator issuing tokens valid for ttl.
func NewAuthenticator(accounts LoginLookup, issuer TokenIssuer, ttl time.Duration) *Authenticator {
	return &Authenticator{accounts: accounts, issuer: issuer, ttl: ttl}
}

// Login checks the password for the account identified by email or nickname.
// Unknown accounts, accounts without a password, and mismatches all return ErrInvalidCredentials.
func (a *Authenticator) Login(ctx context.Context, identifier, password string) (string, *store.Account, error) {
	if identifier == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	acct, err := a.accounts.GetAccountByLogin(ctx, identifier)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("loading account: %w", err)
	}

	if acct.PasswordHash == "" {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := a.issuer.Generate(acct.ID, a.ttl)
	if err != nil {
		return "", nil, fmt.Errorf("signing session token: %w", err)
	}
	return token, acct, nil
}

// HashPassword returns a bcrypt hash suitable for Account.PasswordHash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}
