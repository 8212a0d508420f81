// ABOUTME: Access gate that turns a session token into a caller Identity
// ABOUTME: Also holds the admission policy deciding whether an Identity may reach the model

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/missionlink-gateway/internal/store"
)

// Gate errors. Admission failures wrap ErrForbidden so callers can map both to 403.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrAccountInactive = errors.New("account is not active")
	ErrFeatureDisabled = errors.New("assistant is not enabled for this account")
)

// AccountLookup is the subset of store.AccountStore the gate reads.
type AccountLookup interface {
	GetAccount(ctx context.Context, id string) (*store.Account, error)
}

// Gate resolves session tokens to identities. It never blocks on account
// status; that decision belongs to Policy.
type Gate struct {
	verifier TokenVerifier
	accounts AccountLookup
	logger   *slog.Logger
}

// NewGate creates a gate backed by the given verifier and account lookup.
func NewGate(verifier TokenVerifier, accounts AccountLookup, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		verifier: verifier,
		accounts: accounts,
		logger:   logger.With("component", "gate"),
	}
}

// Authorize returns the Identity for a session token.
// Missing, malformed, or expired tokens yield ErrUnauthenticated.
// A valid token whose account no longer exists yields ErrForbidden.
func (g *Gate) Authorize(ctx context.Context, sessionToken string) (*Identity, error) {
	if sessionToken == "" {
		return nil, ErrUnauthenticated
	}

	accountID, err := g.verifier.Verify(sessionToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	acct, err := g.accounts.GetAccount(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		g.logger.Debug("session for unknown account", "account_id", accountID)
		return nil, fmt.Errorf("%w: account not found", ErrForbidden)
	}
	if err != nil {
		return nil, fmt.Errorf("loading account: %w", err)
	}

	return IdentityFromAccount(acct), nil
}

// Policy decides whether an authorized Identity may use the assistant.
type Policy struct {
	// WarnInactive admits non-active accounts with a warning instead of rejecting them.
	WarnInactive bool
}

// Admit returns nil when the identity may proceed. When WarnInactive lets a
// non-active account through, the returned warning is non-empty.
// A disabled assistant feature is always rejected.
func (p Policy) Admit(id *Identity) (warning string, err error) {
	if !id.FeatureEnabled {
		return "", fmt.Errorf("%w: %w", ErrForbidden, ErrFeatureDisabled)
	}
	if id.Active() {
		return "", nil
	}
	if p.WarnInactive {
		return fmt.Sprintf("account status is %s", id.Status), nil
	}
	return "", fmt.Errorf("%w: %w (%s)", ErrForbidden, ErrAccountInactive, id.Status)
}
