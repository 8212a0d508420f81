// ABOUTME: Caller identity resolved by the access gate and carried through handlers
// ABOUTME: Provides WithIdentity/FromContext for propagating identity via context

package auth

import (
	"context"

	"github.com/2389/missionlink-gateway/internal/store"
)

// GenericDisplayName is used when an account has no name on file.
const GenericDisplayName = "Member"

// Identity is the per-request view of the calling account.
type Identity struct {
	AccountID      string
	DisplayName    string
	Grade          string // empty when unknown
	Status         store.AccountStatus
	FeatureEnabled bool

	// Warning is set when the admission policy let an inactive account through.
	Warning string
}

// Active reports whether the account is approved for use.
func (i *Identity) Active() bool {
	return i.Status == store.AccountStatusActive
}

// IdentityFromAccount builds an Identity, choosing the display name as
// preferred name, then legacy name, then GenericDisplayName.
func IdentityFromAccount(a *store.Account) *Identity {
	name := a.PreferredName
	if name == "" {
		name = a.LegacyName
	}
	if name == "" {
		name = GenericDisplayName
	}
	return &Identity{
		AccountID:      a.ID,
		DisplayName:    name,
		Grade:          a.Grade,
		Status:         a.Status,
		FeatureEnabled: a.AIEnabled,
	}
}

type identityContextKey struct{}

// WithIdentity returns a new context with the Identity attached.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// FromContext retrieves the Identity from the context, returning nil if not present.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey{}).(*Identity)
	return id
}

// MustFromContext retrieves the Identity from the context, panicking if not present.
func MustFromContext(ctx context.Context) *Identity {
	id := FromContext(ctx)
	if id == nil {
		panic("auth: Identity not found in context")
	}
	return id
}
