// Package auth provides authentication and admission for missionlink-gateway.
//
// # Session Tokens
//
// Members authenticate with HS256 JWTs whose "sub" claim is the account ID.
// Tokens are read from the Authorization header ("Bearer <token>") or from the
// session cookie. They are issued by Authenticator.Login after a bcrypt
// password check, or minted by the `token` CLI command.
//
// # Gate and Policy
//
// Gate.Authorize turns a token into an Identity:
//
//   - no token, bad signature, expired: ErrUnauthenticated (401)
//   - valid token, account deleted: ErrForbidden (403)
//
// The gate does not look at account status. Policy.Admit does:
//
//   - assistant feature disabled: always ErrForbidden
//   - status other than active: ErrForbidden, or a warning when WarnInactive is set
//
// HTTPAuthMiddleware runs both and stores the Identity in the request context.
package auth
