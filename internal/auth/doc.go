// Package auth authenticates MCP callers for shelf-gateway.
//
// # Tokens
//
// Callers present an opaque token, either as the token query parameter or as
// an Authorization bearer header. Tokens are rows in the mcp_tokens table,
// each bound to exactly one user. The Gate trims the raw value, looks it up,
// and loads the owning user:
//
//	principal, err := gate.Authenticate(ctx, raw)
//
// Three failures are kept distinct:
//
//   - ErrMissingCredential: no token at all (HTTP 401, "Missing token")
//   - ErrInvalidCredential: token not in the store (HTTP 403, "Invalid token")
//   - ErrPrincipalNotFound: token whose user is gone (HTTP 403, "User not found for token")
//
// # Principal Context
//
// Middleware attaches the resolved Principal to the request context before
// the wrapped handler runs. Handlers read it back with PrincipalFromContext
// or MustPrincipal.
package auth
