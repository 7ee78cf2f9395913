package auth

import (
	"context"
	"net/http"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// ContextKeyRole is the context key for storing the authenticated role
	ContextKeyRole contextKey = "role"
)

// registeredKey is one bcrypt-hashed key loaded at startup.
type registeredKey struct {
	hash string
	role Role
}

// Authenticator authenticates requests against a fixed, in-memory set of API
// keys configured at startup plus a single legacy admin key compared in
// constant time. There is no key rotation or revocation endpoint: keys are
// provisioned via configuration and take effect on the next process start.
type Authenticator struct {
	keys           []registeredKey
	legacyAdminKey string
}

// NewAuthenticator builds an Authenticator from a set of pre-hashed API keys
// and a legacy admin key compared with subtle.ConstantTimeCompare.
func NewAuthenticator(legacyAdminKey string, hashedKeys map[string]Role) *Authenticator {
	a := &Authenticator{legacyAdminKey: legacyAdminKey}
	for hash, role := range hashedKeys {
		a.keys = append(a.keys, registeredKey{hash: hash, role: role})
	}
	return a
}

// AuthResult contains the result of an authentication attempt.
type AuthResult struct {
	Authenticated bool
	Role          Role
	Error         string
}

// Authenticate authenticates a request using its Authorization header. It
// tries the legacy admin key first (constant-time comparison against a
// plaintext secret), then each registered bcrypt-hashed key in turn.
func (a *Authenticator) Authenticate(_ context.Context, authHeader string) AuthResult {
	token := ExtractBearerToken(authHeader)
	if token == "" {
		return AuthResult{Authenticated: false, Error: "missing bearer token"}
	}

	if a.legacyAdminKey != "" && VerifyAPIKeyConstantTime(token, a.legacyAdminKey) {
		return AuthResult{Authenticated: true, Role: RoleSuperadmin}
	}

	for _, k := range a.keys {
		if VerifyAPIKey(token, k.hash) {
			return AuthResult{Authenticated: true, Role: k.role}
		}
	}

	return AuthResult{Authenticated: false, Error: "invalid token"}
}

// RequireAuth is a middleware that requires authentication at requiredRole
// or above.
func (a *Authenticator) RequireAuth(requiredRole Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := a.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if !result.Authenticated {
				http.Error(w, result.Error, http.StatusUnauthorized)
				return
			}
			if !HasPermission(result.Role, requiredRole) {
				http.Error(w, "insufficient permissions", http.StatusForbidden)
				return
			}
			ctx := context.WithValue(r.Context(), ContextKeyRole, result.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRoleFromContext extracts the authenticated role from the request context.
func GetRoleFromContext(ctx context.Context) (Role, bool) {
	role, ok := ctx.Value(ContextKeyRole).(Role)
	return role, ok
}
