package auth

import (
	"context"
	"crypto/subtle"
)

// DemoCookieName is the cookie that remembers an accepted demo token.
const DemoCookieName = "tylo_demo_token"

// DemoTokenAuthenticator accepts one shared token from the "token" query
// parameter, the DemoCookieName cookie or a bearer header.
type DemoTokenAuthenticator struct {
	token string
}

// NewDemoTokenAuthenticator creates an authenticator for token.
func NewDemoTokenAuthenticator(token string) *DemoTokenAuthenticator {
	return &DemoTokenAuthenticator{token: token}
}

// Name returns "demo_token".
func (a *DemoTokenAuthenticator) Name() string {
	return string(AuthMethodDemoToken)
}

// Supports returns true if the request carries any candidate token.
func (a *DemoTokenAuthenticator) Supports(_ context.Context, req *AuthRequest) bool {
	_, source := a.candidate(req)
	return source != ""
}

// Authenticate compares every candidate with the configured token. The
// returned identity's Source tells whether the token came from the query,
// in which case Middleware remembers it in a cookie.
func (a *DemoTokenAuthenticator) Authenticate(_ context.Context, req *AuthRequest) (*AuthResult, error) {
	if a.token == "" {
		return AuthFailure(ErrInvalidCredentials, a.Name()), nil
	}
	candidates := []struct{ source, value string }{
		{"cookie", req.Cookies[DemoCookieName]},
		{"query", req.GetQuery("token")},
		{"bearer", req.BearerToken()},
	}
	seen := false
	for _, c := range candidates {
		if c.value == "" {
			continue
		}
		seen = true
		if ConstantTimeCompare(c.value, a.token) {
			return AuthSuccess(&Identity{
				Principal: "demo",
				Method:    AuthMethodDemoToken,
				Claims:    map[string]any{"source": c.source},
			}), nil
		}
	}
	if !seen {
		return AuthFailure(ErrMissingCredentials, a.Name()), nil
	}
	return AuthFailure(ErrInvalidCredentials, a.Name()), nil
}

func (a *DemoTokenAuthenticator) candidate(req *AuthRequest) (string, string) {
	if v := req.Cookies[DemoCookieName]; v != "" {
		return v, "cookie"
	}
	if v := req.GetQuery("token"); v != "" {
		return v, "query"
	}
	if v := req.BearerToken(); v != "" {
		return v, "bearer"
	}
	return "", ""
}

// ConstantTimeCompare performs constant-time comparison of two strings.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

var _ Authenticator = (*DemoTokenAuthenticator)(nil)
