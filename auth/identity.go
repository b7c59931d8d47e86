package auth

import "time"

// AuthMethod indicates how authentication was performed.
type AuthMethod string

const (
	AuthMethodNone      AuthMethod = "none"
	AuthMethodJWT       AuthMethod = "jwt"
	AuthMethodDemoToken AuthMethod = "demo_token"
	AuthMethodAnonymous AuthMethod = "anonymous"
)

// Identity is an authenticated caller.
type Identity struct {
	// Principal identifies the caller: the JWT subject, or "demo".
	Principal string

	// Method indicates how authentication was performed.
	Method AuthMethod

	// Claims holds the verified token claims. For demo tokens it records
	// where the token was found under "source".
	Claims map[string]any

	// ExpiresAt and IssuedAt are zero when the credential carries none.
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// IsExpired reports whether the identity has an expiry in the past.
func (id *Identity) IsExpired() bool {
	if id.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(id.ExpiresAt)
}

// IsAnonymous reports whether no credential was verified.
func (id *Identity) IsAnonymous() bool {
	return id.Method == AuthMethodAnonymous || id.Principal == ""
}

// Source returns the "source" claim, or "".
func (id *Identity) Source() string {
	s, _ := id.Claims["source"].(string)
	return s
}

// AnonymousIdentity is attached to requests when authentication is off.
func AnonymousIdentity() *Identity {
	return &Identity{
		Principal: "anonymous",
		Method:    AuthMethodAnonymous,
		Claims:    make(map[string]any),
	}
}
