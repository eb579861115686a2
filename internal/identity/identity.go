// Package identity holds the current authenticated user and credential.
package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Context is the authentication state consumed by the stores and the idle
// monitor. It never talks to the network itself; the gateway issues the
// credentials it holds.
type Context struct {
	userID    string
	token     string
	onSignIn  []func(userID string)
	onSignOut []func(reason string)
}

// Sign-out reasons passed to listeners.
const (
	ReasonManual   = "manual"
	ReasonExpired  = "expired"
	ReasonInactive = "inactive"
)

// NewContext constructs an unauthenticated identity context.
func NewContext() *Context {
	return &Context{}
}

// SignIn installs the current user and credential and notifies listeners.
func (c *Context) SignIn(userID, token string) {
	c.userID = userID
	c.token = token
	for _, fn := range c.onSignIn {
		fn(userID)
	}
}

// SignOut clears the credential and notifies listeners with the reason.
func (c *Context) SignOut(reason string) {
	if c.userID == "" && c.token == "" {
		return
	}
	c.userID = ""
	c.token = ""
	for _, fn := range c.onSignOut {
		fn(reason)
	}
}

// Authenticated reports whether a user is signed in.
func (c *Context) Authenticated() bool {
	return c.userID != ""
}

// UserID returns the current user id, empty when unauthenticated.
func (c *Context) UserID() string {
	return c.userID
}

// Token returns the bearer credential, empty when unauthenticated.
func (c *Context) Token() string {
	return c.token
}

// OnSignIn registers a sign-in listener.
func (c *Context) OnSignIn(fn func(userID string)) {
	c.onSignIn = append(c.onSignIn, fn)
}

// OnSignOut registers a sign-out listener.
func (c *Context) OnSignOut(fn func(reason string)) {
	c.onSignOut = append(c.onSignOut, fn)
}

// ExpiresAt reads the exp claim of the bearer token. The gateway is the
// verifier; the claim is parsed unverified here only to anticipate expiry.
func (c *Context) ExpiresAt() (time.Time, bool) {
	if c.token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Expired reports whether the credential's exp claim has passed. Tokens
// without a readable exp claim are not considered expired.
func (c *Context) Expired(now time.Time) bool {
	exp, ok := c.ExpiresAt()
	if !ok {
		return false
	}
	return now.After(exp)
}
