// Package session carries the caller's credentials explicitly instead of through global storage.
package session

import (
	"context"
	"sync/atomic"

	"github.com/ryfty/ryfty-payments/internal/domain"
)

// Session is the authenticated identity of one browser user.
// It is created per request and passed down through context.
type Session struct {
	token       string
	userID      string
	invalidated atomic.Bool
}

// New creates a session for the given bearer token and user id.
func New(token, userID string) *Session {
	return &Session{token: token, userID: userID}
}

// Token returns the bearer token, or ErrSessionInvalidated after logout.
func (s *Session) Token() (string, error) {
	if s == nil || s.token == "" {
		return "", domain.ErrSessionRequired
	}
	if s.invalidated.Load() {
		return "", domain.ErrSessionInvalidated
	}
	return s.token, nil
}

// UserID returns the user id; empty for anonymous sessions.
func (s *Session) UserID() string {
	if s == nil {
		return ""
	}
	return s.userID
}

// Owner returns the key that scopes per-user state: the user id, or the token when the
// session carries no user id.
func (s *Session) Owner() (string, error) {
	token, err := s.Token()
	if err != nil {
		return "", err
	}
	if s.userID != "" {
		return s.userID, nil
	}
	return token, nil
}

// Authenticated reports whether the session can be used for API calls.
func (s *Session) Authenticated() bool {
	_, err := s.Token()
	return err == nil
}

// Invalidate marks the session as logged out. Later calls to Token fail.
func (s *Session) Invalidate() {
	if s != nil {
		s.invalidated.Store(true)
	}
}

type contextKey struct{}

// WithContext returns a copy of ctx carrying s.
func WithContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored in ctx, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}
