// Package auth is the authentication store. External code reads it through
// getters and changes it only through Login and Logout.
package auth

import (
	"context"
	"errors"
	"strings"
	"unicode"

	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
	"github.com/louisbranch/statehouse/internal/store"
	"github.com/louisbranch/statehouse/internal/store/async"
	"github.com/louisbranch/statehouse/internal/store/hydration"
)

// Key identifies the auth store and its payload.
const Key = "auth_store"

// User is a signed-in user.
type User struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatar_url"`
}

// Token is the session token issued at login.
type Token struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken *string `json:"refresh_token"`
	ExpiresAt    uint64  `json:"expires_at"`
}

// Credentials is a login request. The password never leaves the process.
type Credentials struct {
	Email      string `json:"email"`
	Password   string `json:"-"`
	RememberMe bool   `json:"remember_me"`
}

// State is the auth snapshot. Loading and Error are transient and are not
// transferred to the client.
type State struct {
	User       *User  `json:"user"`
	Token      *Token `json:"token"`
	RememberMe bool   `json:"remember_me"`
	Loading    bool   `json:"-"`
	Error      string `json:"-"`
}

// Store is the auth store.
type Store struct {
	*store.Store[State]
	w *store.Writer[State]
}

// New returns a signed-out store.
func New() *Store {
	return WithState(State{})
}

// WithState returns a store holding s.
func WithState(s State) *Store {
	st, w := store.New(Key, s, store.WithClone(cloneState))
	return &Store{Store: st, w: w}
}

func cloneState(s State) State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	if s.Token != nil {
		t := *s.Token
		s.Token = &t
	}
	return s
}

// IsAuthenticated reports whether both a user and a token are present.
func (s *Store) IsAuthenticated() bool {
	st := s.State().Get()
	return st.User != nil && st.Token != nil
}

// IsTokenExpired reports whether the session token is missing or expired.
func (s *Store) IsTokenExpired() bool {
	st := s.State().Get()
	return st.Token == nil || st.Token.ExpiresAt == 0
}

// CurrentUser returns the signed-in user.
func (s *Store) CurrentUser() (User, bool) {
	st := s.State().Get()
	if st.User == nil {
		return User{}, false
	}
	return *st.User, true
}

// DisplayName returns the user's name or "Guest".
func (s *Store) DisplayName() string {
	if u, ok := s.CurrentUser(); ok {
		return u.Name
	}
	return "Guest"
}

// Email returns the user's email.
func (s *Store) Email() (string, bool) {
	u, ok := s.CurrentUser()
	return u.Email, ok
}

// Initials returns up to two uppercase initials, or "?" when signed out.
func (s *Store) Initials() string {
	u, ok := s.CurrentUser()
	if !ok {
		return "?"
	}
	initials := make([]rune, 0, 2)
	for _, word := range strings.Fields(u.Name) {
		initials = append(initials, unicode.ToUpper([]rune(word)[0]))
		if len(initials) == 2 {
			break
		}
	}
	return string(initials)
}

func (s *Store) IsLoading() bool { return s.State().Get().Loading }
func (s *Store) Err() string     { return s.State().Get().Error }
func (s *Store) HasError() bool  { return s.Err() != "" }

func (s *Store) setLoading(loading bool) {
	s.w.Update("set_loading", func(st State) State {
		st.Loading = loading
		return st
	})
}

func (s *Store) setError(msg string) {
	s.w.Update("set_error", func(st State) State {
		st.Error = msg
		st.Loading = false
		return st
	})
}

func (s *Store) clearError() {
	s.w.Update("clear_error", func(st State) State {
		st.Error = ""
		return st
	})
}

func (s *Store) setAuthenticated(user User, token Token, remember bool) {
	s.w.Update("set_authenticated", func(st State) State {
		st.User = &user
		st.Token = &token
		st.RememberMe = remember
		st.Error = ""
		st.Loading = false
		return st
	})
}

func (s *Store) clearAuth() {
	s.w.Update("clear_auth", func(st State) State {
		st.User = nil
		st.Token = nil
		st.Error = ""
		st.Loading = false
		return st
	})
}

// Validate checks credentials before any authentication attempt.
func Validate(c Credentials) error {
	switch {
	case strings.TrimSpace(c.Email) == "":
		return async.Validation("Email is required", map[string]string{"field": "email"})
	case c.Password == "":
		return async.Validation("Password is required", map[string]string{"field": "password"})
	}
	return nil
}

// Login signs in with the demo identity derived from the email. A
// validation failure is recorded in the store and also returned.
func (s *Store) Login(c Credentials) error {
	s.setLoading(true)
	s.clearError()
	if err := Validate(c); err != nil {
		s.setError(messageOf(err))
		return err
	}
	user, token := DemoIdentity(c.Email)
	s.setAuthenticated(user, token, c.RememberMe)
	return nil
}

// Logout clears the session.
func (s *Store) Logout() {
	s.setLoading(true)
	s.clearAuth()
}

// ApplySnapshot replaces the whole snapshot with fresh server data.
func (s *Store) ApplySnapshot(st State) {
	s.w.Set("apply_snapshot", cloneState(st))
}

// Authenticator verifies credentials against an identity provider.
type Authenticator interface {
	Authenticate(ctx context.Context, c Credentials) (User, Token, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, c Credentials) (User, Token, error)

// Authenticate implements Authenticator.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, c Credentials) (User, Token, error) {
	return f(ctx, c)
}

// DemoIdentity is the identity issued by the demo authenticator.
func DemoIdentity(email string) (User, Token) {
	name, _, _ := strings.Cut(email, "@")
	if name == "" {
		name = "User"
	}
	refresh := "demo_refresh_token"
	return User{ID: "user_123", Email: email, Name: name},
		Token{AccessToken: "demo_access_token", RefreshToken: &refresh, ExpiresAt: 3600}
}

// DemoAuthenticator accepts any valid credentials.
var DemoAuthenticator Authenticator = AuthenticatorFunc(func(_ context.Context, c Credentials) (User, Token, error) {
	user, token := DemoIdentity(c.Email)
	return user, token, nil
})

// LoginAsync signs in through authn. The store shows Loading while the call
// is in flight; a failure is recorded in the store and returned unchanged.
func LoginAsync(authn Authenticator, c Credentials) async.AsyncAction[*Store, User] {
	return async.Named[*Store, User]("auth.login", async.AsyncFunc[*Store, User](
		func(ctx context.Context, task *async.Task, s *Store) (User, error) {
			s.setLoading(true)
			s.clearError()
			if err := Validate(c); err != nil {
				s.setError(messageOf(err))
				return User{}, err
			}
			type session struct {
				user  User
				token Token
			}
			got, err := async.Await(ctx, task, func(ctx context.Context) (session, error) {
				u, t, err := authn.Authenticate(ctx, c)
				return session{user: u, token: t}, err
			})
			if err != nil {
				s.setError(messageOf(err))
				return User{}, err
			}
			s.setAuthenticated(got.user, got.token, c.RememberMe)
			return got.user, nil
		}))
}

func messageOf(err error) string {
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		return domainErr.Message
	}
	return err.Error()
}

// Codec is the payload codec for auth snapshots.
var Codec hydration.Codec[State] = hydration.JSONCodec[State]{}

// Hydratable describes how the client rebuilds the auth store.
func Hydratable() hydration.Hydratable[*Store, State] {
	return hydration.Hydratable[*Store, State]{
		Key:       Key,
		Codec:     Codec,
		Default:   func() State { return State{} },
		Construct: WithState,
	}
}
