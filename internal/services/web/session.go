package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/louisbranch/statehouse/internal/platform/id"
	"github.com/louisbranch/statehouse/internal/services/shared/stores/auth"
	"github.com/louisbranch/statehouse/internal/services/web/storage"
)

const sessionCookieName = "statehouse_session"

// sessionFromRequest returns the live session named by the request cookie.
func (h *handler) sessionFromRequest(r *http.Request) (storage.Session, bool, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return storage.Session{}, false, nil
	}
	sess, ok, err := h.storage.LoadSession(r.Context(), cookie.Value)
	if err != nil {
		return storage.Session{}, false, fmt.Errorf("load session: %w", err)
	}
	if !ok || sess.Expired(h.now()) {
		return storage.Session{}, false, nil
	}
	return sess, true, nil
}

// authStateForSession rebuilds the signed-in snapshot for sess. The user
// comes from the stored identity; sessions saved without one fall back to
// the demo identity for their email. The token is never persisted, so the
// page always carries the session-scoped demo token.
func authStateForSession(sess storage.Session) auth.State {
	user, token := auth.DemoIdentity(sess.Email)
	if sess.UserID != "" {
		user.ID = sess.UserID
	}
	if sess.UserName != "" {
		user.Name = sess.UserName
	}
	return auth.State{User: &user, Token: &token, RememberMe: sess.RememberMe}
}

// startSession stores a new session for user and sets its cookie. Sessions
// without remember-me use a browser-session cookie.
func (h *handler) startSession(ctx context.Context, w http.ResponseWriter, user auth.User, remember bool) error {
	sessionID, err := id.NewID()
	if err != nil {
		return fmt.Errorf("generate session id: %w", err)
	}
	now := h.now().UTC()
	ttl := h.config.SessionTTL
	if remember {
		ttl = h.config.RememberTTL
	}
	sess := storage.Session{
		ID:         sessionID,
		Email:      user.Email,
		UserID:     user.ID,
		UserName:   user.Name,
		RememberMe: remember,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	if err := h.storage.SaveSession(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if remember {
		cookie.MaxAge = int(ttl / time.Second)
	}
	http.SetCookie(w, cookie)
	return nil
}

// endSession deletes the request's session and clears its cookie.
func (h *handler) endSession(w http.ResponseWriter, r *http.Request) error {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if err := h.storage.DeleteSession(r.Context(), cookie.Value); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
