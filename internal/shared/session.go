package shared

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionManager issues and resolves cookie based sessions backed by Redis.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
	}
}

func (sm *SessionManager) key(id string) string {
	return "session:" + id
}

// Issue creates a session for the user and sets the cookie on the response.
func (sm *SessionManager) Issue(ctx context.Context, w http.ResponseWriter, userID int64) (string, error) {
	id := uuid.NewString()
	if err := sm.client.Set(ctx, sm.key(id), strconv.FormatInt(userID, 10), sm.ttl).Err(); err != nil {
		return "", fmt.Errorf("session: store: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    id,
		Path:     "/",
		Expires:  time.Now().Add(sm.ttl),
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id, nil
}

// Resolve returns the user id for the request's session cookie.
func (sm *SessionManager) Resolve(ctx context.Context, r *http.Request) (int64, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil || cookie.Value == "" {
		return 0, ErrNoSession
	}
	raw, err := sm.client.Get(ctx, sm.key(cookie.Value)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNoSession
		}
		return 0, fmt.Errorf("session: load: %w", err)
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return 0, ErrNoSession
	}
	return userID, nil
}

// Revoke deletes the session and expires the cookie.
func (sm *SessionManager) Revoke(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(sm.cookieName)
	if err == nil && cookie.Value != "" {
		if err := sm.client.Del(ctx, sm.key(cookie.Value)).Err(); err != nil {
			return fmt.Errorf("session: revoke: %w", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
