// Package auth provides session-backed authentication and per-user
// ownership for the JSON API. Every authenticated request carries the
// resolved user ID in its context.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aaron777collins/smartbudget-sub003/internal/database"
	"github.com/aaron777collins/smartbudget-sub003/internal/logger"
)

const (
	SessionCookieName = "smartbudget_session"
	SessionDuration   = 30 * 24 * time.Hour
)

// ErrInvalidCredentials covers both unknown email and wrong password,
// so login failures do not reveal which accounts exist.
var ErrInvalidCredentials = errors.New("invalid credentials")

type userIDKey struct{}

// UserIDFromContext returns the authenticated user's ID, or 0.
func UserIDFromContext(ctx context.Context) int64 {
	if id, ok := ctx.Value(userIDKey{}).(int64); ok {
		return id
	}
	return 0
}

// WithUserID stores a user ID in the context; exported for tests.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

type Auth struct {
	db *database.DB
}

func New(db *database.DB) *Auth {
	return &Auth{db: db}
}

// HashPassword returns the stored form of a password.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Register creates a new user account.
func (a *Auth) Register(ctx context.Context, email, password string) (int64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return 0, fmt.Errorf("invalid email")
	}
	if len(password) < 8 {
		return 0, fmt.Errorf("password must be at least 8 characters")
	}
	id, err := a.db.CreateUser(email, HashPassword(password))
	if err != nil {
		return 0, err
	}
	logger.FromContext(ctx).Info("auth_user_registered", "user_id", id)
	return id, nil
}

// Login verifies credentials and creates a session, returning the token.
func (a *Auth) Login(ctx context.Context, email, password string) (string, error) {
	l := logger.FromContext(ctx)

	user, err := a.db.GetUserByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		l.Warn("auth_login_failed", "reason", "unknown_email")
		return "", ErrInvalidCredentials
	}
	hash := HashPassword(password)
	if subtle.ConstantTimeCompare([]byte(hash), []byte(user.PasswordHash)) != 1 {
		l.Warn("auth_login_failed", "reason", "invalid_password", "user_id", user.ID)
		return "", ErrInvalidCredentials
	}

	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	expiresAt := time.Now().Add(SessionDuration)
	_, err = a.db.Exec(`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token, user.ID, expiresAt)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	l.Info("auth_session_created", "user_id", user.ID, "expires_at", expiresAt.Format(time.RFC3339))
	return token, nil
}

// ValidateSession resolves a token to a user ID. Returns 0, false for
// unknown or expired tokens.
func (a *Auth) ValidateSession(ctx context.Context, token string) (int64, bool) {
	var userID int64
	var expiresAt time.Time
	err := a.db.QueryRow(`SELECT user_id, expires_at FROM sessions WHERE token = ?`, token).
		Scan(&userID, &expiresAt)
	if err != nil {
		return 0, false
	}
	if time.Now().After(expiresAt) {
		return 0, false
	}
	return userID, true
}

// DeleteSession removes a session
func (a *Auth) DeleteSession(ctx context.Context, token string) error {
	_, err := a.db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	logger.FromContext(ctx).Info("auth_logout")
	return nil
}

// CleanExpiredSessions removes expired sessions
func (a *Auth) CleanExpiredSessions() error {
	_, err := a.db.Exec(`DELETE FROM sessions WHERE expires_at < datetime('now')`)
	return err
}

// SetSessionCookie sets the session cookie on the response
func (a *Auth) SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionDuration.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie removes the session cookie
func (a *Auth) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// TokenFromRequest retrieves the session token from the cookie or a
// bearer Authorization header.
func (a *Auth) TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Middleware resolves the session on every request and injects the
// user ID into the context. Unauthenticated API calls get a 401 JSON
// body; login and register are exempt.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	exempt := map[string]bool{
		"/api/login":    true,
		"/api/register": true,
		"/api/version":  true,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if exempt[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		token := a.TokenFromRequest(r)
		userID, ok := int64(0), false
		if token != "" {
			userID, ok = a.ValidateSession(ctx, token)
		}
		if !ok {
			logger.FromContext(ctx).Debug("auth_unauthenticated", "path", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"authentication required"}`))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(ctx, userID)))
	})
}

func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
