package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shaiso/Relay/internal/domain"
)

// Ошибки аутентификации.
var (
	ErrNoToken      = fmt.Errorf("%w: missing bearer token", domain.ErrUnauthorized)
	ErrInvalidToken = fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	ErrAuthDisabled = fmt.Errorf("%w: authentication is not configured", domain.ErrUnauthorized)
)

type subjectKey struct{}

// WithSubject добавляет sub токена в context.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFrom извлекает sub токена из context.
func SubjectFrom(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey{}).(string)
	return s, ok && s != ""
}

// Authenticator проверяет bearer-токены HS256.
type Authenticator struct {
	secret []byte
	logger *slog.Logger
}

// NewAuthenticator создаёт Authenticator. С пустым secret токены не принимаются.
func NewAuthenticator(secret string, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{secret: []byte(secret), logger: logger}
}

// Enabled возвращает true, если secret задан.
func (a *Authenticator) Enabled() bool {
	return len(a.secret) > 0
}

// Subject проверяет токен из заголовка Authorization и возвращает sub.
func (a *Authenticator) Subject(r *http.Request) (string, error) {
	if !a.Enabled() {
		return "", ErrAuthDisabled
	}

	raw, ok := bearerToken(r)
	if !ok {
		return "", ErrNoToken
	}

	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(30*time.Second))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}
	return sub, nil
}

// OptionalAuth кладёт sub валидного токена в context.
// Отсутствующий или невалидный токен не прерывает запрос:
// пользователь может быть указан в теле через user_id.
func (a *Authenticator) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, err := a.Subject(r)
		if err != nil {
			if !errors.Is(err, ErrNoToken) && !errors.Is(err, ErrAuthDisabled) {
				a.logger.Debug("ignoring invalid token", "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), sub)))
	})
}

// RequireAuth требует валидный токен.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, err := a.Subject(r)
		if err != nil {
			Unauthorized(w, err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), sub)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
