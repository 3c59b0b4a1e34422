// Package middleware содержит HTTP middleware для сервиса ordermart.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const userIDKey contextKey = "uid"

const (
	authCookieName = "auth_token"
	authTokenTTL   = 24 * time.Hour
)

// ErrInvalidToken возвращается для токена с неверной подписью, истёкшим сроком или без uid.
var ErrInvalidToken = errors.New("invalid identity token")

// AuthMiddleware проверяет токен внешнего провайдера идентификации (HS256, uid в поле sub).
type AuthMiddleware struct {
	secretKey []byte
	now       func() time.Time
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{
		secretKey: []byte(secret),
		now:       time.Now,
	}
}

// Middleware извлекает токен из заголовка Authorization или cookie auth_token
// и добавляет uid в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := tokenFromRequest(r)
		if raw == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		uid, err := a.ParseToken(raw)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, uid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IssueToken подписывает токен для uid. Используется в тестах и локальной разработке.
func (a *AuthMiddleware) IssueToken(uid string) (string, error) {
	if len(a.secretKey) == 0 {
		return "", errors.New("auth secret is not configured")
	}

	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   uid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(authTokenTTL)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// SetAuthCookie устанавливает cookie авторизации для указанного uid.
func (a *AuthMiddleware) SetAuthCookie(w http.ResponseWriter, uid string) error {
	token, err := a.IssueToken(uid)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		Expires:  a.now().Add(authTokenTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ParseToken проверяет подпись и срок действия токена и возвращает uid.
func (a *AuthMiddleware) ParseToken(raw string) (string, error) {
	if len(a.secretKey) == 0 {
		return "", ErrInvalidToken
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		return a.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	uid := strings.TrimSpace(claims.Subject)
	if uid == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	return uid, nil
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}

	cookie, err := r.Cookie(authCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// GetUserIDFromContext извлекает uid пользователя из контекста запроса.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}
