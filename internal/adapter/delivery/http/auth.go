package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/pkg/response"
)

type ownerKey struct{}

var errMissingToken = errors.New("missing bearer token")

// OwnerFromContext returns the verified owner id put there by the auth middleware.
func OwnerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ownerKey{}).(string)
	return owner, ok && owner != ""
}

// NewToken issues an HS256 token whose subject is ownerID.
func NewToken(secret []byte, ownerID string, ttl time.Duration) (string, error) {
	const op = "adapter.delivery.http.NewToken"

	if err := entity.ValidateOwner(ownerID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   ownerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("%s: failed to sign token: %w", op, err)
	}

	return token, nil
}

func parseOwner(secret []byte, header string) (string, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", errMissingToken
	}

	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}
	if err := entity.ValidateOwner(claims.Subject); err != nil {
		return "", fmt.Errorf("%w: %w", jwt.ErrTokenInvalidClaims, err)
	}

	return claims.Subject, nil
}

// authenticate rejects requests without a valid bearer token and stores the
// token subject as the owner id.
func authenticate(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner, err := parseOwner(secret, r.Header.Get("Authorization"))
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="shortlink"`)
				response.Render(w, r, http.StatusUnauthorized, response.Unauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ownerKey{}, owner)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
