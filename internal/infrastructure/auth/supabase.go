package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"diggin-checkout/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// Authenticator resolves a bearer token to the calling principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Principal, error)
}

type supabaseClaims struct {
	Email        string `json:"email"`
	UserMetadata struct {
		FullName string `json:"full_name"`
	} `json:"user_metadata"`
	jwt.RegisteredClaims
}

// SupabaseAuthenticator validates access tokens issued by the hosted auth
// platform. They are HS256 JWTs signed with the project's JWT secret.
type SupabaseAuthenticator struct {
	secret []byte
	parser *jwt.Parser
}

func NewSupabaseAuthenticator(secret string) *SupabaseAuthenticator {
	return &SupabaseAuthenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

func (a *SupabaseAuthenticator) Authenticate(_ context.Context, token string) (domain.Principal, error) {
	if token == "" || len(a.secret) == 0 {
		return domain.Principal{}, domain.ErrUnauthorized
	}

	var claims supabaseClaims
	_, err := a.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return domain.Principal{}, fmt.Errorf("%w: token without subject", domain.ErrUnauthorized)
	}

	return domain.Principal{
		ID:    claims.Subject,
		Email: claims.Email,
		Name:  claims.UserMetadata.FullName,
	}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("missing bearer token")
	}
	return strings.TrimSpace(token), nil
}
