package identity

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// JWTProvider resolves identities from HS256-signed bearer tokens issued by
// the identity platform. Profile attributes ride along as claims.
type JWTProvider struct {
	secret []byte
	issuer string
}

// NewJWTProvider builds a provider verifying tokens against the shared secret.
func NewJWTProvider(secret, issuer string) *JWTProvider {
	return &JWTProvider{secret: []byte(secret), issuer: issuer}
}

// Resolve verifies the token and extracts the identity claims.
func (p *JWTProvider) Resolve(_ context.Context, tokenStr string) (Identity, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return p.secret, nil
	}, jwt.WithIssuer(p.issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("%w: unexpected claims type", ErrUnauthenticated)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrUnauthenticated)
	}

	return Identity{
		ID:        sub,
		Name:      stringClaim(claims, "name"),
		Email:     stringClaim(claims, "email"),
		AvatarURL: stringClaim(claims, "picture"),
	}, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}
