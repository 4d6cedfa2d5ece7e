package identity

import (
	"context"
	"errors"
)

// ErrUnauthenticated indicates the presented credential could not be resolved
// to an identity. Transport maps it to 401.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the stable external user record resolved from a credential.
type Identity struct {
	ID        string
	Name      string
	Email     string
	AvatarURL string
}

// Provider resolves a bearer credential to an identity. Identity management
// itself lives outside this service; implementations only verify and decode.
type Provider interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}
