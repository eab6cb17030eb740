package auth

import (
	"context"
	"errors"
	"fmt"

	"chat-gateway/internal/data"
)

// Resolution failure taxonomy. ErrUnauthenticated covers missing, malformed,
// expired and revoked credentials; ErrIdentityNotFound means the credential
// verified but no internal user is linked to it yet.
var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrIdentityNotFound = errors.New("identity not found")
)

// UserFinder is the slice of the users store the resolver needs.
type UserFinder interface {
	FindByExternalID(ctx context.Context, externalID string) (*data.User, error)
}

// Resolver maps a raw bearer credential to an internal user: verify the
// credential with the provider's key, then look up the linked account. It is
// read-only; account creation happens on the provider sync endpoint.
type Resolver struct {
	verifier TokenVerifier
	users    UserFinder
}

// NewResolver returns a Resolver over the given verifier and user store.
func NewResolver(verifier TokenVerifier, users UserFinder) *Resolver {
	return &Resolver{verifier: verifier, users: users}
}

// Resolve authenticates the credential and returns the internal user.
func (r *Resolver) Resolve(ctx context.Context, credential string) (*data.User, error) {
	if credential == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := r.verifier.Verify(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	user, err := r.users.FindByExternalID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, data.ErrUserNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return user, nil
}

// VerifyOnly authenticates the credential without requiring a linked internal
// user. The sync endpoint uses it to create the account on first contact.
func (r *Resolver) VerifyOnly(ctx context.Context, credential string) (*Claims, error) {
	if credential == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := r.verifier.Verify(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return claims, nil
}
