package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// User is the identity produced by the external sign-in provider: a stable
// opaque id and a display name.
type User struct {
	ID   string
	Name string
}

// Provider is the sign-in collaborator contract. Implementations live
// outside this repo (OAuth popup, SSO, ...); they either return a User or
// fail with a provider error code.
type Provider interface {
	CurrentUser(ctx context.Context) (User, error)
}

// Minter derives a channel-unique participant identity from a stable user
// id. Every call returns a fresh value; a colliding identity must never be
// handed out twice.
type Minter func(base string) string

// Default mints "<base>-<8 hex chars>" with a random uuid suffix.
func Default(base string) string {
	return fmt.Sprintf("%s-%s", base, uuid.NewString()[:8])
}
