package repository

import (
	"context"

	"storecare/internal/domain/entity"
)

// IdentityProvider supplies the actor a screen runs as. A nil identity
// with a nil error means nobody is signed in.
type IdentityProvider interface {
	GetCurrentIdentity(ctx context.Context) (*entity.Identity, error)
}
