package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"storecare/internal/domain/entity"
	"storecare/internal/domain/repository"
	"storecare/pkg/errors"
)

const roleClaim = "role"

// TokenVerifier is satisfied by *auth.Client and FirebaseAuthClient.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// TokenIdentityProvider resolves the identity behind one Firebase ID token,
// the token a screen session was opened with.
type TokenIdentityProvider struct {
	verifier TokenVerifier
	idToken  string
}

var _ repository.IdentityProvider = (*TokenIdentityProvider)(nil)

func NewTokenIdentityProvider(verifier TokenVerifier, idToken string) *TokenIdentityProvider {
	return &TokenIdentityProvider{
		verifier: verifier,
		idToken:  idToken,
	}
}

func (p *TokenIdentityProvider) GetCurrentIdentity(ctx context.Context) (*entity.Identity, error) {
	if p.idToken == "" {
		return nil, nil
	}

	token, err := p.verifier.VerifyIDToken(ctx, p.idToken)
	if err != nil {
		return nil, errors.Unauthorized("Invalid or expired token", err)
	}

	return IdentityFromToken(token), nil
}

// IdentityFromToken maps a verified token to an Identity. The "staff" and
// "admin" role claims both map to staff; anything else is a customer.
func IdentityFromToken(token *auth.Token) *entity.Identity {
	role := entity.RoleCustomer
	if r, ok := token.Claims[roleClaim].(string); ok && (r == "staff" || r == "admin") {
		role = entity.RoleStaff
	}
	email, _ := token.Claims["email"].(string)

	return &entity.Identity{
		ID:    token.UID,
		Email: email,
		Role:  role,
	}
}
