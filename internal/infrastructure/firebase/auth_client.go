package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"storecare/internal/domain/entity"
)

// FirebaseAuthClient is the slice of Firebase Auth the gateway uses.
type FirebaseAuthClient struct {
	client *auth.Client
}

func NewFirebaseAuthClient(client *auth.Client) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

func (f *FirebaseAuthClient) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	return f.client.VerifyIDToken(ctx, idToken)
}

// SetRole stores role as the "role" custom claim. It takes effect the
// next time the user's ID token is refreshed.
func (f *FirebaseAuthClient) SetRole(ctx context.Context, uid string, role entity.Role) error {
	user, err := f.client.GetUser(ctx, uid)
	if err != nil {
		return err
	}

	claims := make(map[string]interface{}, len(user.CustomClaims)+1)
	for k, v := range user.CustomClaims {
		claims[k] = v
	}
	claims[roleClaim] = string(role)

	return f.client.SetCustomUserClaims(ctx, uid, claims)
}

// TestConnection performs a cheap authenticated lookup. A "user not
// found" answer still proves the service is reachable.
func (f *FirebaseAuthClient) TestConnection(ctx context.Context) error {
	_, err := f.client.GetUser(ctx, "storecare-health-check")
	if err != nil && !auth.IsUserNotFound(err) {
		return err
	}
	return nil
}
