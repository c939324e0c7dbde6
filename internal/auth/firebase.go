package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

var ErrInvalidToken = errors.New("auth: invalid id token")

// TokenVerifier is the slice of the Firebase Auth client used here.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

type Verifier struct {
	tokens TokenVerifier
}

func NewVerifier(tokens TokenVerifier) *Verifier {
	return &Verifier{tokens: tokens}
}

// NewFirebaseVerifier initializes a Firebase app for projectID.
func NewFirebaseVerifier(ctx context.Context, projectID string, opts ...option.ClientOption) (*Verifier, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app init: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth init: %w", err)
	}
	return NewVerifier(client), nil
}

// Verify checks a Firebase ID token and returns the caller. The custom
// claim "admin" set to true grants the admin role.
func (v *Verifier) Verify(ctx context.Context, idToken string) (Principal, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return Principal{}, ErrInvalidToken
	}

	token, err := v.tokens.VerifyIDToken(ctx, idToken)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	uid := strings.TrimSpace(token.UID)
	if uid == "" {
		return Principal{}, fmt.Errorf("%w: empty uid", ErrInvalidToken)
	}

	p := Principal{
		UserID: uid,
		Name:   claimString(token.Claims, "name"),
		Email:  claimString(token.Claims, "email"),
	}
	if admin, ok := token.Claims["admin"].(bool); ok {
		p.Admin = admin
	}
	return p, nil
}

func claimString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
