package auth

import (
	"context"
	"errors"

	"google.golang.org/api/idtoken"
)

var ErrInvalidGoogleToken = errors.New("invalid google id token")

// GoogleUserInfo is the verified identity from a Google ID token.
type GoogleUserInfo struct {
	ID            string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// GoogleAuthenticator verifies Google ID tokens against our client id.
type GoogleAuthenticator struct {
	clientID string
}

// NewGoogleAuthenticator creates a GoogleAuthenticator.
func NewGoogleAuthenticator(clientID string) *GoogleAuthenticator {
	return &GoogleAuthenticator{clientID: clientID}
}

// VerifyIDToken validates the token and extracts the user profile.
func (g *GoogleAuthenticator) VerifyIDToken(ctx context.Context, idToken string) (*GoogleUserInfo, error) {
	payload, err := idtoken.Validate(ctx, idToken, g.clientID)
	if err != nil {
		return nil, ErrInvalidGoogleToken
	}

	emailVerified, _ := payload.Claims["email_verified"].(bool)
	if !emailVerified {
		return nil, errors.New("email not verified")
	}

	email, _ := payload.Claims["email"].(string)
	return &GoogleUserInfo{
		ID:            payload.Subject,
		Email:         email,
		EmailVerified: emailVerified,
		Name:          getStringClaim(payload.Claims, "name"),
		Picture:       getStringClaim(payload.Claims, "picture"),
	}, nil
}

func getStringClaim(claims map[string]interface{}, key string) string {
	if val, ok := claims[key].(string); ok {
		return val
	}
	return ""
}
