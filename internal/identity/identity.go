// Package identity resolves who the local participant is: either a
// fixed identity supplied by configuration, or one obtained by trading
// a Google ID token for an application token.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the resolved local participant.
type Identity struct {
	UserID   string
	Username string
	Email    string
	Token    string // application JWT, empty for static identities
}

// Provider yields the participant identity used for sessions, uploads
// and room operations.
type Provider interface {
	Identity(ctx context.Context) (*Identity, error)
}

// Static is a fixed identity, used for development and the CLI.
type Static struct {
	UserID   string
	Username string
}

// Identity returns the configured identity as-is.
func (s Static) Identity(ctx context.Context) (*Identity, error) {
	if s.UserID == "" {
		return nil, fmt.Errorf("static identity: user id is empty")
	}
	name := s.Username
	if name == "" {
		name = s.UserID
	}
	return &Identity{UserID: s.UserID, Username: name}, nil
}

// appClaims mirrors the claims the server embeds in issued tokens.
type appClaims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Exchanger trades a Google ID token for an application token by
// calling the server's credential endpoint, then reads the participant
// fields out of the returned JWT. The token is not verified locally;
// only the server holds the signing secret.
type Exchanger struct {
	baseURL string
	idToken string
	http    *http.Client
}

// NewExchanger creates a provider backed by the credential endpoint
// under the API base URL.
func NewExchanger(baseURL, idToken string) *Exchanger {
	return &Exchanger{
		baseURL: strings.TrimRight(baseURL, "/"),
		idToken: idToken,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Identity performs the exchange and returns the authenticated
// participant.
func (e *Exchanger) Identity(ctx context.Context) (*Identity, error) {
	body, err := json.Marshal(map[string]string{"id_token": e.idToken})
	if err != nil {
		return nil, fmt.Errorf("encode credential request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/auth/google", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build credential request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("credential exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("credential exchange: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode credential response: %w", err)
	}
	if out.Token == "" {
		return nil, fmt.Errorf("credential exchange: empty token")
	}

	return FromToken(out.Token)
}

// FromToken reads the participant fields out of an application token
// without verifying its signature.
func FromToken(token string) (*Identity, error) {
	var claims appClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("parse app token: %w", err)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("app token: missing user_id claim")
	}

	name := claims.Username
	if name == "" {
		name = claims.Email
	}
	return &Identity{
		UserID:   claims.UserID,
		Username: name,
		Email:    claims.Email,
		Token:    token,
	}, nil
}
