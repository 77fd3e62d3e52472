package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims identify an authenticated user.
type Claims struct {
	ID    int    `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
}

type signedClaims struct {
	Claims    string `json:"claims"`
	Signature string `json:"signature"`
}

// Bearer encodes the claims as a signed, base64 bearer token.
func (s *Signer) Bearer(c Claims) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	sc := signedClaims{
		Claims:    string(payload),
		Signature: s.sign(payload),
	}
	raw, err := json.Marshal(sc)
	if err != nil {
		return "", fmt.Errorf("marshal signed claims: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// VerifyBearer decodes a bearer token and checks its signature.
func (s *Signer) VerifyBearer(token string) (Claims, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	var sc signedClaims
	if err := json.Unmarshal(raw, &sc); err != nil {
		return Claims{}, ErrInvalidToken
	}
	if !s.verify([]byte(sc.Claims), sc.Signature) {
		return Claims{}, ErrInvalidToken
	}

	var claims Claims
	if err := json.Unmarshal([]byte(sc.Claims), &claims); err != nil {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
