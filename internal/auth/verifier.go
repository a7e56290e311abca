// Package auth provides JWT verification helpers.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

const (
	ModeDev  = "dev"
	ModeHMAC = "hmac"

	RoleAdmin = "admin"
)

// Verifier validates bearer tokens and extracts the caller's role.
// Supports modes: dev (no verify, token is "subject:role") and hmac (HS256).
type Verifier struct {
	Mode       string
	HMACSecret []byte
}

type Principal struct {
	Subject string
	Role    string
}

// Claims is the token payload accepted in hmac mode.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func NewVerifier(mode, secret string) *Verifier {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = ModeDev
	}
	return &Verifier{Mode: mode, HMACSecret: []byte(secret)}
}

func (v *Verifier) Verify(token string) (Principal, error) {
	switch v.Mode {
	case ModeDev:
		parts := strings.SplitN(token, ":", 2)
		if len(parts) == 2 && parts[1] != "" {
			return Principal{Subject: parts[0], Role: strings.ToLower(parts[1])}, nil
		}
		return Principal{}, errors.New("invalid dev token; expected subject:role")
	case ModeHMAC:
		var claims Claims
		_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("unsupported alg %v", t.Header["alg"])
			}
			return v.HMACSecret, nil
		})
		if err != nil {
			return Principal{}, err
		}
		role := strings.ToLower(claims.Role)
		if role == "" {
			role = "user"
		}
		return Principal{Subject: claims.Subject, Role: role}, nil
	}
	return Principal{}, errors.New("unsupported auth mode")
}

// Sign issues an HS256 token; used by tooling and tests.
func (v *Verifier) Sign(subject, role string, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = subject
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: role, RegisteredClaims: claims})
	return tok.SignedString(v.HMACSecret)
}
