package pairing

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTTL is how long a controller token stays valid. Pairing again with
// the setup code issues a fresh one.
const TokenTTL = 30 * 24 * time.Hour

const tokenSecretBytes = 32

// Claims identify a paired controller. The subject is its controller ID.
type Claims struct {
	jwt.RegisteredClaims
	Admin bool `json:"adm"`
}

// ControllerID returns the paired controller the token was issued to.
func (c *Claims) ControllerID() string { return c.Subject }

func generateTokenSecret() ([]byte, error) {
	b := make([]byte, tokenSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating token secret: %w", err)
	}
	return b, nil
}

func signToken(secret []byte, issuer string, p Pairing, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   p.ControllerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			ID:        uuid.NewString(),
		},
		Admin: p.Admin,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signing controller token: %w", err)
	}
	return signed, nil
}

func parseToken(raw string, secret []byte, issuer string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// IssueToken signs a token for a paired controller.
func (m *Manager) IssueToken(ctx context.Context, controllerID string) (string, error) {
	p, err := m.lookup(ctx, controllerID)
	if err != nil {
		return "", err
	}
	return signToken(m.identity.TokenSecret, m.identity.DeviceID, p, m.now())
}

// Authenticate checks a controller token. The controller must still be
// paired, so unpairing revokes its tokens, and the admin flag is taken from
// the stored pairing rather than the token.
func (m *Manager) Authenticate(ctx context.Context, raw string) (*Claims, error) {
	claims, err := parseToken(raw, m.identity.TokenSecret, m.identity.DeviceID)
	if err != nil {
		return nil, err
	}
	p, err := m.lookup(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: controller %s is no longer paired", ErrTokenRevoked, claims.Subject)
	}
	claims.Admin = p.Admin
	return claims, nil
}

func (m *Manager) lookup(ctx context.Context, controllerID string) (Pairing, error) {
	list, err := m.store.Pairings(ctx)
	if err != nil {
		return Pairing{}, err
	}
	for _, p := range list {
		if p.ControllerID == controllerID {
			return p, nil
		}
	}
	return Pairing{}, fmt.Errorf("%w: %s", ErrPairingNotFound, controllerID)
}
