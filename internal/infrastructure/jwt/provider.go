package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/claytile-api/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

// UploadClaims binds a delegated upload to the object it may create.
type UploadClaims struct {
	Key           string `json:"key"`
	UploadID      string `json:"upload_id,omitempty"`
	Filename      string `json:"filename"`
	ContentType   string `json:"content_type"`
	Size          int64  `json:"size"`
	ClientPayload string `json:"client_payload,omitempty"`
	UploadedBy    string `json:"uploaded_by,omitempty"`
	jwt.RegisteredClaims
}

// Provider signs and verifies RS256 upload grants.
type Provider struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	expiry     time.Duration
	now        func() time.Time
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	if err := checkPair(privKey, pubKey); err != nil {
		return nil, err
	}

	return NewProviderFromKeys(privKey, pubKey, cfg.JWTExpiry), nil
}

// NewProviderFromKeys builds a Provider from already parsed keys.
func NewProviderFromKeys(priv *rsa.PrivateKey, pub *rsa.PublicKey, expiry time.Duration) *Provider {
	return &Provider{privateKey: priv, publicKey: pub, expiry: expiry, now: time.Now}
}

func checkPair(priv *rsa.PrivateKey, pub *rsa.PublicKey) error {
	if !priv.PublicKey.Equal(pub) {
		return errors.New("public key does not match private key")
	}
	return nil
}

// Sign issues a grant for claims, stamping issue and expiry times.
func (p *Provider) Sign(claims UploadClaims) (string, time.Time, error) {
	now := p.now()
	expiresAt := now.Add(p.expiry)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.Key,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(p.privateKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (p *Provider) Verify(tokenStr string) (*UploadClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &UploadClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.publicKey, nil
	}, jwt.WithTimeFunc(p.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*UploadClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
