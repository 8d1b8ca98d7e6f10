// Package auth issues and verifies caller identity tokens. Tokens are
// RSA-PSS (PS256) signed JWTs whose subject is the caller's account id.
package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rickgao/escrow-market/internal/model"
)

// DefaultTokenTTL is used when an Issuer is given no TTL.
const DefaultTokenTTL = time.Hour

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// LoadPrivateKey loads an RSA private key from a PEM file.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	block, err := readPEM(path)
	if err != nil {
		return nil, err
	}

	// Try PKCS#8 first (newer format)
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("key is not an RSA private key")
		}
		return rsaKey, nil
	}

	// Fall back to PKCS#1 (older format)
	rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return rsaKey, nil
}

// LoadPublicKey loads an RSA public key from a PEM file holding either a
// PKIX public key or a private key.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	block, err := readPEM(path)
	if err != nil {
		return nil, err
	}

	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("key is not an RSA public key")
		}
		return rsaKey, nil
	}
	if rsaKey, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return rsaKey, nil
	}

	priv, err := LoadPrivateKey(path)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return &priv.PublicKey, nil
}

func readPEM(path string) (*pem.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}
	return block, nil
}

// Issuer signs caller tokens.
type Issuer struct {
	Name       string
	PrivateKey *rsa.PrivateKey
	TTL        time.Duration
	Now        func() time.Time
}

// LoadIssuer loads an issuer from its name and private key file path.
func LoadIssuer(name, privateKeyPath string, ttl time.Duration) (*Issuer, error) {
	if name == "" {
		return nil, fmt.Errorf("issuer is required")
	}
	if privateKeyPath == "" {
		return nil, fmt.Errorf("private key path is required")
	}

	key, err := LoadPrivateKey(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}

	return &Issuer{Name: name, PrivateKey: key, TTL: ttl}, nil
}

// SignToken returns a token naming account as its subject.
func (i *Issuer) SignToken(account model.AccountID) (string, error) {
	now := time.Now
	if i.Now != nil {
		now = i.Now
	}
	ttl := i.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	issued := now()
	claims := jwt.RegisteredClaims{
		Issuer:    i.Name,
		Subject:   account.String(),
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		ID:        uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodPS256, claims).SignedString(i.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verifier checks caller tokens.
type Verifier struct {
	Issuer    string
	PublicKey *rsa.PublicKey
	Now       func() time.Time
}

// LoadVerifier loads a verifier from its expected issuer and public key
// file path.
func LoadVerifier(issuer, publicKeyPath string) (*Verifier, error) {
	if publicKeyPath == "" {
		return nil, fmt.Errorf("public key path is required")
	}

	key, err := LoadPublicKey(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load public key: %w", err)
	}

	return &Verifier{Issuer: issuer, PublicKey: key}, nil
}

// Verify checks the token signature, issuer and expiry and returns the
// subject account. Every failure wraps ErrInvalidToken.
func (v *Verifier) Verify(token string) (model.AccountID, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodPS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	if v.Now != nil {
		opts = append(opts, jwt.WithTimeFunc(v.Now))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.PublicKey, nil
	}, opts...)
	if err != nil {
		return model.ZeroAccount, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	account, err := model.ParseAccountID(claims.Subject)
	if err != nil {
		return model.ZeroAccount, fmt.Errorf("%w: subject: %w", ErrInvalidToken, err)
	}
	if account.IsZero() {
		return model.ZeroAccount, fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	return account, nil
}
