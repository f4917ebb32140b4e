package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/clubledger/pkg/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
)

const (
	bearerPrefix     = "bearer "
	defaultTokenTTL  = time.Hour
	minSigningKeyLen = 16
)

var (
	// ErrMissingToken is returned when a request carries no bearer token.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken is returned for tokens that fail signature, issuer or expiry checks.
	ErrInvalidToken = errors.New("invalid bearer token")
	// ErrInvalidAuthConfig is returned by NewAuthenticator for unusable settings.
	ErrInvalidAuthConfig = errors.New("invalid auth config")
)

// Config configures token issuance and verification.
type Config struct {
	SigningKey []byte
	Issuer     string
	TokenTTL   time.Duration
}

// Authenticator issues and verifies HS256 tokens whose subject is an account address.
type Authenticator struct {
	signingKey []byte
	issuer     string
	tokenTTL   time.Duration
	nowFn      func() time.Time
}

// Option customizes an Authenticator.
type Option func(*Authenticator)

// WithClock overrides the wall clock used for issuance and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(authenticator *Authenticator) {
		if now != nil {
			authenticator.nowFn = now
		}
	}
}

// NewAuthenticator validates cfg and returns an Authenticator.
func NewAuthenticator(cfg Config, options ...Option) (*Authenticator, error) {
	if len(cfg.SigningKey) < minSigningKeyLen {
		return nil, fmt.Errorf("%w: signing key must be at least %d bytes", ErrInvalidAuthConfig, minSigningKeyLen)
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, fmt.Errorf("%w: issuer is required", ErrInvalidAuthConfig)
	}
	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	authenticator := &Authenticator{
		signingKey: append([]byte(nil), cfg.SigningKey...),
		issuer:     cfg.Issuer,
		tokenTTL:   tokenTTL,
		nowFn:      func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		if option != nil {
			option(authenticator)
		}
	}
	return authenticator, nil
}

// Issue signs a token for account.
func (authenticator *Authenticator) Issue(account common.Address) (string, error) {
	if account == (common.Address{}) {
		return "", fmt.Errorf("%w: account", ledger.ErrInvalidAddress)
	}
	issuedAt := authenticator.nowFn()
	claims := jwt.RegisteredClaims{
		Issuer:    authenticator.issuer,
		Subject:   account.Hex(),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(authenticator.tokenTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(authenticator.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks a raw token and returns the account it was issued to.
func (authenticator *Authenticator) Verify(rawToken string) (common.Address, error) {
	if strings.TrimSpace(rawToken) == "" {
		return common.Address{}, ErrMissingToken
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
		return authenticator.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(authenticator.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(authenticator.nowFn),
	)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	account, err := ledger.NewAccountAddress(claims.Subject)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: subject: %v", ErrInvalidToken, err)
	}
	return account, nil
}

// VerifyHeader extracts the bearer token from an Authorization header value and verifies it.
func (authenticator *Authenticator) VerifyHeader(header string) (common.Address, error) {
	rawToken, err := BearerToken(header)
	if err != nil {
		return common.Address{}, err
	}
	return authenticator.Verify(rawToken)
}

// BearerToken returns the token of an "Authorization: Bearer <token>" header value.
func BearerToken(header string) (string, error) {
	trimmed := strings.TrimSpace(header)
	if len(trimmed) <= len(bearerPrefix) || !strings.EqualFold(trimmed[:len(bearerPrefix)], bearerPrefix) {
		return "", ErrMissingToken
	}
	rawToken := strings.TrimSpace(trimmed[len(bearerPrefix):])
	if rawToken == "" {
		return "", ErrMissingToken
	}
	return rawToken, nil
}
