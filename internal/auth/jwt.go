package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTSigner produces the same HS256 tokens as HMACSigner using golang-jwt.
type JWTSigner struct {
	secret []byte
	parser *jwt.Parser
}

func NewJWTSigner(secret []byte) *JWTSigner {
	k := make([]byte, len(secret))
	copy(k, secret)
	return &JWTSigner{
		secret: k,
		// expiry is enforced by the Authenticator against its own clock
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
}

func (s *JWTSigner) Sign(_ context.Context, c Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   c.Subject,
		IssuedAt:  jwt.NewNumericDate(time.Unix(c.IssuedAt, 0)),
		ExpiresAt: jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0)),
	})
	return tok.SignedString(s.secret)
}

func (s *JWTSigner) Verify(_ context.Context, token string) (Claims, error) {
	var rc jwt.RegisteredClaims
	_, err := s.parser.ParseWithClaims(token, &rc, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	if rc.ExpiresAt == nil {
		return Claims{}, ErrInvalidToken
	}
	c := Claims{Subject: rc.Subject, ExpiresAt: rc.ExpiresAt.Unix()}
	if rc.IssuedAt != nil {
		c.IssuedAt = rc.IssuedAt.Unix()
	}
	return c, nil
}
