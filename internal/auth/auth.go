// Package auth proves a caller holds the single admin credential and issues
// stateless bearer tokens for subsequent requests.
//
// Tokens are three base64url segments (header, claims, signature) in the
// HS256 JWT layout. Signing is behind [TokenSigner]; [HMACSigner],
// [JWTSigner] and [KMSSigner] produce interchangeable wire formats.
package auth

import (
	"context"
	"crypto/sha256"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/lamgaraproperties/lamgara-web/internal/cryptoutil"
	"github.com/lamgaraproperties/lamgara-web/internal/log"
)

// DefaultTokenTTL applies when Config.TokenTTL is zero.
const DefaultTokenTTL = 43200 * time.Second

var (
	ErrNotConfigured      = errors.New("admin auth is not configured")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// notConfigured matches ErrNotConfigured and the generic failure of the
// operation that hit it, so callers that only check the generic error still
// fail closed.
type notConfigured struct{ generic error }

func (e notConfigured) Error() string { return ErrNotConfigured.Error() }

func (e notConfigured) Is(target error) bool {
	return target == ErrNotConfigured || target == e.generic
}

// Config is the admin credential. It is copied into the Authenticator and
// never read from globals.
type Config struct {
	Username string
	Password string
	// PasswordHash wins over Password. Accepted forms: sha256 hex with an
	// optional "sha256:" or "sha256$" prefix, or a bcrypt hash.
	PasswordHash  string
	SigningSecret string
	TokenTTL      time.Duration
}

func (c Config) hasPassword() bool {
	return c.Password != "" || c.PasswordHash != ""
}

// Claims are the token payload fields, in epoch seconds.
type Claims struct {
	Subject   string `json:"sub"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// TokenSigner turns claims into a token and back. Verify checks structure and
// signature only; expiry is enforced by the Authenticator.
type TokenSigner interface {
	Sign(ctx context.Context, c Claims) (string, error)
	Verify(ctx context.Context, token string) (Claims, error)
}

type Token struct {
	Value     string
	ExpiresAt time.Time
}

type Identity struct {
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Authenticator struct {
	cfg    Config
	signer TokenSigner
	now    func() time.Time
}

type Option func(*Authenticator)

// WithSigner replaces the default HMACSigner built from Config.SigningSecret.
func WithSigner(s TokenSigner) Option {
	return func(a *Authenticator) { a.signer = s }
}

func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

func New(cfg Config, opts ...Option) *Authenticator {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	a := &Authenticator{cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	if a.signer == nil && cfg.SigningSecret != "" {
		a.signer = NewHMACSigner([]byte(cfg.SigningSecret))
	}
	return a
}

// Configured reports whether username, a password source and a signer are
// all present.
func (a *Authenticator) Configured() bool {
	return a.cfg.Username != "" && a.cfg.hasPassword() && a.signer != nil
}

// TokenTTL is the lifetime given to issued tokens.
func (a *Authenticator) TokenTTL() time.Duration { return a.cfg.TokenTTL }

// Login checks both factors and issues a token. Any mismatch returns
// ErrInvalidCredentials without saying which factor failed.
func (a *Authenticator) Login(ctx context.Context, username, password string) (Token, error) {
	if !a.Configured() {
		return Token{}, notConfigured{ErrInvalidCredentials}
	}

	// evaluate both so timing does not reveal which one failed
	userOK := digestEqual(username, a.cfg.Username)
	passOK := a.passwordMatches(password)
	if !userOK || !passOK {
		return Token{}, ErrInvalidCredentials
	}

	now := a.now()
	exp := now.Add(a.cfg.TokenTTL)
	value, err := a.signer.Sign(ctx, Claims{
		Subject:   a.cfg.Username,
		IssuedAt:  now.Unix(),
		ExpiresAt: exp.Unix(),
	})
	if err != nil {
		return Token{}, err
	}
	return Token{Value: value, ExpiresAt: time.Unix(exp.Unix(), 0).UTC()}, nil
}

// Verify returns the identity carried by a token whose signature is valid
// and whose expiry lies strictly in the future.
func (a *Authenticator) Verify(ctx context.Context, token string) (Identity, error) {
	if !a.Configured() {
		return Identity{}, notConfigured{ErrInvalidToken}
	}
	c, err := a.signer.Verify(ctx, token)
	if err != nil {
		if !errors.Is(err, ErrInvalidToken) {
			// signer backend failure, not a bad token
			log.FromContext(ctx).Error(ctx, err, "token verification failed")
		}
		return Identity{}, ErrInvalidToken
	}
	if c.ExpiresAt <= a.now().Unix() {
		return Identity{}, ErrInvalidToken
	}
	return Identity{
		Username:  c.Subject,
		IssuedAt:  time.Unix(c.IssuedAt, 0).UTC(),
		ExpiresAt: time.Unix(c.ExpiresAt, 0).UTC(),
	}, nil
}

func (a *Authenticator) passwordMatches(password string) bool {
	if stored := strings.TrimSpace(a.cfg.PasswordHash); stored != "" {
		if isBcrypt(stored) {
			return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
		}
		return cryptoutil.HashEqual(cryptoutil.SHA256Hex([]byte(password)), NormalizeSHA256(stored))
	}
	return digestEqual(password, a.cfg.Password)
}

// digestEqual compares fixed-size digests so the comparison time does not
// depend on where or whether the lengths differ.
func digestEqual(a, b string) bool {
	da := sha256.Sum256([]byte(a))
	db := sha256.Sum256([]byte(b))
	return cryptoutil.BytesEqual(da[:], db[:])
}

func isBcrypt(h string) bool {
	return strings.HasPrefix(h, "$2a$") || strings.HasPrefix(h, "$2b$") || strings.HasPrefix(h, "$2y$")
}

// NormalizeSHA256 trims h, strips a "sha256:" or "sha256$" prefix and
// lower-cases the hex.
func NormalizeSHA256(h string) string {
	h = strings.TrimSpace(h)
	lower := strings.ToLower(h)
	for _, p := range []string{"sha256:", "sha256$"} {
		if strings.HasPrefix(lower, p) {
			lower = lower[len(p):]
			break
		}
	}
	return lower
}
