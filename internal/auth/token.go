package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math"
	"strings"

	"github.com/lamgaraproperties/lamgara-web/internal/cryptoutil"
)

// tokenHeader is the fixed first segment, matching what golang-jwt emits for
// HS256 so tokens from either signer verify with the other.
var tokenHeader = b64([]byte(`{"alg":"HS256","typ":"JWT"}`))

var b64 = base64.RawURLEncoding.EncodeToString

// MAC is a keyed tag over the signing input. The local secret and
// cryptoutil.KMSMAC both satisfy it.
type MAC interface {
	Sum(ctx context.Context, msg []byte) ([]byte, error)
	Verify(ctx context.Context, msg, tag []byte) (bool, error)
}

// segmentSigner implements TokenSigner over any mac.
type segmentSigner struct{ mac MAC }

func (s segmentSigner) Sign(ctx context.Context, c Claims) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	input := tokenHeader + "." + b64(payload)
	tag, err := s.mac.Sum(ctx, []byte(input))
	if err != nil {
		return "", err
	}
	return input + "." + b64(tag), nil
}

func (s segmentSigner) Verify(ctx context.Context, token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, ErrInvalidToken
	}
	tag, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	ok, err := s.mac.Verify(ctx, []byte(parts[0]+"."+parts[1]), tag)
	if err != nil {
		return Claims{}, err
	}
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	return decodeClaims(parts[1])
}

// wireClaims keeps the time fields raw so any JSON number is accepted while
// strings, null and a missing exp are rejected.
type wireClaims struct {
	Subject   string          `json:"sub"`
	IssuedAt  json.RawMessage `json:"iat"`
	ExpiresAt json.RawMessage `json:"exp"`
}

func decodeClaims(seg string) (Claims, error) {
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	var w wireClaims
	if err := json.Unmarshal(raw, &w); err != nil {
		return Claims{}, ErrInvalidToken
	}
	exp, ok := seconds(w.ExpiresAt)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	iat, _ := seconds(w.IssuedAt)
	return Claims{Subject: w.Subject, IssuedAt: iat, ExpiresAt: exp}, nil
}

func seconds(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 || raw[0] == '"' {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil || n == "" {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		return i, true
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(math.Floor(f)), true
}

// localMAC is HMAC-SHA256 with an in-process secret.
type localMAC []byte

func (k localMAC) Sum(_ context.Context, msg []byte) ([]byte, error) {
	return cryptoutil.HMACSHA256(k, msg), nil
}

func (k localMAC) Verify(_ context.Context, msg, tag []byte) (bool, error) {
	return cryptoutil.BytesEqual(cryptoutil.HMACSHA256(k, msg), tag), nil
}

// HMACSigner signs with a shared secret held in process memory.
type HMACSigner struct{ segmentSigner }

func NewHMACSigner(secret []byte) *HMACSigner {
	k := make(localMAC, len(secret))
	copy(k, secret)
	return &HMACSigner{segmentSigner{mac: k}}
}

// KMSSigner delegates the HMAC to a KMS GENERATE_VERIFY_MAC key.
type KMSSigner struct{ segmentSigner }

func NewKMSSigner(m MAC) *KMSSigner {
	return &KMSSigner{segmentSigner{mac: m}}
}
