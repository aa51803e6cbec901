package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidSignature covers malformed tokens and tokens signed with another secret.
	ErrInvalidSignature = errors.New("invalid preview token")
	// ErrSignatureExpired is returned once a token outlives its TTL.
	ErrSignatureExpired = errors.New("preview token expired")
)

// PreviewClaims is the data carried by a preview token.
type PreviewClaims struct {
	OrderToken string
	Key        string
	ExpiresAt  time.Time
}

// SignedURLSigner creates and validates signed preview tokens for stored blobs.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate signs a token binding an order token to a blob key.
func (s *SignedURLSigner) Generate(orderToken, key string) (string, time.Time, error) {
	if orderToken == "" || key == "" {
		return "", time.Time{}, fmt.Errorf("order token and key required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	encodedKey := base64.RawURLEncoding.EncodeToString([]byte(key))
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	signature := s.sign(orderToken, ts, encodedKey)
	return strings.Join([]string{orderToken, ts, encodedKey, signature}, "."), expiresAt, nil
}

// Parse validates a token and returns its claims.
// When allowExpired is true the expiry check is skipped.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (PreviewClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return PreviewClaims{}, ErrInvalidSignature
	}
	orderToken, ts, encodedKey, signature := parts[0], parts[1], parts[2], parts[3]

	rawKey, err := base64.RawURLEncoding.DecodeString(encodedKey)
	if err != nil {
		return PreviewClaims{}, ErrInvalidSignature
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return PreviewClaims{}, ErrInvalidSignature
	}
	if !hmac.Equal([]byte(s.sign(orderToken, ts, encodedKey)), []byte(signature)) {
		return PreviewClaims{}, ErrInvalidSignature
	}

	claims := PreviewClaims{OrderToken: orderToken, Key: string(rawKey), ExpiresAt: time.Unix(expUnix, 0)}
	if !allowExpired && s.now().After(claims.ExpiresAt) {
		return PreviewClaims{}, ErrSignatureExpired
	}
	return claims, nil
}

// VerifyKey checks that token is valid, unexpired and issued for key.
func (s *SignedURLSigner) VerifyKey(token, key string) error {
	claims, err := s.Parse(token, false)
	if err != nil {
		return err
	}
	if claims.Key != key {
		return ErrInvalidSignature
	}
	return nil
}

func (s *SignedURLSigner) sign(orderToken, ts, encodedKey string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(orderToken + "|" + ts + "|" + encodedKey))
	return hex.EncodeToString(mac.Sum(nil))
}
