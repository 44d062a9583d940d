package authzutil

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidCSRFToken = errors.New("invalid csrf token")
	ErrExpiredCSRFToken = errors.New("csrf token expired")
	ErrEmptyCSRFSecret  = errors.New("csrf secret is empty")
)

type csrfTokenPayload struct {
	UserID    string `json:"uid"`
	ExpiresAt int64  `json:"exp"`
	Nonce     string `json:"nonce"`
}

// CSRFTokens issues self-contained tokens bound to one user; nothing is stored
// server-side.
type CSRFTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewCSRFTokens(secret string, ttl time.Duration) (*CSRFTokens, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrEmptyCSRFSecret
	}
	return &CSRFTokens{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (t *CSRFTokens) TTL() time.Duration { return t.ttl }

func (t *CSRFTokens) Generate(userID uuid.UUID) (string, time.Time, error) {
	if userID == uuid.Nil {
		return "", time.Time{}, ErrInvalidCSRFToken
	}
	expiresAt := t.now().Add(t.ttl)
	raw, err := json.Marshal(csrfTokenPayload{
		UserID:    userID.String(),
		ExpiresAt: expiresAt.Unix(),
		Nonce:     uuid.NewString(),
	})
	if err != nil {
		return "", time.Time{}, err
	}
	encoded := base64.RawURLEncoding.EncodeToString(raw)
	return encoded + "." + t.sign(encoded), expiresAt, nil
}

// Validate checks signature, expiration and user binding.
func (t *CSRFTokens) Validate(token string, userID uuid.UUID) error {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 2 {
		return ErrInvalidCSRFToken
	}
	if !hmac.Equal([]byte(t.sign(parts[0])), []byte(parts[1])) {
		return ErrInvalidCSRFToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return ErrInvalidCSRFToken
	}
	var parsed csrfTokenPayload
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ErrInvalidCSRFToken
	}
	if parsed.UserID != userID.String() {
		return ErrInvalidCSRFToken
	}
	if !time.Unix(parsed.ExpiresAt, 0).After(t.now()) {
		return ErrExpiredCSRFToken
	}
	return nil
}

func (t *CSRFTokens) sign(payload string) string {
	mac := hmac.New(sha256.New, t.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
