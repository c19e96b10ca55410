// Package oauthstate packs the CSRF state token used during the provider
// connect/callback handshake. The token is authenticated-encrypted
// (AES-256-GCM), so confidentiality and tamper detection come from one
// primitive. Everything the callback needs (tenant identity, return address,
// the PKCE verifier, issue time) survives the opaque round trip through the
// browser without server-side session state.
package oauthstate

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/Smashkat12/crechebooks-sub003/internal/domain/accounting"
)

// MinSecretLength is the shortest acceptable encryption secret. A shorter
// secret is a deployment defect: the codec constructor fails and the service
// refuses to start rather than failing lazily per request.
const MinSecretLength = 32

// DefaultMaxAge is how long an issued state token stays valid.
const DefaultMaxAge = 10 * time.Minute

// ErrSecretTooShort is returned at construction for a missing or short key.
var ErrSecretTooShort = fmt.Errorf("oauthstate: encryption secret must be at least %d bytes", MinSecretLength)

// Payload is the authenticated content of a state token. Nonce exists for
// uniqueness only: two encodings of the same logical payload never produce
// the same token, so tokens cannot be fingerprinted or correlated.
type Payload struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	ReturnURL string    `json:"return_url"`
	// CreatedAt is epoch milliseconds at encode time.
	CreatedAt int64  `json:"created_at"`
	Nonce     string `json:"nonce"`
	// CodeVerifier is the 43-128 char PKCE secret, present only for PKCE flows.
	CodeVerifier string `json:"code_verifier,omitempty"`
}

// Codec encrypts and authenticates state payloads.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec derives a 256-bit key from the configured secret via HKDF-SHA256
// and prepares the AEAD. It fails when the secret is missing or too short.
func NewCodec(secret string) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("crechebooks-oauth-state"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("oauthstate: key derivation failed: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("oauthstate: cipher init failed: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("oauthstate: GCM init failed: %w", err)
	}

	return &Codec{aead: aead}, nil
}

// Encode seals the payload into an opaque URL-safe token. It stamps
// CreatedAt and fills Nonce; a fresh GCM nonce per call guarantees distinct
// tokens for identical payloads.
func (c *Codec) Encode(payload Payload) (string, error) {
	if payload.CreatedAt == 0 {
		payload.CreatedAt = time.Now().UnixMilli()
	}
	if payload.Nonce == "" {
		nonce := make([]byte, 16)
		if _, err := rand.Read(nonce); err != nil {
			return "", fmt.Errorf("oauthstate: nonce generation failed: %w", err)
		}
		payload.Nonce = base64.RawURLEncoding.EncodeToString(nonce)
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("oauthstate: payload marshal failed: %w", err)
	}

	gcmNonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(gcmNonce); err != nil {
		return "", fmt.Errorf("oauthstate: nonce generation failed: %w", err)
	}

	sealed := c.aead.Seal(gcmNonce, gcmNonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode opens and validates a token. Malformed input and failed
// authentication both come back as the same generic "invalid or expired"
// error so callers cannot distinguish tamper from garbage; expiry alone is
// reported distinctly, as it is not a security-sensitive distinction.
func (c *Codec) Decode(token string, maxAge time.Duration) (*Payload, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) < c.aead.NonceSize()+c.aead.Overhead() {
		return nil, errInvalidState()
	}

	gcmNonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, gcmNonce, ciphertext, nil)
	if err != nil {
		return nil, errInvalidState()
	}

	var payload Payload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, errInvalidState()
	}

	age := time.Since(time.UnixMilli(payload.CreatedAt))
	if age > maxAge || age < -time.Minute {
		return nil, errExpiredState()
	}

	return &payload, nil
}

// DecodeWithPKCE decodes and additionally requires a PKCE verifier: a token
// issued for a non-PKCE flow is rejected.
func (c *Codec) DecodeWithPKCE(token string, maxAge time.Duration) (*Payload, error) {
	payload, err := c.Decode(token, maxAge)
	if err != nil {
		return nil, err
	}
	if len(payload.CodeVerifier) < verifierMinLength || len(payload.CodeVerifier) > verifierMaxLength {
		return nil, accounting.NewUnauthorizedStateError("state token was not issued for a PKCE flow")
	}
	return payload, nil
}

// stateExpiredCode marks the expiry case on the domain error so callers can
// recognise it without depending on message wording.
const stateExpiredCode = "STATE_EXPIRED"

func errInvalidState() error {
	return accounting.NewUnauthorizedStateError("invalid or expired state token")
}

func errExpiredState() error {
	err := accounting.NewUnauthorizedStateError("state token has expired")
	err.Code = stateExpiredCode
	return err
}

// IsExpiry reports whether a decode failure was the expiry case.
func IsExpiry(err error) bool {
	var domErr *accounting.Error
	return errors.As(err, &domErr) && domErr.Code == stateExpiredCode
}
