package oauthstate

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// RFC 7636 bounds for the code verifier.
const (
	verifierMinLength = 43
	verifierMaxLength = 128
)

// GenerateCodeVerifier produces a high-entropy PKCE code verifier. 48 random
// bytes encode to 64 URL-safe characters, comfortably inside the RFC bounds.
func GenerateCodeVerifier() (string, error) {
	raw := make([]byte, 48)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("oauthstate: verifier generation failed: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// CodeChallengeS256 derives the S256 code challenge sent on the authorize
// redirect from a verifier.
func CodeChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
