package oauthstate

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Smashkat12/crechebooks-sub003/internal/domain/accounting"
)

const testSecret = "0123456789abcdef0123456789abcdef" // 32 bytes

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec(testSecret)
	require.NoError(t, err)
	return codec
}

func TestNewCodecRejectsShortSecret(t *testing.T) {
	for _, secret := range []string{"", "short", strings.Repeat("x", 31)} {
		_, err := NewCodec(secret)
		assert.ErrorIs(t, err, ErrSecretTooShort, "secret %q", secret)
	}

	_, err := NewCodec(strings.Repeat("x", 32))
	assert.NoError(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	in := Payload{
		TenantID:  uuid.New(),
		ReturnURL: "https://app.crechebooks.co.za/settings/accounting",
	}
	token, err := codec.Encode(in)
	require.NoError(t, err)

	out, err := codec.Decode(token, DefaultMaxAge)
	require.NoError(t, err)
	assert.Equal(t, in.TenantID, out.TenantID)
	assert.Equal(t, in.ReturnURL, out.ReturnURL)
	assert.NotZero(t, out.CreatedAt)
	assert.NotEmpty(t, out.Nonce)
}

func TestEncodeNeverRepeats(t *testing.T) {
	codec := newTestCodec(t)

	in := Payload{TenantID: uuid.New(), ReturnURL: "https://example.test/return"}
	first, err := codec.Encode(in)
	require.NoError(t, err)
	second, err := codec.Encode(in)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestDecodeRejectsTampering(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Encode(Payload{TenantID: uuid.New(), ReturnURL: "https://example.test"})
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)

	// Flipping any single bit anywhere in the token must fail authentication.
	for _, pos := range []int{0, len(raw) / 2, len(raw) - 1} {
		mutated := make([]byte, len(raw))
		copy(mutated, raw)
		mutated[pos] ^= 0x01

		_, err := codec.Decode(base64.RawURLEncoding.EncodeToString(mutated), DefaultMaxAge)
		require.Error(t, err, "bit flip at %d", pos)

		var domErr *accounting.Error
		require.True(t, errors.As(err, &domErr))
		assert.Equal(t, accounting.ErrorKindUnauthorizedState, domErr.Kind)
		assert.False(t, IsExpiry(err), "tamper must not be reported as expiry")
	}
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	codec := newTestCodec(t)

	for _, token := range []string{"", "x", "!!not-base64!!", base64.RawURLEncoding.EncodeToString([]byte("tiny"))} {
		_, err := codec.Decode(token, DefaultMaxAge)
		require.Error(t, err, "token %q", token)
		assert.Equal(t, accounting.ErrorKindUnauthorizedState, accounting.KindOf(err))
	}
}

func TestDecodeRejectsExpiredToken(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Encode(Payload{
		TenantID:  uuid.New(),
		ReturnURL: "https://example.test",
		CreatedAt: time.Now().Add(-11 * time.Minute).UnixMilli(),
	})
	require.NoError(t, err)

	_, err = codec.Decode(token, 10*time.Minute)
	require.Error(t, err)
	assert.True(t, IsExpiry(err))
	assert.Equal(t, accounting.ErrorKindUnauthorizedState, accounting.KindOf(err))

	// A wider max age accepts the same token.
	_, err = codec.Decode(token, time.Hour)
	assert.NoError(t, err)
}

func TestIsExpiryRecognisedByErrorCode(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Encode(Payload{
		TenantID:  uuid.New(),
		ReturnURL: "https://example.test",
		CreatedAt: time.Now().Add(-11 * time.Minute).UnixMilli(),
	})
	require.NoError(t, err)

	_, err = codec.Decode(token, 10*time.Minute)
	require.Error(t, err)

	var domErr *accounting.Error
	require.True(t, errors.As(err, &domErr))
	assert.Equal(t, "STATE_EXPIRED", domErr.Code)

	// An error with the same kind and wording but a different code is not
	// the expiry case. Detection must not hang on message text.
	lookalike := accounting.NewUnauthorizedStateError("state token has expired")
	assert.False(t, IsExpiry(lookalike))
}

func TestDecodeRejectsFutureToken(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Encode(Payload{
		TenantID:  uuid.New(),
		ReturnURL: "https://example.test",
		CreatedAt: time.Now().Add(5 * time.Minute).UnixMilli(),
	})
	require.NoError(t, err)

	_, err = codec.Decode(token, 10*time.Minute)
	assert.Error(t, err)
}

func TestDecodeWithPKCE(t *testing.T) {
	codec := newTestCodec(t)

	t.Run("verifier survives the round trip", func(t *testing.T) {
		verifier, err := GenerateCodeVerifier()
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(verifier), 43)
		require.LessOrEqual(t, len(verifier), 128)

		token, err := codec.Encode(Payload{
			TenantID:     uuid.New(),
			ReturnURL:    "https://example.test",
			CodeVerifier: verifier,
		})
		require.NoError(t, err)

		out, err := codec.DecodeWithPKCE(token, DefaultMaxAge)
		require.NoError(t, err)
		assert.Equal(t, verifier, out.CodeVerifier)
	})

	t.Run("token without verifier rejected", func(t *testing.T) {
		token, err := codec.Encode(Payload{TenantID: uuid.New(), ReturnURL: "https://example.test"})
		require.NoError(t, err)

		_, err = codec.DecodeWithPKCE(token, DefaultMaxAge)
		require.Error(t, err)
		assert.Equal(t, accounting.ErrorKindUnauthorizedState, accounting.KindOf(err))

		// Plain decode still accepts it.
		_, err = codec.Decode(token, DefaultMaxAge)
		assert.NoError(t, err)
	})
}

func TestCodeChallengeS256(t *testing.T) {
	// RFC 7636 appendix B test vector.
	challenge := CodeChallengeS256("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk")
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", challenge)
}

func TestGenerateCodeVerifierIsUnique(t *testing.T) {
	a, err := GenerateCodeVerifier()
	require.NoError(t, err)
	b, err := GenerateCodeVerifier()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCodecsWithDifferentSecretsAreIncompatible(t *testing.T) {
	codecA := newTestCodec(t)
	codecB, err := NewCodec(strings.Repeat("z", 32))
	require.NoError(t, err)

	token, err := codecA.Encode(Payload{TenantID: uuid.New(), ReturnURL: "https://example.test"})
	require.NoError(t, err)

	_, err = codecB.Decode(token, DefaultMaxAge)
	assert.Error(t, err)
}
