package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifySecret(t *testing.T) {
	t.Parallel()

	hash, err := HashSecret("some-refresh-token")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	require.NoError(t, VerifySecret("some-refresh-token", hash))
	require.ErrorIs(t, VerifySecret("some-other-token", hash), ErrSecretMismatch)
}

func TestHashSecretSalted(t *testing.T) {
	t.Parallel()

	a, err := HashSecret("same-secret")
	require.NoError(t, err)
	b, err := HashSecret("same-secret")
	require.NoError(t, err)

	// Fresh salt per hash; both must still verify.
	require.NotEqual(t, a, b)
	require.NoError(t, VerifySecret("same-secret", a))
	require.NoError(t, VerifySecret("same-secret", b))
}

func TestVerifySecretRejectsMangledHashes(t *testing.T) {
	t.Parallel()

	for _, h := range []string{
		"",
		"not-a-hash",
		"$argon2i$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=bad$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=19456,t=2,p=1$!!$aGFzaA",
	} {
		require.Error(t, VerifySecret("secret", h), "hash %q", h)
	}
}

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	a, err := GenerateToken(TokenSize128)
	require.NoError(t, err)
	b, err := GenerateToken(TokenSize128)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Len(t, a, 22) // 16 bytes base64url without padding

	_, err = GenerateToken(0)
	require.Error(t, err)
}
