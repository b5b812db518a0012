package bg

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptChallengeRoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	timestamps := []int64{0, 1, 1700000000000, time.Now().UnixMilli()}
	for _, ts := range timestamps {
		t.Run(fmt.Sprintf("ts_%d", ts), func(t *testing.T) {
			out, err := encryptChallengeWithKey(&key.PublicKey, ts)
			require.NoError(t, err)
			require.NotEmpty(t, out)

			ciphertext, err := hex.DecodeString(out)
			require.NoError(t, err, "output must be plain hex")

			plaintext, err := rsa.DecryptOAEP(sha256.New(), nil, key, ciphertext, nil)
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("refresh_%d", ts), string(plaintext))
		})
	}
}

func TestEncryptChallengeEmbeddedKey(t *testing.T) {
	out, err := EncryptChallenge(1700000000000)
	require.NoError(t, err)

	// 1024-bit key, so 128 ciphertext bytes, 256 hex digits, lowercase.
	assert.Regexp(t, "^[0-9a-f]{256}$", out)
}

func TestEncryptChallengeOutputDiffers(t *testing.T) {
	// OAEP is randomized; two encryptions of the same timestamp must not match.
	first, err := EncryptChallenge(1700000000000)
	require.NoError(t, err)
	second, err := EncryptChallenge(1700000000000)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestCurrentTimestampMs(t *testing.T) {
	before := time.Now().UnixMilli()
	got := currentTimestampMs()
	after := time.Now().UnixMilli()

	assert.GreaterOrEqual(t, got, before)
	assert.LessOrEqual(t, got, after)
}
