package bg

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strconv"
	"sync"
	"time"
)

const refreshChallengePrefix = "refresh_"

// Public half of the remote service's refresh challenge contract. Stable
// constant of the protocol, not configuration.
const refreshPublicKeyPEM = `-----BEGIN PUBLIC KEY-----
MIGfMA0GCSqGSIb3DQEBAQUAA4GNADCBiQKBgQDLgd2OAkcGVtoE3ThUREbio0Eg
Uc/prcajMKXvkCKFCWhJYJcLkcM2DKKcSeFpD/j6Boy538YXnR6VhcuUJOhH2x71
nzPjfdTcqMz7djHum0qSZA0AyCBDABdqhrsjmrZ8W7lKwiIihpujwr9uVrk4DnqP
e85X0SGZZBsGZeP7iwIDAQAB
-----END PUBLIC KEY-----`

var (
	refreshKeyOnce sync.Once
	refreshKey     *rsa.PublicKey
	refreshKeyErr  error
)

func refreshPublicKey() (*rsa.PublicKey, error) {
	refreshKeyOnce.Do(func() {
		block, _ := pem.Decode([]byte(refreshPublicKeyPEM))
		if block == nil {
			refreshKeyErr = fmt.Errorf("%w: malformed public key pem", CryptoUnavailableError)
			return
		}
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			refreshKeyErr = fmt.Errorf("%w: %v", CryptoUnavailableError, err)
			return
		}
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			refreshKeyErr = fmt.Errorf("%w: not an rsa key", CryptoUnavailableError)
			return
		}
		refreshKey = rsaPub
	})
	return refreshKey, refreshKeyErr
}

// EncryptChallenge computes the lowercase hex RSA-OAEP-SHA256 ciphertext of
// "refresh_<timestampMs>" under the service's fixed public key.
func EncryptChallenge(timestampMs int64) (string, error) {
	pub, err := refreshPublicKey()
	if err != nil {
		return "", err
	}
	return encryptChallengeWithKey(pub, timestampMs)
}

func encryptChallengeWithKey(pub *rsa.PublicKey, timestampMs int64) (string, error) {
	plaintext := refreshChallengePrefix + strconv.FormatInt(timestampMs, 10)
	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, []byte(plaintext), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", CryptoUnavailableError, err)
	}
	return hex.EncodeToString(ciphertext), nil
}

func currentTimestampMs() int64 {
	return time.Now().UnixMilli()
}
