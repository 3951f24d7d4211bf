// Package cryptox implements the symmetric cipher used for secrets at rest:
// AES-256-GCM with a random per-call nonce, PBKDF2 key derivation for
// password-protected secrets, and argon2id password verifiers for the
// access gate.
//
// Keys, salts and ciphertexts cross package boundaries as base64url strings
// so they can travel in JSON bodies and URL fragments unmodified.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"

	"github.com/sealbox/sealbox/internal/common"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// SaltSize is the KDF salt length in bytes (128 bits).
	SaltSize = 16

	// pbkdf2Iterations is fixed; changing it breaks decryption of
	// password-protected secrets created earlier.
	pbkdf2Iterations = 210_000

	gcmNonceSize = 12

	gatePrefix = "$argon2id$"
)

var encoding = base64.RawURLEncoding

// RandomKey returns a fresh 256-bit cipher key, base64url-encoded.
func RandomKey() string {
	return encoding.EncodeToString(common.GenerateRandByteArray(KeySize))
}

// RandomSalt returns a fresh 128-bit KDF salt, base64url-encoded.
func RandomSalt() string {
	return encoding.EncodeToString(common.GenerateRandByteArray(SaltSize))
}

// DeriveKey stretches a password into a 256-bit cipher key using
// PBKDF2-SHA256 with a fixed iteration count. The salt is the base64url
// string produced by RandomSalt. The result is encoded like RandomKey, so
// derived and random keys are interchangeable for Encrypt/Decrypt.
func DeriveKey(password, salt string) (string, error) {
	rawSalt, err := encoding.DecodeString(salt)
	if err != nil {
		return "", fmt.Errorf("%w: bad salt encoding", common.ErrorValidation)
	}
	key := pbkdf2.Key([]byte(password), rawSalt, pbkdf2Iterations, KeySize, sha256.New)
	return encoding.EncodeToString(key), nil
}

// Encrypt seals plaintext under the given key with AES-256-GCM. A random
// 12-byte nonce is generated per call and prefixed to the ciphertext, so
// two encryptions of the same plaintext never compare equal. The result is
// base64url-encoded.
func Encrypt(plaintext []byte, key string) (string, error) {
	aesgcm, err := newAEAD(key)
	if err != nil {
		return "", err
	}

	nonce := common.GenerateRandByteArray(gcmNonceSize)
	sealed := aesgcm.Seal(nonce, nonce, plaintext, nil)
	return encoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. It never panics on malformed input: a bad key,
// truncated or corrupted ciphertext, or an empty resulting plaintext all
// yield common.ErrorDecrypt.
func Decrypt(ciphertext, key string) ([]byte, error) {
	aesgcm, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	sealed, err := encoding.DecodeString(ciphertext)
	if err != nil || len(sealed) < gcmNonceSize {
		return nil, common.ErrorDecrypt
	}

	plaintext, err := aesgcm.Open(nil, sealed[:gcmNonceSize], sealed[gcmNonceSize:], nil)
	if err != nil {
		return nil, common.ErrorDecrypt
	}
	if len(plaintext) == 0 {
		return nil, common.ErrorDecrypt
	}
	return plaintext, nil
}

// MakeGate builds a one-way password verifier for the access gate:
// argon2id over the password with a dedicated random salt, serialized as
// "$argon2id$<salt>$<hash>". The gate shares nothing with the cipher key
// path, so possession of the verifier reveals neither password nor key.
func MakeGate(password string) string {
	salt := common.GenerateRandByteArray(SaltSize)
	hash := gateHash([]byte(password), salt)
	return gatePrefix + encoding.EncodeToString(salt) + "$" + encoding.EncodeToString(hash)
}

// VerifyGate checks a submitted password against a stored gate value in
// constant time with respect to the hash contents. A malformed gate value
// never verifies.
func VerifyGate(gate, password string) bool {
	rest, ok := strings.CutPrefix(gate, gatePrefix)
	if !ok {
		return false
	}
	saltPart, hashPart, ok := strings.Cut(rest, "$")
	if !ok {
		return false
	}
	salt, err := encoding.DecodeString(saltPart)
	if err != nil {
		return false
	}
	want, err := encoding.DecodeString(hashPart)
	if err != nil {
		return false
	}
	got := gateHash([]byte(password), salt)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func gateHash(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, KeySize)
}

func newAEAD(key string) (cipher.AEAD, error) {
	rawKey, err := encoding.DecodeString(key)
	if err != nil || len(rawKey) != KeySize {
		return nil, common.ErrorDecrypt
	}
	block, err := aes.NewCipher(rawKey)
	if err != nil {
		return nil, common.ErrorDecrypt
	}
	return cipher.NewGCM(block)
}
