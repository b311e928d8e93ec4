package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// vaultPrefix marks a config.json field value as an argon2/AES-GCM sealed
// secret rather than plaintext, so LoadConfigFile can tell them apart.
const vaultPrefix = "vault:v1:"

const (
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// Sealed reports whether value is a vault-encrypted field.
func Sealed(value string) bool {
	return strings.HasPrefix(value, vaultPrefix)
}

// Seal encrypts plaintext with a key derived from passphrase via Argon2id,
// producing a self-contained "vault:v1:<salt>:<nonce>:<ciphertext>" string
// suitable for storing directly in config.json.
func Seal(passphrase, plaintext string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("vault: generating salt: %w", err)
	}
	key := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("vault: building cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("vault: building gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: generating nonce: %w", err)
	}
	ciphertext := gcm.Seal(nil, nonce, []byte(plaintext), nil)

	return vaultPrefix + strings.Join([]string{
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(nonce),
		base64.StdEncoding.EncodeToString(ciphertext),
	}, ":"), nil
}

// Open decrypts a value produced by Seal. Returns an error if passphrase is
// wrong or the value is malformed.
func Open(passphrase, sealed string) (string, error) {
	if !Sealed(sealed) {
		return "", fmt.Errorf("vault: value is not sealed")
	}
	parts := strings.Split(strings.TrimPrefix(sealed, vaultPrefix), ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("vault: malformed sealed value")
	}
	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("vault: decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("vault: decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("vault: decoding ciphertext: %w", err)
	}
	key := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("vault: building cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("vault: building gcm: %w", err)
	}
	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("vault: bad nonce size")
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("vault: decrypting (wrong passphrase?): %w", err)
	}
	return string(plaintext), nil
}
