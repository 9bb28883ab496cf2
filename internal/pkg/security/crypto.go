package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// MasterKey is the global 32-byte key used to encrypt metadata at rest.
var MasterKey []byte

// InitMasterKey resolves the master key, trying the FILTQ_MASTER_KEY
// environment variable first, then the key file, and finally generating
// and persisting a fresh key. Returns (true, nil) when a new key was
// generated.
func InitMasterKey(keyPath string) (bool, error) {
	if key := decodeKey(os.Getenv("FILTQ_MASTER_KEY")); key != nil {
		MasterKey = key
		return false, nil
	}

	if data, err := os.ReadFile(keyPath); err == nil {
		if key := decodeKey(strings.TrimSpace(string(data))); key != nil {
			MasterKey = key
			return false, nil
		}
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to read key file: %w", err)
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return false, fmt.Errorf("failed to generate random key: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(key)), 0600); err != nil {
		return false, fmt.Errorf("failed to save master key to %s: %w", keyPath, err)
	}

	MasterKey = key
	return true, nil
}

// decodeKey parses a hex-encoded 32-byte key, returning nil on anything
// else.
func decodeKey(s string) []byte {
	if s == "" {
		return nil
	}
	key, err := hex.DecodeString(s)
	if err != nil || len(key) != 32 {
		return nil
	}
	return key
}

// Encrypt seals plaintext with AES-GCM under the master key; the nonce
// is prepended to the ciphertext.
func Encrypt(plaintext []byte) ([]byte, error) {
	gcm, err := newGCM()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens data produced by Encrypt.
func Decrypt(data []byte) ([]byte, error) {
	gcm, err := newGCM()
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}
	return gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
}

func newGCM() (cipher.AEAD, error) {
	if len(MasterKey) != 32 {
		return nil, errors.New("master key not initialized or invalid length")
	}
	block, err := aes.NewCipher(MasterKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
