package holder

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	saltSize  = 16
	nonceSize = 24
	scryptN   = 1 << 15
	scryptR   = 8
	scryptP   = 1
)

var errBadPassphrase = errors.New("cannot unseal state: wrong passphrase or corrupt data")

func deriveKey(passphrase string, salt []byte) (*[32]byte, error) {
	raw, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, 32)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

// seal encrypts plaintext as base64(salt | nonce | box).
func seal(plaintext []byte, passphrase string) (string, error) {
	buf := make([]byte, saltSize+nonceSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	key, err := deriveKey(passphrase, buf[:saltSize])
	if err != nil {
		return "", err
	}
	var nonce [nonceSize]byte
	copy(nonce[:], buf[saltSize:])
	out := secretbox.Seal(buf, plaintext, &nonce, key)
	return base64.StdEncoding.EncodeToString(out), nil
}

func open(encoded, passphrase string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) < saltSize+nonceSize+secretbox.Overhead {
		return nil, errBadPassphrase
	}
	key, err := deriveKey(passphrase, raw[:saltSize])
	if err != nil {
		return nil, err
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[saltSize:saltSize+nonceSize])
	plain, ok := secretbox.Open(nil, raw[saltSize+nonceSize:], &nonce, key)
	if !ok {
		return nil, errBadPassphrase
	}
	return plain, nil
}
