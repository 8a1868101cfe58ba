// Package codec implements the client-side envelope format for backup
// codes. An envelope is base64(salt ‖ nonce ‖ ciphertext+tag) where the
// AES-256-GCM key is derived from the user's password with PBKDF2. The
// server only ever sees the encoded envelope, never the code or password.
package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltSize  = 16
	NonceSize = 12
	TagSize   = 16

	keySize    = 32
	iterations = 100000
)

var (
	// ErrMalformed means the envelope is not valid base64 or is too short
	// to contain salt, nonce and an authentication tag.
	ErrMalformed = errors.New("malformed envelope")

	// ErrDecryption covers both a wrong password and a tampered envelope.
	// The two cases are deliberately indistinguishable.
	ErrDecryption = errors.New("decryption failed")
)

// DeriveKey stretches password into a 256-bit AES key. PBKDF2-SHA256 with
// 100,000 iterations, matching what callers on other platforms produce for
// the same envelope format.
func DeriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, keySize, sha256.New)
}

// Encrypt seals an 8-digit code into a self-contained envelope. Salt and
// nonce are freshly random on every call; encrypting the same code twice
// yields unrelated envelopes.
func Encrypt(code, password string) (string, error) {
	if !ValidCode(code) {
		return "", fmt.Errorf("code must be exactly 8 digits")
	}

	buf := make([]byte, SaltSize+NonceSize)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("rand.Read: %w", err)
	}
	salt := buf[:SaltSize]
	nonce := buf[SaltSize:]

	aead, err := newAEAD(password, salt)
	if err != nil {
		return "", err
	}

	// salt || nonce || ciphertext+tag
	combined := aead.Seal(buf, nonce, []byte(code), nil)
	return base64.StdEncoding.EncodeToString(combined), nil
}

// Decrypt opens an envelope with the given password and returns the code.
// Any failure mode short of a malformed encoding (wrong password, flipped
// bits, implausible plaintext) reports ErrDecryption with no further
// detail, so the error can't be used as an oracle.
func Decrypt(envelope, password string) (string, error) {
	combined, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return "", ErrMalformed
	}
	if len(combined) < SaltSize+NonceSize+TagSize {
		return "", ErrMalformed
	}

	salt := combined[:SaltSize]
	nonce := combined[SaltSize : SaltSize+NonceSize]
	ciphertext := combined[SaltSize+NonceSize:]

	aead, err := newAEAD(password, salt)
	if err != nil {
		return "", err
	}

	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryption
	}

	// The tag already authenticates the plaintext; the shape check guards
	// against an envelope that was never produced by Encrypt.
	code := string(plain)
	if !ValidCode(code) {
		return "", ErrDecryption
	}
	return code, nil
}

func newAEAD(password string, salt []byte) (cipher.AEAD, error) {
	key := DeriveKey(password, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return aead, nil
}
