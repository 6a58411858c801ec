// Package auth hashes and verifies local account passwords.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrEmptyPassword rejects blank passwords before hashing.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrPasswordMismatch indicates the password does not match the stored credential.
	ErrPasswordMismatch = errors.New("password mismatch")
)

// Credential is what gets stored on a user record. Salt is only set for
// records created by older clients that stored salted SHA-256 digests.
type Credential struct {
	Hash string
	Salt string
}

// HashPassword returns a bcrypt credential for password.
func HashPassword(password string) (Credential, error) {
	if password == "" {
		return Credential{}, ErrEmptyPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Credential{}, fmt.Errorf("hash password: %w", err)
	}
	return Credential{Hash: string(hashed)}, nil
}

// VerifyPassword checks password against cred. Salted credentials are checked
// as hex(sha256(salt || password)).
func VerifyPassword(cred Credential, password string) error {
	if cred.Hash == "" || password == "" {
		return ErrPasswordMismatch
	}
	if cred.Salt != "" {
		return verifyLegacy(cred, password)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.Hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("compare password: %w", err)
	}
	return nil
}

func verifyLegacy(cred Credential, password string) error {
	salt, err := hex.DecodeString(cred.Salt)
	if err != nil {
		return fmt.Errorf("decode salt: %w", err)
	}
	want, err := hex.DecodeString(cred.Hash)
	if err != nil {
		return fmt.Errorf("decode hash: %w", err)
	}
	got := legacyDigest(salt, password)
	if subtle.ConstantTimeCompare(want, got) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

func legacyDigest(salt []byte, password string) []byte {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(password))
	return h.Sum(nil)
}
