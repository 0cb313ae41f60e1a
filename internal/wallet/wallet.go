// Package wallet holds per-user Solana keypairs encrypted at rest.
// Private keys exist in plaintext only for the duration of a signing
// call.
package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// ErrWalletNotFound is returned when a user has no stored wallet.
var ErrWalletNotFound = errors.New("wallet not found")

// Vault encrypts and decrypts private keys with AES-256-GCM.
type Vault struct {
	key []byte
}

// NewVault creates a vault from a 32-byte hex-encoded key.
func NewVault(hexKey string) (*Vault, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key is %d bytes, want 32", len(key))
	}
	return &Vault{key: key}, nil
}

// Encrypt seals a private key. The output format is
// hex(nonce):hex(ciphertext) with a fresh random nonce per call.
func (v *Vault) Encrypt(priv solana.PrivateKey) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("init gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(priv), nil)
	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(sealed), nil
}

// Decrypt opens a sealed private key.
func (v *Vault) Decrypt(stored string) (solana.PrivateKey, error) {
	parts := strings.SplitN(stored, ":", 2)
	if len(parts) != 2 {
		return nil, errors.New("malformed encrypted key")
	}
	nonce, err := hex.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}
	sealed, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, errors.New("malformed nonce")
	}

	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt key: %w", err)
	}
	return solana.PrivateKey(plain), nil
}

// Generate creates a new keypair and returns its public key with the
// sealed private key ready for storage.
func (v *Vault) Generate() (solana.PublicKey, string, error) {
	acc := solana.NewWallet()
	sealed, err := v.Encrypt(acc.PrivateKey)
	if err != nil {
		return solana.PublicKey{}, "", err
	}
	return acc.PublicKey(), sealed, nil
}

// Import seals an existing base58 private key and returns its public
// key with the sealed form.
func (v *Vault) Import(base58Key string) (solana.PublicKey, string, error) {
	priv, err := solana.PrivateKeyFromBase58(base58Key)
	if err != nil {
		return solana.PublicKey{}, "", fmt.Errorf("parse private key: %w", err)
	}
	sealed, err := v.Encrypt(priv)
	if err != nil {
		return solana.PublicKey{}, "", err
	}
	return priv.PublicKey(), sealed, nil
}
