package wallet

import (
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestVaultRejectsBadKeys(t *testing.T) {
	_, err := NewVault("zz")
	assert.Error(t, err)

	_, err = NewVault("aabb") // too short
	assert.Error(t, err)

	_, err = NewVault(testKeyHex)
	assert.NoError(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	vault, err := NewVault(testKeyHex)
	require.NoError(t, err)

	priv := solana.NewWallet().PrivateKey
	sealed, err := vault.Encrypt(priv)
	require.NoError(t, err)

	// hex(nonce):hex(ciphertext)
	parts := strings.SplitN(sealed, ":", 2)
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], 24, "12-byte GCM nonce hex-encoded")

	out, err := vault.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, priv, out)
}

func TestNonceIsFreshPerCall(t *testing.T) {
	vault, _ := NewVault(testKeyHex)
	priv := solana.NewWallet().PrivateKey

	a, err := vault.Encrypt(priv)
	require.NoError(t, err)
	b, err := vault.Encrypt(priv)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "same plaintext must never seal identically")
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	vault, _ := NewVault(testKeyHex)
	other, _ := NewVault("ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")

	sealed, err := vault.Encrypt(solana.NewWallet().PrivateKey)
	require.NoError(t, err)

	_, err = other.Decrypt(sealed)
	assert.Error(t, err)
}

func TestDecryptRejectsMalformedInput(t *testing.T) {
	vault, _ := NewVault(testKeyHex)

	_, err := vault.Decrypt("no-separator")
	assert.Error(t, err)

	_, err = vault.Decrypt("zz:aabb")
	assert.Error(t, err)

	_, err = vault.Decrypt("aabb:zz")
	assert.Error(t, err)
}

func TestGenerate(t *testing.T) {
	vault, _ := NewVault(testKeyHex)

	pub, sealed, err := vault.Generate()
	require.NoError(t, err)
	assert.NotEqual(t, solana.PublicKey{}, pub)

	priv, err := vault.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, pub, priv.PublicKey())
}

func TestImport(t *testing.T) {
	vault, _ := NewVault(testKeyHex)
	original := solana.NewWallet().PrivateKey

	pub, sealed, err := vault.Import(original.String())
	require.NoError(t, err)
	assert.Equal(t, original.PublicKey(), pub)

	priv, err := vault.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, original, priv)

	_, _, err = vault.Import("not-base58!!!")
	assert.Error(t, err)
}
