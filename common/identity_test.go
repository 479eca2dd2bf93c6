package common

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSigningIdentity_Unique(t *testing.T) {
	a, err := NewSigningIdentity()
	require.NoError(t, err)
	b, err := NewSigningIdentity()
	require.NoError(t, err)

	assert.False(t, a.PublicKey().IsZero())
	assert.NotEqual(t, a.PublicKey(), b.PublicKey())
}

func TestLoadSigningIdentity(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	id, err := LoadSigningIdentity(path)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), id.PublicKey())
}

func TestLoadSigningIdentity_Missing(t *testing.T) {
	_, err := LoadSigningIdentity(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading keypair")
}

func TestSigningIdentity_Sign(t *testing.T) {
	id, err := NewSigningIdentity()
	require.NoError(t, err)
	to := solana.NewWallet().PublicKey()

	tx, err := BuildRewardTransaction(id.PublicKey(), to, 1, solana.Hash{1})
	require.NoError(t, err)
	require.NoError(t, id.Sign(tx))

	require.Len(t, tx.Signatures, 1)
	assert.NoError(t, tx.VerifySignatures())
}

func TestSigningIdentity_SignForeignPayer(t *testing.T) {
	id, err := NewSigningIdentity()
	require.NoError(t, err)
	other := solana.NewWallet().PublicKey()

	tx, err := BuildRewardTransaction(other, id.PublicKey(), 1, solana.Hash{1})
	require.NoError(t, err)
	assert.Error(t, id.Sign(tx))
}
