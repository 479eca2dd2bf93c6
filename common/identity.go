package common

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// SigningIdentity holds the bot's keypair. It pays fees for and signs every
// reward transaction. The private key is only used inside Sign.
type SigningIdentity struct {
	key solana.PrivateKey
	pub solana.PublicKey
}

// NewSigningIdentity generates an ephemeral keypair that lives for the process lifetime.
func NewSigningIdentity() (*SigningIdentity, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generating keypair: %w", err)
	}
	return &SigningIdentity{key: key, pub: key.PublicKey()}, nil
}

// LoadSigningIdentity reads a keypair written by solana-keygen (a JSON array of 64 bytes).
func LoadSigningIdentity(path string) (*SigningIdentity, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading keypair %s: %w", path, err)
	}
	return &SigningIdentity{key: key, pub: key.PublicKey()}, nil
}

func (s *SigningIdentity) PublicKey() solana.PublicKey {
	return s.pub
}

// Sign adds the identity's signature to tx. Any other required signer is an error.
func (s *SigningIdentity) Sign(tx *solana.Transaction) error {
	_, err := tx.Sign(func(k solana.PublicKey) *solana.PrivateKey {
		if k.Equals(s.pub) {
			return &s.key
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("signing transaction: %w", err)
	}
	return nil
}
