package auth

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

const (
	pubKeyFile  = "token_ed25519.pub"
	privKeyFile = "token_ed25519.key"
)

// Signer holds the ed25519 keypair used to mint and verify bearer tokens.
type Signer struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// NewSigner generates an ephemeral keypair. Tokens it issues do not survive
// a restart; use LoadOrCreateSigner for a persistent one.
func NewSigner() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &Signer{pub: pub, priv: priv}, nil
}

// LoadOrCreateSigner reuses the keypair stored under dataDir, generating
// and persisting a fresh one when none exists.
func LoadOrCreateSigner(dataDir string) (*Signer, error) {
	pubPath := filepath.Join(dataDir, pubKeyFile)
	privPath := filepath.Join(dataDir, privKeyFile)

	priv, errPriv := os.ReadFile(privPath)
	pub, errPub := os.ReadFile(pubPath)
	if errPriv == nil && errPub == nil {
		if len(priv) != ed25519.PrivateKeySize || len(pub) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("stored keypair in %s has invalid size", dataDir)
		}
		return &Signer{pub: pub, priv: priv}, nil
	}

	s, err := NewSigner()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(pubPath, s.pub, 0o644); err != nil {
		return nil, fmt.Errorf("write public key: %w", err)
	}
	if err := os.WriteFile(privPath, s.priv, 0o600); err != nil {
		return nil, fmt.Errorf("write private key: %w", err)
	}
	return s, nil
}

func (s *Signer) sign(data []byte) string {
	return hex.EncodeToString(ed25519.Sign(s.priv, data))
}

func (s *Signer) verify(data []byte, signature string) bool {
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return ed25519.Verify(s.pub, data, sig)
}
