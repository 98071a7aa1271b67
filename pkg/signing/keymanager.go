// Copyright 2025 Certen Protocol
//
// KeyManager handles ECDSA key generation, loading, and storage for the
// local-signer proposal backend. Adapted from pkg/crypto/bls/key_manager.go's
// load-or-generate/deterministic-seed lifecycle, ECDSA in place of BLS since
// spec §4.3.1 signs with keccak-256 + ECDSA, not pairing-based signatures.

package signing

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/crypto"
)

// KeyManager owns the local signer's ECDSA key.
type KeyManager struct {
	keyPath    string
	privateKey *ecdsa.PrivateKey
}

// NewKeyManager creates a new key manager bound to an optional key file path.
func NewKeyManager(keyPath string) *KeyManager {
	return &KeyManager{keyPath: keyPath}
}

// LoadOrGenerateKey loads an existing key from keyPath, or generates and
// persists a fresh one if no file exists yet.
func (km *KeyManager) LoadOrGenerateKey() error {
	if km.keyPath != "" {
		if _, err := os.Stat(km.keyPath); err == nil {
			return km.LoadKey()
		}
	}
	return km.GenerateNewKey()
}

// LoadKey loads a hex-encoded private key from keyPath.
func (km *KeyManager) LoadKey() error {
	if km.keyPath == "" {
		return fmt.Errorf("no key path specified")
	}
	data, err := os.ReadFile(km.keyPath)
	if err != nil {
		return fmt.Errorf("read key file: %w", err)
	}
	pk, err := crypto.HexToECDSA(string(data))
	if err != nil {
		return fmt.Errorf("parse private key: %w", err)
	}
	km.privateKey = pk
	return nil
}

// GenerateNewKey generates a fresh random key and persists it if a path was
// configured.
func (km *KeyManager) GenerateNewKey() error {
	pk, err := crypto.GenerateKey()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	km.privateKey = pk
	if km.keyPath != "" {
		return km.SaveKey()
	}
	return nil
}

// GenerateFromValidatorID derives a deterministic key from a relayer
// identity and chain id, so restarts recover the same signing key without a
// key file, mirroring GenerateFromValidatorID's seed derivation.
func (km *KeyManager) GenerateFromValidatorID(relayerID, chainID string) error {
	seed := sha256.Sum256([]byte(fmt.Sprintf("WEBB_RELAYER_SIGNER_V1:%s:%s", relayerID, chainID)))
	pk, err := crypto.ToECDSA(seed[:])
	if err != nil {
		return fmt.Errorf("derive key from seed: %w", err)
	}
	km.privateKey = pk
	return nil
}

// SaveKey writes the hex-encoded private key to keyPath with owner-only
// permissions.
func (km *KeyManager) SaveKey() error {
	if km.keyPath == "" {
		return fmt.Errorf("no key path specified")
	}
	if km.privateKey == nil {
		return fmt.Errorf("no private key to save")
	}
	if dir := filepath.Dir(km.keyPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create key directory: %w", err)
		}
	}
	keyHex := hex.EncodeToString(crypto.FromECDSA(km.privateKey))
	return os.WriteFile(km.keyPath, []byte(keyHex), 0600)
}

// PrivateKey returns the loaded private key, or nil if none has been
// loaded/generated yet.
func (km *KeyManager) PrivateKey() *ecdsa.PrivateKey {
	return km.privateKey
}

// Address returns the Ethereum address derived from the public key.
func (km *KeyManager) Address() (addr [20]byte) {
	if km.privateKey == nil {
		return addr
	}
	copy(addr[:], crypto.PubkeyToAddress(km.privateKey.PublicKey).Bytes())
	return addr
}

// Sign produces a 65-byte [R || S || V] ECDSA signature over a 32-byte
// digest, deterministic in its input per spec §8's deterministic-signing law.
func (km *KeyManager) Sign(digest [32]byte) ([65]byte, error) {
	var sig [65]byte
	if km.privateKey == nil {
		return sig, fmt.Errorf("no private key loaded")
	}
	raw, err := crypto.Sign(digest[:], km.privateKey)
	if err != nil {
		return sig, fmt.Errorf("sign digest: %w", err)
	}
	copy(sig[:], raw)
	return sig, nil
}
