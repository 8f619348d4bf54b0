// Package signer abstracts the entity that authorizes UserOperations. The
// engine never inspects key material; hosted signer services and local keys
// both satisfy the same interface.
package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer produces signatures for a public identity.
type Signer interface {
	// Address returns the signer's public identity.
	Address() common.Address

	// SignHash signs the given 32-byte hash and returns a 65-byte
	// [r || s || v] signature with v in {27, 28}.
	SignHash(ctx context.Context, hash common.Hash) ([]byte, error)
}

// LocalSigner signs with an in-process secp256k1 key. Intended for tests and
// development; production deployments plug in a hosted signer service.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewLocalSigner wraps an existing private key.
func NewLocalSigner(key *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// NewLocalSignerFromHex parses a hex-encoded private key.
func NewLocalSignerFromHex(hexKey string) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewLocalSigner(key), nil
}

// Address returns the address derived from the local key.
func (s *LocalSigner) Address() common.Address {
	return s.address
}

// SignHash signs the EIP-191 personal-message digest of the hash, matching
// what smart-account validation expects from an EOA owner signature.
func (s *LocalSigner) SignHash(_ context.Context, hash common.Hash) ([]byte, error) {
	digest := accounts.TextHash(hash.Bytes())
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign hash: %w", err)
	}
	// crypto.Sign returns v in {0, 1}; contracts expect {27, 28}.
	sig[64] += 27
	return sig, nil
}
