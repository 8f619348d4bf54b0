// Package wallet implements the ERC-4337 smart wallet engine: deterministic
// address derivation against the canonical account factory, sponsored
// UserOperation submission with attribution tagging, multi-chain deployment,
// and the lending sub-namespace bound to a wallet address.
package wallet

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Owner is one entry in a smart account's owner set. The set of
// representations is closed: plain addresses and WebAuthn-style public keys.
// Each variant knows how to encode itself into the byte form the factory
// expects.
type Owner interface {
	// Encode returns the owner's canonical byte encoding.
	Encode() []byte
}

// AddressOwner is an EOA or contract owner, encoded as its address
// left-padded to 32 bytes.
type AddressOwner common.Address

func (o AddressOwner) Encode() []byte {
	return common.LeftPadBytes(common.Address(o).Bytes(), 32)
}

func (o AddressOwner) String() string {
	return common.Address(o).Hex()
}

// PublicKeyOwner is a WebAuthn-style owner, encoded as its raw 64-byte
// uncompressed public key (x || y).
type PublicKeyOwner []byte

func (o PublicKeyOwner) Encode() []byte {
	out := make([]byte, len(o))
	copy(out, o)
	return out
}

// ValidateOwners checks the owner list is non-empty, well-formed, and that
// the signer index points into it.
func ValidateOwners(owners []Owner, signerIndex int) error {
	if len(owners) == 0 {
		return fmt.Errorf("at least one owner is required")
	}
	if signerIndex < 0 || signerIndex >= len(owners) {
		return fmt.Errorf("signer index %d out of range for %d owners", signerIndex, len(owners))
	}
	for i, owner := range owners {
		pk, ok := owner.(PublicKeyOwner)
		if ok && len(pk) != 64 {
			return fmt.Errorf("owner %d: public key must be 64 bytes, got %d", i, len(pk))
		}
	}
	return nil
}

// EncodeOwners encodes each owner in order into the factory's bytes[] form.
func EncodeOwners(owners []Owner) [][]byte {
	out := make([][]byte, len(owners))
	for i, owner := range owners {
		out[i] = owner.Encode()
	}
	return out
}
