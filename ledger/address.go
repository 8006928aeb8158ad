package ledger

import (
	"crypto/ed25519"
	"errors"

	"github.com/btcsuite/btcutil/base58"
)

// AddressLength is the size of a decoded Solana public key.
const AddressLength = ed25519.PublicKeySize

var ErrInvalidAddress = errors.New("invalid wallet address")

// ParseAddress decodes a base58 wallet address into its public key bytes.
func ParseAddress(address string) ([]byte, error) {
	if address == "" || len(address) > 44 {
		return nil, ErrInvalidAddress
	}
	raw := base58.Decode(address)
	if len(raw) != AddressLength {
		return nil, ErrInvalidAddress
	}
	return raw, nil
}

// ValidAddress reports whether address is a well-formed wallet address.
func ValidAddress(address string) bool {
	_, err := ParseAddress(address)
	return err == nil
}

// VerifyMessage checks a base58 ed25519 signature made by the wallet over message.
func VerifyMessage(address string, message []byte, signature string) bool {
	pub, err := ParseAddress(address)
	if err != nil {
		return false
	}
	sig := base58.Decode(signature)
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), message, sig)
}
