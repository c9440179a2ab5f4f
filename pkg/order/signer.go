package order

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rsercano/market-go/pkg/ledger"
)

// KeySigner signs order hashes with a locally held secp256k1 key, using the
// same "\x19Ethereum Signed Message:\n" envelope remote eth_sign providers
// apply, so on-chain recovery accepts either source.
type KeySigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

var _ ledger.Signer = (*KeySigner)(nil)

// NewKeySigner creates a KeySigner with a fresh random key pair.
func NewKeySigner() (*KeySigner, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &KeySigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

// KeySignerFromHex creates a KeySigner from a hex-encoded private key, with
// or without the 0x prefix.
func KeySignerFromHex(hexKey string) (*KeySigner, error) {
	if len(hexKey) >= 2 && hexKey[:2] == "0x" {
		hexKey = hexKey[2:]
	}
	privateKey, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &KeySigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

// Address returns the address derived from the signer's public key.
func (s *KeySigner) Address() common.Address { return s.address }

// PrivateKeyHex returns the private key as a bare hex string. Keep it secret.
func (s *KeySigner) PrivateKeyHex() string {
	return fmt.Sprintf("%x", crypto.FromECDSA(s.privateKey))
}

// Sign signs message for the given address and returns a 65-byte r||s||v
// signature with a raw 0/1 recovery id. It refuses addresses it does not
// hold the key for.
func (s *KeySigner) Sign(_ context.Context, signer common.Address, message []byte) ([]byte, error) {
	if signer != s.address {
		return nil, fmt.Errorf("no key for address %s", signer.Hex())
	}
	sig, err := crypto.Sign(accounts.TextHash(message), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return sig, nil
}
