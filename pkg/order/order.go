// Package order builds, hashes, signs and verifies trade orders. Hashing and
// signature recovery are delegated to a ledger.HashOracle (the deployed
// order-hashing library, or the local reimplementation in this package);
// signing is delegated to a ledger.Signer.
package order

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rsercano/market-go/pkg/ledger"
	"github.com/rsercano/market-go/pkg/types"
)

var addressHexRx = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// maxSalt bounds GenerateSalt to an unsigned 256-bit integer.
var maxSalt = new(big.Int).Lsh(big.NewInt(1), 256)

// ParseAddress validates that s is a well-formed hex ledger address and
// returns it decoded. field names the offending parameter in the error.
func ParseAddress(field, s string) (common.Address, error) {
	if !addressHexRx.MatchString(s) {
		return common.Address{}, &types.InvalidAddressError{Field: field, Address: s}
	}
	return common.HexToAddress(s), nil
}

// validateFields rejects orders with missing numeric fields or a zero
// contract address before any remote call is made.
func validateFields(o *types.Order) error {
	if o.ContractAddress == (common.Address{}) {
		return &types.InvalidAddressError{Field: "contractAddress", Address: o.ContractAddress.Hex()}
	}
	for _, f := range []struct {
		name string
		v    *big.Int
	}{
		{"makerFee", o.MakerFee},
		{"takerFee", o.TakerFee},
		{"orderQty", o.OrderQty},
		{"price", o.Price},
		{"salt", o.Salt},
		{"expirationTimestamp", o.ExpirationTimestamp},
	} {
		if f.v == nil {
			return &types.InvalidOrderFieldError{Field: f.name, Reason: "missing"}
		}
	}
	return nil
}

// ComputeOrderHash computes the canonical hash for the supplied order via the
// hashing oracle. Malformed input fails before the remote call; an oracle
// failure wraps types.ErrHashComputation and is not retried here.
func ComputeOrderHash(ctx context.Context, oracle ledger.HashOracle, o *types.Order) (common.Hash, error) {
	if err := validateFields(o); err != nil {
		return common.Hash{}, err
	}
	hash, err := oracle.HashOrder(ctx, o)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", types.ErrHashComputation, err)
	}
	return hash, nil
}

// SignOrderHash signs an order hash with the given address and returns the
// elliptic curve signature triple. The recovery id is normalized into
// {27, 28}: oracles that return a raw 0/1 recovery id get 27 added, values
// already in the set pass through untouched.
func SignOrderHash(ctx context.Context, signer ledger.Signer, hash common.Hash, signerAddress common.Address) (types.ECSignature, error) {
	if signerAddress == (common.Address{}) {
		return types.ECSignature{}, &types.InvalidAddressError{Field: "signerAddress", Address: signerAddress.Hex()}
	}
	raw, err := signer.Sign(ctx, signerAddress, hash.Bytes())
	if err != nil {
		return types.ECSignature{}, fmt.Errorf("sign order hash: %w", err)
	}
	if len(raw) != 65 {
		return types.ECSignature{}, fmt.Errorf("sign order hash: signature length = %d, want 65", len(raw))
	}
	v := raw[64]
	if v != 27 && v != 28 {
		v += 27
	}
	return types.ECSignature{
		V: v,
		R: common.BytesToHash(raw[:32]),
		S: common.BytesToHash(raw[32:64]),
	}, nil
}

// VerifySignature reports whether the signed order's signature over hash
// recovers to its maker. A mismatched signature is (false, nil), never an
// error.
func VerifySignature(ctx context.Context, oracle ledger.HashOracle, signed *types.SignedOrder, hash common.Hash) (bool, error) {
	return oracle.VerifySignature(ctx, signed.Maker, hash, signed.Signature)
}

// CreateSignedOrder builds an order from the supplied fields, computes its
// hash and signs it with the maker's address. Address validation happens
// before any remote call.
func CreateSignedOrder(ctx context.Context, oracle ledger.HashOracle, signer ledger.Signer,
	contractAddress common.Address, expirationTimestamp *big.Int, feeRecipient common.Address,
	maker common.Address, makerFee *big.Int, taker common.Address, takerFee *big.Int,
	orderQty, price, remainingQty, salt *big.Int) (*types.SignedOrder, error) {

	if maker == (common.Address{}) {
		return nil, &types.InvalidAddressError{Field: "maker", Address: maker.Hex()}
	}

	o := types.Order{
		ContractAddress:     contractAddress,
		Maker:               maker,
		Taker:               taker,
		FeeRecipient:        feeRecipient,
		MakerFee:            makerFee,
		TakerFee:            takerFee,
		OrderQty:            orderQty,
		Price:               price,
		RemainingQty:        remainingQty,
		Salt:                salt,
		ExpirationTimestamp: expirationTimestamp,
	}

	hash, err := ComputeOrderHash(ctx, oracle, &o)
	if err != nil {
		return nil, err
	}
	sig, err := SignOrderHash(ctx, signer, hash, maker)
	if err != nil {
		return nil, err
	}
	return &types.SignedOrder{Order: o, Signature: sig}, nil
}

// GenerateSalt returns a pseudo-random 256-bit salt. Including it in an order
// guarantees a unique order hash even for orders identical in every other
// parameter.
func GenerateSalt() *big.Int {
	salt, err := rand.Int(rand.Reader, maxSalt)
	if err != nil {
		// crypto/rand only fails when the platform entropy source is broken.
		panic(fmt.Sprintf("generate salt: %v", err))
	}
	return salt
}
