package order

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rsercano/market-go/pkg/ledger"
	"github.com/rsercano/market-go/pkg/types"
)

// LocalHashOracle reproduces the deployed order-hashing library off-chain:
// a keccak256 over the tightly packed order fields in the protocol's fixed
// order, and signature recovery over the eth_sign message envelope. It lets
// the SDK hash and validate orders without a round trip to the node; the
// result is byte-identical to the on-chain library's.
type LocalHashOracle struct{}

var _ ledger.HashOracle = LocalHashOracle{}

// HashOrder packs {contractAddress; maker, taker, feeRecipient; makerFee,
// takerFee, price, expirationTimestamp, salt; orderQty} exactly as the
// contract does (addresses 20 bytes, values 32-byte two's complement) and
// hashes the result.
func (LocalHashOracle) HashOrder(_ context.Context, o *types.Order) (common.Hash, error) {
	packed := make([]byte, 0, 4*common.AddressLength+6*32)
	packed = append(packed, o.ContractAddress.Bytes()...)
	packed = append(packed, o.Maker.Bytes()...)
	packed = append(packed, o.Taker.Bytes()...)
	packed = append(packed, o.FeeRecipient.Bytes()...)
	for _, v := range []*big.Int{o.MakerFee, o.TakerFee, o.Price, o.ExpirationTimestamp, o.Salt, o.OrderQty} {
		packed = append(packed, u256Bytes(v)...)
	}
	return crypto.Keccak256Hash(packed), nil
}

// VerifySignature recovers the signer of hash from sig and compares it to
// the claimed signer. Any malformed or mismatched signature is simply false.
func (LocalHashOracle) VerifySignature(_ context.Context, signer common.Address, hash common.Hash, sig types.ECSignature) (bool, error) {
	if sig.V != 27 && sig.V != 28 {
		return false, nil
	}
	raw := make([]byte, 65)
	copy(raw[:32], sig.R.Bytes())
	copy(raw[32:64], sig.S.Bytes())
	raw[64] = sig.V - 27

	pubKey, err := crypto.Ecrecover(accounts.TextHash(hash.Bytes()), raw)
	if err != nil {
		return false, nil
	}
	pub, err := crypto.UnmarshalPubkey(pubKey)
	if err != nil {
		return false, nil
	}
	return crypto.PubkeyToAddress(*pub) == signer, nil
}

// u256Bytes returns v as a 32-byte big-endian two's complement word.
func u256Bytes(v *big.Int) []byte {
	return math.U256Bytes(new(big.Int).Set(v))
}
