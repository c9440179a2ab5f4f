// Package types defines the order model shared by every component of the
// MARKET Go SDK, along with the protocol error taxonomy.
package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Order is an off-chain intent to trade a quantity of a derivatives contract
// at a price. Quantities are signed: positive for buys, negative for sells.
// All amounts are integers in the token's base units. An order is immutable
// once hashed; Salt guarantees hash uniqueness across otherwise-identical
// orders.
type Order struct {
	ContractAddress common.Address `json:"contractAddress"`
	Maker           common.Address `json:"maker"`
	Taker           common.Address `json:"taker"`
	FeeRecipient    common.Address `json:"feeRecipient"`
	MakerFee        *big.Int       `json:"makerFee"`
	TakerFee        *big.Int       `json:"takerFee"`
	OrderQty        *big.Int       `json:"orderQty"` // + buy / - sell
	Price           *big.Int       `json:"price"`
	RemainingQty    *big.Int       `json:"remainingQty"`
	Salt            *big.Int       `json:"salt"`
	// ExpirationTimestamp is a unix timestamp in seconds.
	ExpirationTimestamp *big.Int `json:"expirationTimestamp"`
}

// ECSignature is the elliptic curve signature triple over an order hash.
// V is normalized to {27, 28}.
type ECSignature struct {
	V uint8       `json:"v"`
	R common.Hash `json:"r"`
	S common.Hash `json:"s"`
}

// SignedOrder is an Order plus the maker's signature over its hash. Mutating
// any Order field invalidates the signature without recomputation.
type SignedOrder struct {
	Order
	Signature ECSignature `json:"ecSignature"`
}

// ContractSpecs holds the immutable parameters of a deployed market contract
// needed for collateral math and display.
type ContractSpecs struct {
	Name               string
	PriceFloor         *big.Int
	PriceCap           *big.Int
	QtyMultiplier      *big.Int
	PriceDecimalPlaces *big.Int
	CollateralPool     common.Address
	CollateralToken    common.Address
}
