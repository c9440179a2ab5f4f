// Package ledger declares the collaborator contracts the SDK core depends
// on: remote hashing, signing, balance and fill queries, and the transacting
// surface of the deployed protocol contracts. Implementations over a live
// node are in pkg/contracts; tests supply in-memory fakes.
//
// None of these interfaces retry or time out on their own. Callers own retry
// policy; implementations own transport timeouts.
package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rsercano/market-go/pkg/types"
)

// HashOracle canonicalizes orders into hashes and recovers signatures, as
// implemented by the deployed order-hashing library.
type HashOracle interface {
	// HashOrder hashes the order's fields in the protocol's fixed order
	// {contractAddress; [maker, taker, feeRecipient]; [makerFee, takerFee,
	// price, expirationTimestamp, salt]; orderQty}.
	HashOrder(ctx context.Context, order *types.Order) (common.Hash, error)

	// VerifySignature reports whether sig over hash recovers to signer. A
	// mismatched signature returns (false, nil), not an error.
	VerifySignature(ctx context.Context, signer common.Address, hash common.Hash, sig types.ECSignature) (bool, error)
}

// Signer produces recoverable signatures for addresses it controls.
type Signer interface {
	// Sign returns a 65-byte signature (32-byte r, 32-byte s, 1-byte
	// recovery id) over message for the given address.
	Sign(ctx context.Context, signer common.Address, message []byte) ([]byte, error)
}

// FillQuerier reads the cumulative filled-or-cancelled quantity the chain
// tracks per order.
type FillQuerier interface {
	FilledOrCancelledQty(ctx context.Context, contract common.Address, orderHash common.Hash) (*big.Int, error)
}

// MarketContractClient is the SDK's view of a deployed market contract,
// addressed per call so one client serves every contract instance.
type MarketContractClient interface {
	FillQuerier

	Specs(ctx context.Context, contract common.Address) (*types.ContractSpecs, error)
	IsSettled(ctx context.Context, contract common.Address) (bool, error)
	OracleQuery(ctx context.Context, contract common.Address) (string, error)

	// TradeOrder submits a fill for the signed order and returns the
	// quantity actually filled, decoded from the fill event. On-chain
	// rejections surface as the mapped trade-validation errors.
	TradeOrder(ctx context.Context, opts *bind.TransactOpts, order *types.SignedOrder, fillQty *big.Int) (*big.Int, error)

	// CancelOrder cancels up to cancelQty of the order and returns the
	// quantity actually cancelled.
	CancelOrder(ctx context.Context, opts *bind.TransactOpts, order *types.Order, cancelQty *big.Int) (*big.Int, error)
}

// CollateralPool is the escrow holding locked token balances per trader.
type CollateralPool interface {
	Balance(ctx context.Context, pool, user common.Address) (*big.Int, error)
	Deposit(ctx context.Context, opts *bind.TransactOpts, pool common.Address, amount *big.Int) error
	Withdraw(ctx context.Context, opts *bind.TransactOpts, pool common.Address, amount *big.Int) error
	SettleAndClose(ctx context.Context, opts *bind.TransactOpts, pool common.Address) error
}

// Token is the ERC20 surface the SDK needs for fee and collateral tokens.
type Token interface {
	Balance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, opts *bind.TransactOpts, token, spender common.Address, amount *big.Int) error
}

// MembershipToken gates trading on protocol membership.
type MembershipToken interface {
	IsUserEnabledForContract(ctx context.Context, contract, user common.Address) (bool, error)
}

// Registry lists the whitelisted market contract addresses.
type Registry interface {
	AddressWhiteList(ctx context.Context) ([]common.Address, error)
}

// ContractFactory deploys new market contract instances and registers them.
type ContractFactory interface {
	DeployMarketContractOraclize(ctx context.Context, opts *bind.TransactOpts, name string,
		collateralToken common.Address, contractSpecs []*big.Int,
		oracleDataSource, oracleQuery string) (common.Address, error)
}

// PoolFactory deploys the collateral pool linked to a market contract.
type PoolFactory interface {
	DeployCollateralPool(ctx context.Context, opts *bind.TransactOpts, contract common.Address) (common.Hash, error)
}
