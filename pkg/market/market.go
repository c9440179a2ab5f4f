// Package market is the single entry point into the MARKET Go SDK. The
// Market facade composes the protocol contract clients, the order hashing
// and signing helpers, the fill/cancel lazy cache and the collateral math;
// all library functionality is reached through a Market instance.
package market

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/rsercano/market-go/params"
	"github.com/rsercano/market-go/pkg/collateral"
	"github.com/rsercano/market-go/pkg/ledger"
	"github.com/rsercano/market-go/pkg/order"
	"github.com/rsercano/market-go/pkg/types"
	"github.com/rsercano/market-go/pkg/util"
)

// Deps bundles the collaborator clients a Market drives. Production wiring
// fills these from pkg/contracts; tests inject fakes.
type Deps struct {
	Contracts       ledger.MarketContractClient
	Pool            ledger.CollateralPool
	Token           ledger.Token
	Membership      ledger.MembershipToken
	Oracle          ledger.HashOracle
	Signer          ledger.Signer
	Registry        ledger.Registry
	ContractFactory ledger.ContractFactory
	PoolFactory     ledger.PoolFactory
}

// Market wraps remote calls to the deployed protocol contracts. All business
// logic and state live on-chain; Market marshals calls, parses results and
// keeps a small local cache of fill/cancel quantities.
type Market struct {
	cfg   params.Config
	log   *zap.Logger
	clock util.Clock
	deps  Deps
	store *FilledCancelledStore
}

// New creates a Market from explicit collaborator clients.
func New(deps Deps, cfg params.Config, log *zap.Logger) *Market {
	return &Market{
		cfg:   cfg,
		log:   log,
		clock: util.RealClock{},
		deps:  deps,
		store: NewFilledCancelledStore(deps.Contracts),
	}
}

// Config returns the configuration the Market was built with.
func (m *Market) Config() params.Config { return m.cfg }

// ResetCache drops all locally cached fill/cancel quantities. Call after
// reconnecting or switching providers.
func (m *Market) ResetCache() { m.store.DeleteAll() }

// COLLATERAL METHODS

// DepositCollateral deposits ERC20 collateral into a trader's pool account.
// The token must have been approved to the pool beforehand.
func (m *Market) DepositCollateral(ctx context.Context, opts *bind.TransactOpts, pool common.Address, amount *big.Int) error {
	return m.deps.Pool.Deposit(ctx, opts, pool, amount)
}

// WithdrawCollateral withdraws unallocated collateral from a trader's pool
// account back to their own address.
func (m *Market) WithdrawCollateral(ctx context.Context, opts *bind.TransactOpts, pool common.Address, amount *big.Int) error {
	return m.deps.Pool.Withdraw(ctx, opts, pool, amount)
}

// SettleAndClose closes all open positions post settlement and withdraws all
// collateral from an expired contract's pool.
func (m *Market) SettleAndClose(ctx context.Context, opts *bind.TransactOpts, pool common.Address) error {
	return m.deps.Pool.SettleAndClose(ctx, opts, pool)
}

// UserAccountBalance returns a user's currently unallocated collateral
// balance in the pool.
func (m *Market) UserAccountBalance(ctx context.Context, pool, user common.Address) (*big.Int, error) {
	return m.deps.Pool.Balance(ctx, pool, user)
}

// CONTRACT METHODS

// ContractSpecs returns the market contract's immutable parameters.
func (m *Market) ContractSpecs(ctx context.Context, contract common.Address) (*types.ContractSpecs, error) {
	return m.deps.Contracts.Specs(ctx, contract)
}

// CollateralPoolAddress returns the collateral pool linked to a contract.
func (m *Market) CollateralPoolAddress(ctx context.Context, contract common.Address) (common.Address, error) {
	specs, err := m.deps.Contracts.Specs(ctx, contract)
	if err != nil {
		return common.Address{}, err
	}
	return specs.CollateralPool, nil
}

// OracleQuery returns the contract's oracle query string.
func (m *Market) OracleQuery(ctx context.Context, contract common.Address) (string, error) {
	return m.deps.Contracts.OracleQuery(ctx, contract)
}

// AddressWhiteList returns all market contract addresses registered in the
// protocol registry.
func (m *Market) AddressWhiteList(ctx context.Context) ([]common.Address, error) {
	return m.deps.Registry.AddressWhiteList(ctx)
}

// DEPLOYMENT METHODS

// DeployMarketContractOraclize deploys a new oraclize-backed market contract
// through the protocol factory and returns its address.
func (m *Market) DeployMarketContractOraclize(ctx context.Context, opts *bind.TransactOpts, name string,
	collateralToken common.Address, contractSpecs []*big.Int, oracleDataSource, oracleQuery string) (common.Address, error) {
	return m.deps.ContractFactory.DeployMarketContractOraclize(ctx, opts, name, collateralToken,
		contractSpecs, oracleDataSource, oracleQuery)
}

// DeployCollateralPool deploys and links a collateral pool for the given
// market contract, returning the deployment transaction hash.
func (m *Market) DeployCollateralPool(ctx context.Context, opts *bind.TransactOpts, contract common.Address) (common.Hash, error) {
	return m.deps.PoolFactory.DeployCollateralPool(ctx, opts, contract)
}

// ORDER METHODS

// CreateOrderHash computes the canonical hash for the supplied order.
func (m *Market) CreateOrderHash(ctx context.Context, o *types.Order) (common.Hash, error) {
	return order.ComputeOrderHash(ctx, m.deps.Oracle, o)
}

// SignOrderHash signs an order hash with signerAddress.
func (m *Market) SignOrderHash(ctx context.Context, hash common.Hash, signerAddress common.Address) (types.ECSignature, error) {
	return order.SignOrderHash(ctx, m.deps.Signer, hash, signerAddress)
}

// IsValidSignature reports whether the signed order's signature over hash
// recovers to its maker.
func (m *Market) IsValidSignature(ctx context.Context, signed *types.SignedOrder, hash common.Hash) (bool, error) {
	return order.VerifySignature(ctx, m.deps.Oracle, signed, hash)
}

// CreateSignedOrder builds, hashes and signs a new order.
func (m *Market) CreateSignedOrder(ctx context.Context,
	contractAddress common.Address, expirationTimestamp *big.Int, feeRecipient common.Address,
	maker common.Address, makerFee *big.Int, taker common.Address, takerFee *big.Int,
	orderQty, price, remainingQty, salt *big.Int) (*types.SignedOrder, error) {
	return order.CreateSignedOrder(ctx, m.deps.Oracle, m.deps.Signer,
		contractAddress, expirationTimestamp, feeRecipient,
		maker, makerFee, taker, takerFee, orderQty, price, remainingQty, salt)
}

// QtyFilledOrCancelled returns the quantity no longer available to trade for
// an order, served from the local lazy cache when possible.
func (m *Market) QtyFilledOrCancelled(ctx context.Context, contract common.Address, orderHash common.Hash) (*big.Int, error) {
	return m.store.GetQty(ctx, contract, orderHash)
}

// InvalidateQtyFilledOrCancelled drops the cached fill/cancel quantity for
// one order so the next read hits the ledger.
func (m *Market) InvalidateQtyFilledOrCancelled(contract common.Address, orderHash common.Hash) {
	m.store.DeleteQty(contract, orderHash)
}

// CalculateNeededCollateral returns the collateral the pool would lock for
// trading qty at price on the given contract: the contract's price bounds
// and multiplier applied to the trader's maximum loss.
func (m *Market) CalculateNeededCollateral(ctx context.Context, contract common.Address, qty, price *big.Int) (*big.Int, error) {
	specs, err := m.deps.Contracts.Specs(ctx, contract)
	if err != nil {
		return nil, fmt.Errorf("fetch contract specs: %w", err)
	}
	return collateral.NeededCollateral(specs.PriceFloor, specs.PriceCap, specs.QtyMultiplier, qty, price), nil
}

// TokenBalance returns owner's balance of the given ERC20 token.
func (m *Market) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return m.deps.Token.Balance(ctx, token, owner)
}

// TokenAllowance returns the spender allowance owner has granted on token.
func (m *Market) TokenAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return m.deps.Token.Allowance(ctx, token, owner, spender)
}
