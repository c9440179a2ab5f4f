package market

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rsercano/market-go/pkg/types"
)

// RemainingFillableCalculator computes how much more of an order each side
// can still execute given currently observable on-chain state: the side's
// fee funds, its available collateral, and the quantity the order has
// already had filled or cancelled.
//
// The calculator borrows the facade and the signed order for its lifetime
// and never mutates either. Both methods are read-only and idempotent;
// results change only when on-chain state or the local fill/cancel cache
// changes between calls.
type RemainingFillableCalculator struct {
	market          *Market
	collateralPool  common.Address
	collateralToken common.Address
	signedOrder     *types.SignedOrder
	orderHash       common.Hash
}

// NewRemainingFillableCalculator creates a calculator for one signed order.
func NewRemainingFillableCalculator(m *Market, collateralPool, collateralToken common.Address,
	signedOrder *types.SignedOrder, orderHash common.Hash) *RemainingFillableCalculator {
	return &RemainingFillableCalculator{
		market:          m,
		collateralPool:  collateralPool,
		collateralToken: collateralToken,
		signedOrder:     signedOrder,
		orderHash:       orderHash,
	}
}

// RemainingMakerFillable returns how much of the order the maker can still
// honor. A maker without funds for their fee fails with
// ErrInsufficientBalanceForTransfer; a partially collateralized maker gets
// the tradeable quantity scaled down proportionally. The result carries the
// order's sign, so sells report negative quantities. Zero means the order is
// fully exhausted, not an error.
func (c *RemainingFillableCalculator) RemainingMakerFillable(ctx context.Context) (*big.Int, error) {
	ok, err := c.hasSufficientFeeFunds(ctx, c.signedOrder.Maker, c.signedOrder.MakerFee)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.ErrInsufficientBalanceForTransfer
	}

	available, err := c.availableCollateral(ctx, c.signedOrder.Maker)
	if err != nil {
		return nil, err
	}
	needed, err := c.market.CalculateNeededCollateral(ctx, c.signedOrder.ContractAddress,
		c.signedOrder.OrderQty, c.signedOrder.Price)
	if err != nil {
		return nil, err
	}
	alreadyFilledOrCancelled, err := c.market.QtyFilledOrCancelled(ctx, c.signedOrder.ContractAddress, c.orderHash)
	if err != nil {
		return nil, err
	}

	remainingToFill := new(big.Int).Sub(c.signedOrder.OrderQty, alreadyFilledOrCancelled)
	return c.boundFillable(c.fillableByCollateral(available, needed, remainingToFill), remainingToFill), nil
}

// RemainingTakerFillable returns how much of the order a taker can still
// execute. The maker's fillable quantity is always an upper bound. The
// taker's collateral requirement is computed with the order's own signed
// quantity, mirroring the maker side.
func (c *RemainingFillableCalculator) RemainingTakerFillable(ctx context.Context) (*big.Int, error) {
	makerFillable, err := c.RemainingMakerFillable(ctx)
	if err != nil {
		return nil, err
	}

	ok, err := c.hasSufficientFeeFunds(ctx, c.signedOrder.Taker, c.signedOrder.TakerFee)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.ErrInsufficientBalanceForTransfer
	}

	available, err := c.availableCollateral(ctx, c.signedOrder.Taker)
	if err != nil {
		return nil, err
	}
	needed, err := c.market.CalculateNeededCollateral(ctx, c.signedOrder.ContractAddress,
		c.signedOrder.OrderQty, c.signedOrder.Price)
	if err != nil {
		return nil, err
	}

	return c.boundFillable(makerFillable, c.fillableByCollateral(available, needed, makerFillable)), nil
}

// fillableByCollateral scales the order quantity by the fraction of the
// needed collateral the side actually holds: available/needed * orderQty,
// multiplied before dividing so integer truncation happens once. An order
// needing zero collateral (price pinned to its bound) is unconstrained and
// passes unbounded through as-is.
func (c *RemainingFillableCalculator) fillableByCollateral(available, needed, unbounded *big.Int) *big.Int {
	if needed.Sign() == 0 {
		return unbounded
	}
	scaled := new(big.Int).Mul(available, c.signedOrder.OrderQty)
	return scaled.Quo(scaled, needed)
}

func (c *RemainingFillableCalculator) hasSufficientFeeFunds(ctx context.Context, account common.Address, fee *big.Int) (bool, error) {
	funds, err := c.market.TokenBalance(ctx, c.collateralToken, account)
	if err != nil {
		return false, err
	}
	return funds.Cmp(fee) >= 0, nil
}

func (c *RemainingFillableCalculator) availableCollateral(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := c.market.UserAccountBalance(ctx, c.collateralPool, account)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return new(big.Int), nil
	}
	return balance, nil
}

// boundFillable returns whichever of a and b is smaller in magnitude,
// keeping the order's sign: a sell order reports a negative quantity whose
// magnitude is what can still execute. A bound that crossed zero against the
// order's direction (an over-filled order) floors the result at zero.
func (c *RemainingFillableCalculator) boundFillable(a, b *big.Int) *big.Int {
	bound := a
	if c.signedOrder.OrderQty.Sign() < 0 {
		if b.Cmp(a) > 0 {
			bound = b
		}
		if bound.Sign() > 0 {
			return new(big.Int)
		}
	} else {
		if b.Cmp(a) < 0 {
			bound = b
		}
		if bound.Sign() < 0 {
			return new(big.Int)
		}
	}
	return new(big.Int).Set(bound)
}
