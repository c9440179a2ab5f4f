package market

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rsercano/market-go/pkg/types"
)

// TradeOrder validates the signed order against current on-chain state and,
// if every precondition holds, submits the fill. Validation runs strictly
// before the transaction: settled contract, taker match, expiry, remaining
// quantity, buy/sell sign, signature, protocol membership, fee balances and
// allowances for both sides, and collateral for both sides. The taker's
// collateral requirement uses the sign-flipped fill quantity: filling a buy
// means going short.
//
// Returns the quantity actually filled, decoded from the fill event.
func (m *Market) TradeOrder(ctx context.Context, opts *bind.TransactOpts, signed *types.SignedOrder, fillQty *big.Int) (*big.Int, error) {
	contract := signed.ContractAddress

	settled, err := m.deps.Contracts.IsSettled(ctx, contract)
	if err != nil {
		return nil, err
	}
	if settled {
		return nil, types.ErrContractAlreadySettled
	}

	maker := signed.Maker
	taker := common.Address{}
	if opts != nil {
		taker = opts.From
	}

	if signed.Taker != (common.Address{}) && signed.Taker != taker {
		return nil, types.ErrInvalidTaker
	}
	if signed.ExpirationTimestamp.Cmp(big.NewInt(m.clock.Now().Unix())) < 0 {
		return nil, types.ErrOrderExpired
	}
	if signed.RemainingQty.Sign() == 0 {
		return nil, types.ErrOrderFilledOrCancelled
	}
	if (signed.OrderQty.Sign() > 0) != (fillQty.Sign() > 0) {
		return nil, types.ErrBuySellMismatch
	}

	orderHash, err := m.CreateOrderHash(ctx, &signed.Order)
	if err != nil {
		return nil, err
	}
	valid, err := m.IsValidSignature(ctx, signed, orderHash)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, types.ErrInvalidSignature
	}

	specs, err := m.deps.Contracts.Specs(ctx, contract)
	if err != nil {
		return nil, err
	}

	for _, user := range []common.Address{maker, taker} {
		enabled, err := m.deps.Membership.IsUserEnabledForContract(ctx, contract, user)
		if err != nil {
			return nil, err
		}
		if !enabled {
			return nil, types.ErrUserNotEnabledForContract
		}
	}

	// Fee checks: both sides must hold their fee in the protocol token and
	// have approved it to the fee recipient.
	mktToken := m.cfg.Addresses.MarketToken
	for _, side := range []struct {
		user common.Address
		fee  *big.Int
	}{
		{maker, signed.MakerFee},
		{taker, signed.TakerFee},
	} {
		balance, err := m.deps.Token.Balance(ctx, mktToken, side.user)
		if err != nil {
			return nil, err
		}
		if balance.Cmp(side.fee) < 0 {
			return nil, types.ErrInsufficientBalanceForTransfer
		}
		allowance, err := m.deps.Token.Allowance(ctx, mktToken, side.user, signed.FeeRecipient)
		if err != nil {
			return nil, err
		}
		if allowance.Cmp(side.fee) < 0 {
			return nil, types.ErrInsufficientAllowanceForTransfer
		}
	}

	// Collateral checks against the contract's pool. The taker takes the
	// opposite side of the fill, hence the negated quantity.
	for _, side := range []struct {
		user common.Address
		qty  *big.Int
	}{
		{maker, fillQty},
		{taker, new(big.Int).Neg(fillQty)},
	} {
		balance, err := m.deps.Pool.Balance(ctx, specs.CollateralPool, side.user)
		if err != nil {
			return nil, err
		}
		needed, err := m.CalculateNeededCollateral(ctx, contract, side.qty, signed.Price)
		if err != nil {
			return nil, err
		}
		if balance.Cmp(needed) < 0 {
			return nil, types.ErrInsufficientCollateralBalance
		}
	}

	return m.deps.Contracts.TradeOrder(ctx, opts, signed, fillQty)
}

// CancelOrder cancels up to cancelQty of the order and returns the quantity
// actually cancelled, decoded from the cancel event.
func (m *Market) CancelOrder(ctx context.Context, opts *bind.TransactOpts, o *types.Order, cancelQty *big.Int) (*big.Int, error) {
	return m.deps.Contracts.CancelOrder(ctx, opts, o, cancelQty)
}
