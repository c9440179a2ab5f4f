package market

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rsercano/market-go/pkg/order"
	"github.com/rsercano/market-go/pkg/types"
)

// fillableFixture builds a market over a fake chain with a 10-lot buy order
// at 55000 (floor 50000, cap 150000, multiplier 1), so fully collateralizing
// the order takes 5000 * 10 = 50000.
type fillableFixture struct {
	chain  *fakeChain
	market *Market
	signed *types.SignedOrder
	hash   common.Hash
	calc   *RemainingFillableCalculator
	taker  common.Address
}

func newFillableFixture(t *testing.T) *fillableFixture {
	t.Helper()
	return newFillableFixtureQty(t, 10)
}

// newShortFillableFixture is the sell-side twin: a 10-lot sell at 55000,
// so fully collateralizing the short takes (150000-55000) * 10 = 950000.
func newShortFillableFixture(t *testing.T) *fillableFixture {
	t.Helper()
	return newFillableFixtureQty(t, -10)
}

func newFillableFixtureQty(t *testing.T, qty int64) *fillableFixture {
	t.Helper()
	chain := newFakeChain()
	signer, err := order.NewKeySigner()
	if err != nil {
		t.Fatalf("NewKeySigner: %v", err)
	}
	m := newTestMarket(t, chain, signer)
	taker := common.HexToAddress("0x0000000000000000000000000000000000000077")

	signed := signedTestOrder(t, m, signer, taker, qty)
	hash, err := m.CreateOrderHash(context.Background(), &signed.Order)
	if err != nil {
		t.Fatalf("CreateOrderHash: %v", err)
	}

	return &fillableFixture{
		chain:  chain,
		market: m,
		signed: signed,
		hash:   hash,
		calc:   NewRemainingFillableCalculator(m, testPool, testToken, signed, hash),
		taker:  taker,
	}
}

func (f *fillableFixture) maker() common.Address { return f.signed.Maker }

func TestRemainingMakerFillableFullyCollateralized(t *testing.T) {
	f := newFillableFixture(t)
	f.chain.poolBal[f.maker()] = big.NewInt(50000)

	// Zero fees, collateral exactly covering the order, nothing filled:
	// the whole order quantity is fillable.
	got, err := f.calc.RemainingMakerFillable(context.Background())
	if err != nil {
		t.Fatalf("RemainingMakerFillable: %v", err)
	}
	if got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("maker fillable = %s, want 10", got)
	}

	// With part of the order consumed, the remainder caps the result.
	f.chain.fillQtys[f.hash] = big.NewInt(4)
	f.market.InvalidateQtyFilledOrCancelled(testContract, f.hash)
	got, err = f.calc.RemainingMakerFillable(context.Background())
	if err != nil {
		t.Fatalf("RemainingMakerFillable: %v", err)
	}
	if got.Cmp(big.NewInt(6)) != 0 {
		t.Errorf("maker fillable = %s, want 6", got)
	}
}

func TestRemainingMakerFillablePartialCollateral(t *testing.T) {
	f := newFillableFixture(t)
	// Half the needed collateral scales the fillable quantity down
	// proportionally.
	f.chain.poolBal[f.maker()] = big.NewInt(25000)

	got, err := f.calc.RemainingMakerFillable(context.Background())
	if err != nil {
		t.Fatalf("RemainingMakerFillable: %v", err)
	}
	if got.Cmp(big.NewInt(5)) != 0 {
		t.Errorf("maker fillable = %s, want 5", got)
	}
}

func TestRemainingMakerFillableExhaustedOrder(t *testing.T) {
	f := newFillableFixture(t)
	f.chain.poolBal[f.maker()] = big.NewInt(50000)
	f.chain.fillQtys[f.hash] = big.NewInt(10)

	// A fully consumed order reports zero, not an error.
	got, err := f.calc.RemainingMakerFillable(context.Background())
	if err != nil {
		t.Fatalf("RemainingMakerFillable: %v", err)
	}
	if got.Sign() != 0 {
		t.Errorf("maker fillable = %s, want 0", got)
	}
}

func TestRemainingMakerFillableInsufficientFeeFunds(t *testing.T) {
	f := newFillableFixture(t)
	f.signed.MakerFee = big.NewInt(100)
	f.chain.tokenBal[f.maker()] = big.NewInt(1)
	f.chain.poolBal[f.maker()] = big.NewInt(50000)

	_, err := f.calc.RemainingMakerFillable(context.Background())
	if !errors.Is(err, types.ErrInsufficientBalanceForTransfer) {
		t.Errorf("err = %v, want ErrInsufficientBalanceForTransfer", err)
	}
}

func TestRemainingMakerFillableZeroCollateralNeeded(t *testing.T) {
	f := newFillableFixture(t)
	// Price pinned to the floor: a long needs no collateral, so only the
	// remaining quantity bounds the result.
	f.signed.Price = big.NewInt(50000)

	got, err := f.calc.RemainingMakerFillable(context.Background())
	if err != nil {
		t.Fatalf("RemainingMakerFillable: %v", err)
	}
	if got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("maker fillable = %s, want 10", got)
	}
}

func TestRemainingMakerFillableSellOrder(t *testing.T) {
	f := newShortFillableFixture(t)
	f.chain.poolBal[f.maker()] = big.NewInt(950000)

	// A fully collateralized short with nothing filled reports the whole
	// order quantity, sign and all.
	got, err := f.calc.RemainingMakerFillable(context.Background())
	if err != nil {
		t.Fatalf("RemainingMakerFillable: %v", err)
	}
	if got.Cmp(big.NewInt(-10)) != 0 {
		t.Errorf("maker fillable = %s, want -10", got)
	}

	// Partially consumed: the remainder caps the magnitude.
	f.chain.fillQtys[f.hash] = big.NewInt(-4)
	f.market.InvalidateQtyFilledOrCancelled(testContract, f.hash)
	got, err = f.calc.RemainingMakerFillable(context.Background())
	if err != nil {
		t.Fatalf("RemainingMakerFillable: %v", err)
	}
	if got.Cmp(big.NewInt(-6)) != 0 {
		t.Errorf("maker fillable = %s, want -6", got)
	}
}

func TestRemainingMakerFillableSellOrderPartialCollateral(t *testing.T) {
	f := newShortFillableFixture(t)
	// Half the needed collateral halves the fillable magnitude.
	f.chain.poolBal[f.maker()] = big.NewInt(475000)

	got, err := f.calc.RemainingMakerFillable(context.Background())
	if err != nil {
		t.Fatalf("RemainingMakerFillable: %v", err)
	}
	if got.Cmp(big.NewInt(-5)) != 0 {
		t.Errorf("maker fillable = %s, want -5", got)
	}
}

func TestRemainingMakerFillableSellOrderExhausted(t *testing.T) {
	f := newShortFillableFixture(t)
	f.chain.poolBal[f.maker()] = big.NewInt(950000)
	f.chain.fillQtys[f.hash] = big.NewInt(-10)

	got, err := f.calc.RemainingMakerFillable(context.Background())
	if err != nil {
		t.Fatalf("RemainingMakerFillable: %v", err)
	}
	if got.Sign() != 0 {
		t.Errorf("maker fillable = %s, want 0", got)
	}
}

func TestRemainingTakerFillableSellOrder(t *testing.T) {
	f := newShortFillableFixture(t)
	f.chain.poolBal[f.maker()] = big.NewInt(950000)
	// Taker holds a quarter of the needed collateral.
	f.chain.poolBal[f.taker] = big.NewInt(237500)

	got, err := f.calc.RemainingTakerFillable(context.Background())
	if err != nil {
		t.Fatalf("RemainingTakerFillable: %v", err)
	}
	if got.Cmp(big.NewInt(-2)) != 0 {
		t.Errorf("taker fillable = %s, want -2", got)
	}
}

func TestRemainingTakerFillable(t *testing.T) {
	f := newFillableFixture(t)
	f.chain.poolBal[f.maker()] = big.NewInt(50000)
	// Taker holds a quarter of the needed collateral.
	f.chain.poolBal[f.taker] = big.NewInt(12500)

	got, err := f.calc.RemainingTakerFillable(context.Background())
	if err != nil {
		t.Fatalf("RemainingTakerFillable: %v", err)
	}
	if got.Cmp(big.NewInt(2)) != 0 {
		t.Errorf("taker fillable = %s, want 2", got)
	}
}

func TestRemainingTakerFillableBoundedByMaker(t *testing.T) {
	f := newFillableFixture(t)
	// Maker can honor half the order, taker could take all of it: the
	// maker's bound wins.
	f.chain.poolBal[f.maker()] = big.NewInt(25000)
	f.chain.poolBal[f.taker] = big.NewInt(100000)

	got, err := f.calc.RemainingTakerFillable(context.Background())
	if err != nil {
		t.Fatalf("RemainingTakerFillable: %v", err)
	}
	if got.Cmp(big.NewInt(5)) != 0 {
		t.Errorf("taker fillable = %s, want 5", got)
	}
}

func TestRemainingTakerFillableExhaustedOrder(t *testing.T) {
	f := newFillableFixture(t)
	f.chain.poolBal[f.maker()] = big.NewInt(50000)
	f.chain.poolBal[f.taker] = big.NewInt(50000)
	f.chain.fillQtys[f.hash] = big.NewInt(10)

	got, err := f.calc.RemainingTakerFillable(context.Background())
	if err != nil {
		t.Fatalf("RemainingTakerFillable: %v", err)
	}
	if got.Sign() != 0 {
		t.Errorf("taker fillable = %s, want 0", got)
	}
}

func TestRemainingTakerFillableInsufficientFeeFunds(t *testing.T) {
	f := newFillableFixture(t)
	f.chain.poolBal[f.maker()] = big.NewInt(50000)
	f.signed.TakerFee = big.NewInt(100)
	f.chain.tokenBal[f.taker] = big.NewInt(1)

	_, err := f.calc.RemainingTakerFillable(context.Background())
	if !errors.Is(err, types.ErrInsufficientBalanceForTransfer) {
		t.Errorf("err = %v, want ErrInsufficientBalanceForTransfer", err)
	}
}

func TestRemainingMakerFillableUsesLazyCache(t *testing.T) {
	f := newFillableFixture(t)
	f.chain.poolBal[f.maker()] = big.NewInt(50000)

	before := f.chain.fillCalls
	if _, err := f.calc.RemainingMakerFillable(context.Background()); err != nil {
		t.Fatalf("RemainingMakerFillable: %v", err)
	}
	if _, err := f.calc.RemainingMakerFillable(context.Background()); err != nil {
		t.Fatalf("RemainingMakerFillable: %v", err)
	}
	if got := f.chain.fillCalls - before; got != 1 {
		t.Errorf("fill/cancel remote calls = %d, want 1 (second read cached)", got)
	}
}
