// Package collateral implements the protocol's required-collateral formula.
package collateral

import "math/big"

// NeededCollateral calculates the required collateral amount in base units of
// the collateral token. The amount represents a trader's maximum loss and
// therefore what the collateral pool locks upon execution of a trade.
//
// For a long (qty > 0) the maximum loss runs from the execution price down to
// the price floor; for a short (qty <= 0) from the execution price up to the
// price cap. All math is exact integer math so the result matches the
// on-chain library bit for bit. priceFloor, priceCap, qtyMultiplier and price
// are expected non-negative; floor <= cap is the caller's invariant and is
// not enforced here.
func NeededCollateral(priceFloor, priceCap, qtyMultiplier, qty, price *big.Int) *big.Int {
	maxLoss := new(big.Int)
	if qty.Sign() > 0 {
		// Long: max loss from entry price to floor.
		if price.Cmp(priceFloor) > 0 {
			maxLoss.Sub(price, priceFloor)
		}
	} else {
		// Short or flat: max loss from entry price to cap.
		if price.Cmp(priceCap) < 0 {
			maxLoss.Sub(priceCap, price)
		}
	}
	maxLoss.Mul(maxLoss, new(big.Int).Abs(qty))
	return maxLoss.Mul(maxLoss, qtyMultiplier)
}
