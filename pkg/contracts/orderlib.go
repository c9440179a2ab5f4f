package contracts

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rsercano/market-go/pkg/ledger"
	"github.com/rsercano/market-go/pkg/types"
)

const orderLibABI = `[
{"type":"function","name":"createOrderHash","stateMutability":"view","inputs":[{"name":"contractAddress","type":"address"},{"name":"orderAddresses","type":"address[3]"},{"name":"unsignedOrderValues","type":"uint256[5]"},{"name":"orderQty","type":"int256"}],"outputs":[{"name":"","type":"bytes32"}]},
{"type":"function","name":"isValidSignature","stateMutability":"view","inputs":[{"name":"signerAddress","type":"address"},{"name":"hash","type":"bytes32"},{"name":"v","type":"uint8"},{"name":"r","type":"bytes32"},{"name":"s","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]}
]`

// OrderLibOracle hashes and verifies orders through the deployed order
// library, so results match what the market contracts compute on chain.
type OrderLibOracle struct {
	addr  common.Address
	bound *bind.BoundContract
}

var _ ledger.HashOracle = (*OrderLibOracle)(nil)

func NewOrderLibOracle(backend Backend, orderLib common.Address) *OrderLibOracle {
	return &OrderLibOracle{
		addr:  orderLib,
		bound: bind.NewBoundContract(orderLib, parseABI(orderLibABI), backend, backend, backend),
	}
}

func (o *OrderLibOracle) HashOrder(ctx context.Context, order *types.Order) (common.Hash, error) {
	var out []interface{}
	err := o.bound.Call(callOpts(ctx), &out, "createOrderHash",
		order.ContractAddress, orderAddresses(order), orderValues(order), order.OrderQty)
	if err != nil {
		return common.Hash{}, fmt.Errorf("createOrderHash via %s: %w", o.addr, err)
	}
	raw := *abi.ConvertType(out[0], new([32]byte)).(*[32]byte)
	return common.Hash(raw), nil
}

func (o *OrderLibOracle) VerifySignature(ctx context.Context, signer common.Address, hash common.Hash, sig types.ECSignature) (bool, error) {
	var out []interface{}
	err := o.bound.Call(callOpts(ctx), &out, "isValidSignature",
		signer, hash, sig.V, sig.R, sig.S)
	if err != nil {
		return false, fmt.Errorf("isValidSignature via %s: %w", o.addr, err)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}
