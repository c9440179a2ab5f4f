// Package contracts implements the pkg/ledger interfaces over the deployed
// protocol contracts using go-ethereum ABI bindings. Each client is a thin
// wrapper around bind.BoundContract; clients that serve many contract
// instances memoize one bound contract per address.
package contracts

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/rsercano/market-go/pkg/types"
)

// Backend is the node surface the clients need: reads, transactions and
// receipt polling. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

func parseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("contracts: bad ABI: %v", err))
	}
	return parsed
}

func callOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx}
}

// withContext returns a copy of opts carrying ctx, so gas estimation and
// nonce lookups observe the caller's deadline. The caller's struct is never
// mutated.
func withContext(ctx context.Context, opts *bind.TransactOpts) *bind.TransactOpts {
	c := *opts
	if c.Context == nil {
		c.Context = ctx
	}
	return &c
}

// waitMined blocks until the transaction is mined and returns its receipt.
func waitMined(ctx context.Context, backend Backend, tx *ethtypes.Transaction) (*ethtypes.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, backend, tx)
	if err != nil {
		return nil, fmt.Errorf("wait mined %s: %w", tx.Hash(), err)
	}
	return receipt, nil
}

// orderAddresses and orderValues pack an order the way every contract entry
// point expects it: [maker, taker, feeRecipient] and [makerFee, takerFee,
// price, expirationTimestamp, salt].
func orderAddresses(o *types.Order) [3]common.Address {
	return [3]common.Address{o.Maker, o.Taker, o.FeeRecipient}
}

func orderValues(o *types.Order) [5]*big.Int {
	return [5]*big.Int{o.MakerFee, o.TakerFee, o.Price, o.ExpirationTimestamp, o.Salt}
}
