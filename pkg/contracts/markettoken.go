package contracts

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rsercano/market-go/pkg/ledger"
)

const marketTokenABI = `[
{"type":"function","name":"isUserEnabledForContract","stateMutability":"view","inputs":[{"name":"marketContractAddress","type":"address"},{"name":"userAddress","type":"address"}],"outputs":[{"name":"","type":"bool"}]}
]`

// MarketTokenClient answers membership checks against the protocol token.
type MarketTokenClient struct {
	addr  common.Address
	bound *bind.BoundContract
}

var _ ledger.MembershipToken = (*MarketTokenClient)(nil)

func NewMarketTokenClient(backend Backend, token common.Address) *MarketTokenClient {
	return &MarketTokenClient{
		addr:  token,
		bound: bind.NewBoundContract(token, parseABI(marketTokenABI), backend, backend, backend),
	}
}

func (c *MarketTokenClient) IsUserEnabledForContract(ctx context.Context, contract, user common.Address) (bool, error) {
	var out []interface{}
	if err := c.bound.Call(callOpts(ctx), &out, "isUserEnabledForContract", contract, user); err != nil {
		return false, fmt.Errorf("isUserEnabledForContract %s: %w", c.addr, err)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}
