package contracts

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rsercano/market-go/pkg/ledger"
)

const registryABI = `[
{"type":"function","name":"getAddressWhiteList","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]}
]`

// RegistryClient reads the whitelist of deployed market contracts.
type RegistryClient struct {
	addr  common.Address
	bound *bind.BoundContract
}

var _ ledger.Registry = (*RegistryClient)(nil)

func NewRegistryClient(backend Backend, registry common.Address) *RegistryClient {
	return &RegistryClient{
		addr:  registry,
		bound: bind.NewBoundContract(registry, parseABI(registryABI), backend, backend, backend),
	}
}

func (c *RegistryClient) AddressWhiteList(ctx context.Context) ([]common.Address, error) {
	var out []interface{}
	if err := c.bound.Call(callOpts(ctx), &out, "getAddressWhiteList"); err != nil {
		return nil, fmt.Errorf("getAddressWhiteList %s: %w", c.addr, err)
	}
	return *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address), nil
}
