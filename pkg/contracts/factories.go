package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rsercano/market-go/pkg/ledger"
)

const contractFactoryABI = `[
{"type":"function","name":"deployMarketContractOraclize","stateMutability":"nonpayable","inputs":[{"name":"contractName","type":"string"},{"name":"collateralTokenAddress","type":"address"},{"name":"contractSpecs","type":"uint256[]"},{"name":"oracleDataSource","type":"string"},{"name":"oracleQuery","type":"string"}],"outputs":[]},
{"type":"event","name":"MarketContractCreated","inputs":[{"name":"creator","type":"address","indexed":true},{"name":"contractAddress","type":"address","indexed":false}]}
]`

const poolFactoryABI = `[
{"type":"function","name":"deployMarketCollateralPool","stateMutability":"nonpayable","inputs":[{"name":"marketContractAddress","type":"address"}],"outputs":[]}
]`

type marketContractCreatedEvent struct {
	Creator         common.Address
	ContractAddress common.Address
}

// ContractFactoryClient deploys new market contracts through the protocol
// factory, which registers them on the whitelist as part of deployment.
type ContractFactoryClient struct {
	backend Backend
	addr    common.Address
	abi     abi.ABI
	bound   *bind.BoundContract
}

var _ ledger.ContractFactory = (*ContractFactoryClient)(nil)

func NewContractFactoryClient(backend Backend, factory common.Address) *ContractFactoryClient {
	parsed := parseABI(contractFactoryABI)
	return &ContractFactoryClient{
		backend: backend,
		addr:    factory,
		abi:     parsed,
		bound:   bind.NewBoundContract(factory, parsed, backend, backend, backend),
	}
}

// DeployMarketContractOraclize deploys a new market contract and returns its
// address, decoded from the factory's creation event.
func (c *ContractFactoryClient) DeployMarketContractOraclize(ctx context.Context, opts *bind.TransactOpts, name string,
	collateralToken common.Address, contractSpecs []*big.Int,
	oracleDataSource, oracleQuery string) (common.Address, error) {

	tx, err := c.bound.Transact(withContext(ctx, opts), "deployMarketContractOraclize",
		name, collateralToken, contractSpecs, oracleDataSource, oracleQuery)
	if err != nil {
		return common.Address{}, fmt.Errorf("deployMarketContractOraclize %s: %w", c.addr, err)
	}
	receipt, err := waitMined(ctx, c.backend, tx)
	if err != nil {
		return common.Address{}, err
	}

	eventID := c.abi.Events["MarketContractCreated"].ID
	for _, lg := range receipt.Logs {
		if lg.Address != c.addr || len(lg.Topics) == 0 || lg.Topics[0] != eventID {
			continue
		}
		var ev marketContractCreatedEvent
		if err := c.bound.UnpackLog(&ev, "MarketContractCreated", *lg); err != nil {
			return common.Address{}, fmt.Errorf("decode MarketContractCreated event: %w", err)
		}
		return ev.ContractAddress, nil
	}
	return common.Address{}, fmt.Errorf("deployMarketContractOraclize %s: no creation event in tx %s", c.addr, tx.Hash())
}

// PoolFactoryClient deploys the collateral pool linked to a market contract.
type PoolFactoryClient struct {
	backend Backend
	addr    common.Address
	bound   *bind.BoundContract
}

var _ ledger.PoolFactory = (*PoolFactoryClient)(nil)

func NewPoolFactoryClient(backend Backend, factory common.Address) *PoolFactoryClient {
	return &PoolFactoryClient{
		backend: backend,
		addr:    factory,
		bound:   bind.NewBoundContract(factory, parseABI(poolFactoryABI), backend, backend, backend),
	}
}

// DeployCollateralPool links a new pool to the given market contract and
// returns the deployment transaction hash once mined.
func (c *PoolFactoryClient) DeployCollateralPool(ctx context.Context, opts *bind.TransactOpts, contract common.Address) (common.Hash, error) {
	tx, err := c.bound.Transact(withContext(ctx, opts), "deployMarketCollateralPool", contract)
	if err != nil {
		return common.Hash{}, fmt.Errorf("deployMarketCollateralPool %s: %w", c.addr, err)
	}
	if _, err := waitMined(ctx, c.backend, tx); err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}
