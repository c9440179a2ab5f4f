package contracts

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rsercano/market-go/pkg/ledger"
)

const collateralPoolABI = `[
{"type":"function","name":"getUserAccountBalance","stateMutability":"view","inputs":[{"name":"userAddress","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"depositTokensForTrading","stateMutability":"nonpayable","inputs":[{"name":"depositAmount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"withdrawTokens","stateMutability":"nonpayable","inputs":[{"name":"withdrawAmount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"settleAndClose","stateMutability":"nonpayable","inputs":[],"outputs":[]}
]`

// CollateralPoolClient serves every pool instance from one backend
// connection, binding each address on first use.
type CollateralPoolClient struct {
	backend Backend
	abi     abi.ABI

	mtx   sync.Mutex
	bound map[common.Address]*bind.BoundContract
}

var _ ledger.CollateralPool = (*CollateralPoolClient)(nil)

func NewCollateralPoolClient(backend Backend) *CollateralPoolClient {
	return &CollateralPoolClient{
		backend: backend,
		abi:     parseABI(collateralPoolABI),
		bound:   make(map[common.Address]*bind.BoundContract),
	}
}

func (c *CollateralPoolClient) contract(addr common.Address) *bind.BoundContract {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if b, ok := c.bound[addr]; ok {
		return b
	}
	b := bind.NewBoundContract(addr, c.abi, c.backend, c.backend, c.backend)
	c.bound[addr] = b
	return b
}

func (c *CollateralPoolClient) Balance(ctx context.Context, pool, user common.Address) (*big.Int, error) {
	var out []interface{}
	if err := c.contract(pool).Call(callOpts(ctx), &out, "getUserAccountBalance", user); err != nil {
		return nil, fmt.Errorf("getUserAccountBalance %s: %w", pool, err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (c *CollateralPoolClient) Deposit(ctx context.Context, opts *bind.TransactOpts, pool common.Address, amount *big.Int) error {
	return c.transact(ctx, opts, pool, "depositTokensForTrading", amount)
}

func (c *CollateralPoolClient) Withdraw(ctx context.Context, opts *bind.TransactOpts, pool common.Address, amount *big.Int) error {
	return c.transact(ctx, opts, pool, "withdrawTokens", amount)
}

func (c *CollateralPoolClient) SettleAndClose(ctx context.Context, opts *bind.TransactOpts, pool common.Address) error {
	return c.transact(ctx, opts, pool, "settleAndClose")
}

func (c *CollateralPoolClient) transact(ctx context.Context, opts *bind.TransactOpts, pool common.Address, method string, args ...interface{}) error {
	tx, err := c.contract(pool).Transact(withContext(ctx, opts), method, args...)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, pool, err)
	}
	_, err = waitMined(ctx, c.backend, tx)
	return err
}
