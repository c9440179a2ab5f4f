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

const erc20ABI = `[
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// ERC20Client reads balances and allowances and submits approvals for any
// token address, binding each token on first use.
type ERC20Client struct {
	backend Backend
	abi     abi.ABI

	mtx   sync.Mutex
	bound map[common.Address]*bind.BoundContract
}

var _ ledger.Token = (*ERC20Client)(nil)

func NewERC20Client(backend Backend) *ERC20Client {
	return &ERC20Client{
		backend: backend,
		abi:     parseABI(erc20ABI),
		bound:   make(map[common.Address]*bind.BoundContract),
	}
}

func (c *ERC20Client) contract(addr common.Address) *bind.BoundContract {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if b, ok := c.bound[addr]; ok {
		return b
	}
	b := bind.NewBoundContract(addr, c.abi, c.backend, c.backend, c.backend)
	c.bound[addr] = b
	return b
}

func (c *ERC20Client) Balance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	var out []interface{}
	if err := c.contract(token).Call(callOpts(ctx), &out, "balanceOf", owner); err != nil {
		return nil, fmt.Errorf("balanceOf %s: %w", token, err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (c *ERC20Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	var out []interface{}
	if err := c.contract(token).Call(callOpts(ctx), &out, "allowance", owner, spender); err != nil {
		return nil, fmt.Errorf("allowance %s: %w", token, err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (c *ERC20Client) Approve(ctx context.Context, opts *bind.TransactOpts, token, spender common.Address, amount *big.Int) error {
	tx, err := c.contract(token).Transact(withContext(ctx, opts), "approve", spender, amount)
	if err != nil {
		return fmt.Errorf("approve %s: %w", token, err)
	}
	_, err = waitMined(ctx, c.backend, tx)
	return err
}
