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
	"github.com/rsercano/market-go/pkg/types"
)

const marketContractABI = `[
{"type":"function","name":"CONTRACT_NAME","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
{"type":"function","name":"PRICE_FLOOR","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"PRICE_CAP","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"QTY_MULTIPLIER","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"PRICE_DECIMAL_PLACES","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"MARKET_COLLATERAL_POOL_ADDRESS","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"COLLATERAL_TOKEN_ADDRESS","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"ORACLE_QUERY","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
{"type":"function","name":"isSettled","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"getQtyFilledOrCancelledFromOrder","stateMutability":"view","inputs":[{"name":"orderHash","type":"bytes32"}],"outputs":[{"name":"","type":"int256"}]},
{"type":"function","name":"tradeOrder","stateMutability":"nonpayable","inputs":[{"name":"orderAddresses","type":"address[3]"},{"name":"unsignedOrderValues","type":"uint256[5]"},{"name":"orderQty","type":"int256"},{"name":"qtyToFill","type":"int256"},{"name":"v","type":"uint8"},{"name":"r","type":"bytes32"},{"name":"s","type":"bytes32"}],"outputs":[{"name":"filledQty","type":"int256"}]},
{"type":"function","name":"cancelOrder","stateMutability":"nonpayable","inputs":[{"name":"orderAddresses","type":"address[3]"},{"name":"unsignedOrderValues","type":"uint256[5]"},{"name":"orderQty","type":"int256"},{"name":"qtyToCancel","type":"int256"}],"outputs":[{"name":"qtyCancelled","type":"int256"}]},
{"type":"event","name":"OrderFilled","inputs":[{"name":"maker","type":"address","indexed":true},{"name":"taker","type":"address","indexed":false},{"name":"feeRecipient","type":"address","indexed":false},{"name":"filledQty","type":"int256","indexed":false},{"name":"paidMakerFee","type":"uint256","indexed":false},{"name":"paidTakerFee","type":"uint256","indexed":false},{"name":"orderHash","type":"bytes32","indexed":false}]},
{"type":"event","name":"OrderCancelled","inputs":[{"name":"maker","type":"address","indexed":true},{"name":"feeRecipient","type":"address","indexed":false},{"name":"cancelledQty","type":"int256","indexed":false},{"name":"orderHash","type":"bytes32","indexed":false}]},
{"type":"event","name":"Error","inputs":[{"name":"errorCode","type":"uint8","indexed":false},{"name":"orderHash","type":"bytes32","indexed":true}]}
]`

// Trade rejection codes emitted by the contract's Error event.
const (
	errCodeOrderExpired = 0
	errCodeOrderDead    = 1
)

type orderFilledEvent struct {
	Maker        common.Address
	Taker        common.Address
	FeeRecipient common.Address
	FilledQty    *big.Int
	PaidMakerFee *big.Int
	PaidTakerFee *big.Int
	OrderHash    [32]byte
}

type orderCancelledEvent struct {
	Maker        common.Address
	FeeRecipient common.Address
	CancelledQty *big.Int
	OrderHash    [32]byte
}

type errorEvent struct {
	ErrorCode uint8
	OrderHash [32]byte
}

// MarketContractClient serves every deployed market contract instance from
// one backend connection, binding each address on first use.
type MarketContractClient struct {
	backend Backend
	abi     abi.ABI

	mtx   sync.Mutex
	bound map[common.Address]*bind.BoundContract
}

var _ ledger.MarketContractClient = (*MarketContractClient)(nil)

func NewMarketContractClient(backend Backend) *MarketContractClient {
	return &MarketContractClient{
		backend: backend,
		abi:     parseABI(marketContractABI),
		bound:   make(map[common.Address]*bind.BoundContract),
	}
}

func (c *MarketContractClient) contract(addr common.Address) *bind.BoundContract {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if b, ok := c.bound[addr]; ok {
		return b
	}
	b := bind.NewBoundContract(addr, c.abi, c.backend, c.backend, c.backend)
	c.bound[addr] = b
	return b
}

func (c *MarketContractClient) callString(ctx context.Context, contract common.Address, method string) (string, error) {
	var out []interface{}
	if err := c.contract(contract).Call(callOpts(ctx), &out, method); err != nil {
		return "", fmt.Errorf("%s %s: %w", method, contract, err)
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

func (c *MarketContractClient) callBig(ctx context.Context, contract common.Address, method string) (*big.Int, error) {
	var out []interface{}
	if err := c.contract(contract).Call(callOpts(ctx), &out, method); err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, contract, err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (c *MarketContractClient) callAddress(ctx context.Context, contract common.Address, method string) (common.Address, error) {
	var out []interface{}
	if err := c.contract(contract).Call(callOpts(ctx), &out, method); err != nil {
		return common.Address{}, fmt.Errorf("%s %s: %w", method, contract, err)
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// Specs reads the contract's immutable trading parameters.
func (c *MarketContractClient) Specs(ctx context.Context, contract common.Address) (*types.ContractSpecs, error) {
	specs := &types.ContractSpecs{}
	var err error
	if specs.Name, err = c.callString(ctx, contract, "CONTRACT_NAME"); err != nil {
		return nil, err
	}
	if specs.PriceFloor, err = c.callBig(ctx, contract, "PRICE_FLOOR"); err != nil {
		return nil, err
	}
	if specs.PriceCap, err = c.callBig(ctx, contract, "PRICE_CAP"); err != nil {
		return nil, err
	}
	if specs.QtyMultiplier, err = c.callBig(ctx, contract, "QTY_MULTIPLIER"); err != nil {
		return nil, err
	}
	if specs.PriceDecimalPlaces, err = c.callBig(ctx, contract, "PRICE_DECIMAL_PLACES"); err != nil {
		return nil, err
	}
	if specs.CollateralPool, err = c.callAddress(ctx, contract, "MARKET_COLLATERAL_POOL_ADDRESS"); err != nil {
		return nil, err
	}
	if specs.CollateralToken, err = c.callAddress(ctx, contract, "COLLATERAL_TOKEN_ADDRESS"); err != nil {
		return nil, err
	}
	return specs, nil
}

func (c *MarketContractClient) IsSettled(ctx context.Context, contract common.Address) (bool, error) {
	var out []interface{}
	if err := c.contract(contract).Call(callOpts(ctx), &out, "isSettled"); err != nil {
		return false, fmt.Errorf("isSettled %s: %w", contract, err)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (c *MarketContractClient) OracleQuery(ctx context.Context, contract common.Address) (string, error) {
	return c.callString(ctx, contract, "ORACLE_QUERY")
}

func (c *MarketContractClient) FilledOrCancelledQty(ctx context.Context, contract common.Address, orderHash common.Hash) (*big.Int, error) {
	var out []interface{}
	if err := c.contract(contract).Call(callOpts(ctx), &out, "getQtyFilledOrCancelledFromOrder", orderHash); err != nil {
		return nil, fmt.Errorf("getQtyFilledOrCancelledFromOrder %s: %w", contract, err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// TradeOrder submits a fill and returns the quantity the contract reports
// filled. Rejections the contract signals through its Error event map to the
// trade-validation sentinels.
func (c *MarketContractClient) TradeOrder(ctx context.Context, opts *bind.TransactOpts, order *types.SignedOrder, fillQty *big.Int) (*big.Int, error) {
	bound := c.contract(order.ContractAddress)
	tx, err := bound.Transact(withContext(ctx, opts), "tradeOrder",
		orderAddresses(&order.Order), orderValues(&order.Order),
		order.OrderQty, fillQty,
		order.Signature.V, order.Signature.R, order.Signature.S)
	if err != nil {
		return nil, fmt.Errorf("tradeOrder %s: %w", order.ContractAddress, err)
	}
	receipt, err := waitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, err
	}

	for _, lg := range receipt.Logs {
		if lg.Address != order.ContractAddress || len(lg.Topics) == 0 {
			continue
		}
		switch lg.Topics[0] {
		case c.abi.Events["Error"].ID:
			var ev errorEvent
			if err := bound.UnpackLog(&ev, "Error", *lg); err != nil {
				return nil, fmt.Errorf("decode Error event: %w", err)
			}
			return nil, tradeErrorFromCode(ev.ErrorCode)
		case c.abi.Events["OrderFilled"].ID:
			var ev orderFilledEvent
			if err := bound.UnpackLog(&ev, "OrderFilled", *lg); err != nil {
				return nil, fmt.Errorf("decode OrderFilled event: %w", err)
			}
			return ev.FilledQty, nil
		}
	}
	return nil, types.ErrUnknownOrder
}

// CancelOrder cancels up to cancelQty of the order and returns the quantity
// the contract reports cancelled.
func (c *MarketContractClient) CancelOrder(ctx context.Context, opts *bind.TransactOpts, order *types.Order, cancelQty *big.Int) (*big.Int, error) {
	bound := c.contract(order.ContractAddress)
	tx, err := bound.Transact(withContext(ctx, opts), "cancelOrder",
		orderAddresses(order), orderValues(order), order.OrderQty, cancelQty)
	if err != nil {
		return nil, fmt.Errorf("cancelOrder %s: %w", order.ContractAddress, err)
	}
	receipt, err := waitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, err
	}

	for _, lg := range receipt.Logs {
		if lg.Address != order.ContractAddress || len(lg.Topics) == 0 {
			continue
		}
		switch lg.Topics[0] {
		case c.abi.Events["Error"].ID:
			var ev errorEvent
			if err := bound.UnpackLog(&ev, "Error", *lg); err != nil {
				return nil, fmt.Errorf("decode Error event: %w", err)
			}
			return nil, tradeErrorFromCode(ev.ErrorCode)
		case c.abi.Events["OrderCancelled"].ID:
			var ev orderCancelledEvent
			if err := bound.UnpackLog(&ev, "OrderCancelled", *lg); err != nil {
				return nil, fmt.Errorf("decode OrderCancelled event: %w", err)
			}
			return ev.CancelledQty, nil
		}
	}
	return nil, types.ErrUnknownOrder
}

func tradeErrorFromCode(code uint8) error {
	switch code {
	case errCodeOrderExpired:
		return types.ErrOrderExpired
	case errCodeOrderDead:
		return types.ErrOrderDead
	default:
		return types.ErrUnknownOrder
	}
}
