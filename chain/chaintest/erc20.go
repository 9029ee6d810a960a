package chaintest

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kaifufi/mint-sdk-go/chain"
)

// ERC20 is a stateful token mounted on a Backend
type ERC20 struct {
	mu         sync.Mutex
	Address    common.Address
	balances   map[common.Address]*big.Int
	allowances map[[2]common.Address]*big.Int
}

// NewERC20 registers a token at address with the given metadata
func NewERC20(b *Backend, address common.Address, decimals uint8, symbol string) *ERC20 {
	t := &ERC20{
		Address:    address,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[[2]common.Address]*big.Int),
	}
	parsed := chain.GetERC20ABI()
	b.Return(address, parsed, "decimals", decimals)
	b.Return(address, parsed, "symbol", symbol)
	b.Handle(address, parsed, "balanceOf", func(args []interface{}) ([]interface{}, error) {
		return []interface{}{t.BalanceOf(args[0].(common.Address))}, nil
	})
	b.Handle(address, parsed, "allowance", func(args []interface{}) ([]interface{}, error) {
		return []interface{}{t.Allowance(args[0].(common.Address), args[1].(common.Address))}, nil
	})
	return t
}

// SetBalance sets owner's balance
func (t *ERC20) SetBalance(owner common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[owner] = new(big.Int).Set(amount)
}

// SetAllowance sets owner's allowance for spender
func (t *ERC20) SetAllowance(owner, spender common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowances[[2]common.Address{owner, spender}] = new(big.Int).Set(amount)
}

// BalanceOf returns owner's balance
func (t *ERC20) BalanceOf(owner common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.balances[owner]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// Allowance returns owner's allowance for spender
func (t *ERC20) Allowance(owner, spender common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.allowances[[2]common.Address{owner, spender}]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}
