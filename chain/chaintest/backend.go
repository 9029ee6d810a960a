// Package chaintest provides an in-memory contract backend that answers
// eth_call by decoding calldata against real ABIs.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrNoHandler is returned for calls nobody registered
var ErrNoHandler = errors.New("chaintest: no handler")

// Handler answers one contract method given its decoded inputs
type Handler func(args []interface{}) ([]interface{}, error)

type handlerKey struct {
	contract common.Address
	selector [4]byte
}

type handlerEntry struct {
	method abi.Method
	fn     Handler
}

// Backend implements chain.Reader
type Backend struct {
	mu       sync.Mutex
	handlers map[handlerKey]handlerEntry
	balances map[common.Address]*big.Int
	gas      uint64
	gasErr   error
	calls    map[string]int
}

// NewBackend creates an empty backend
func NewBackend() *Backend {
	return &Backend{
		handlers: make(map[handlerKey]handlerEntry),
		balances: make(map[common.Address]*big.Int),
		calls:    make(map[string]int),
		gas:      21000,
	}
}

// Handle registers fn for method on contract
func (b *Backend) Handle(contract common.Address, parsed abi.ABI, method string, fn Handler) {
	m, ok := parsed.Methods[method]
	if !ok {
		panic(fmt.Sprintf("chaintest: method %s not in ABI", method))
	}
	var selector [4]byte
	copy(selector[:], m.ID)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[handlerKey{contract: contract, selector: selector}] = handlerEntry{method: m, fn: fn}
}

// Return registers a static result for method on contract
func (b *Backend) Return(contract common.Address, parsed abi.ABI, method string, outputs ...interface{}) {
	b.Handle(contract, parsed, method, func([]interface{}) ([]interface{}, error) {
		return outputs, nil
	})
}

// Fail makes method on contract return err
func (b *Backend) Fail(contract common.Address, parsed abi.ABI, method string, err error) {
	b.Handle(contract, parsed, method, func([]interface{}) ([]interface{}, error) {
		return nil, err
	})
}

// SetBalance sets the native balance of account
func (b *Backend) SetBalance(account common.Address, wei *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[account] = new(big.Int).Set(wei)
}

// SetGas sets the gas estimate (or estimation error) returned by EstimateGas
func (b *Backend) SetGas(gas uint64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gas = gas
	b.gasErr = err
}

// Calls returns how many times method was invoked
func (b *Backend) Calls(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method]
}

// CallContract decodes msg against the registered ABI and packs the handler's outputs
func (b *Backend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, fmt.Errorf("chaintest: malformed call")
	}
	key := handlerKey{contract: *msg.To, selector: [4]byte(msg.Data[:4])}

	b.mu.Lock()
	entry, ok := b.handlers[key]
	if ok {
		b.calls[entry.method.Name]++
	}
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w for %x on %s", ErrNoHandler, msg.Data[:4], msg.To.Hex())
	}

	args, err := entry.method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, fmt.Errorf("chaintest: unpack %s inputs: %w", entry.method.Name, err)
	}
	out, err := entry.fn(args)
	if err != nil {
		return nil, err
	}
	return entry.method.Outputs.Pack(out...)
}

// BalanceAt returns the configured native balance
func (b *Backend) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["eth_getBalance"]++
	if bal, ok := b.balances[account]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

// EstimateGas returns the configured estimate
func (b *Backend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["eth_estimateGas"]++
	return b.gas, b.gasErr
}
