package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// CallError reports a failed or undecodable contract read
type CallError struct {
	Contract common.Address
	Method   string
	Err      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("call %s on %s: %v", e.Method, e.Contract.Hex(), e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// TokenInfo holds ERC20 display metadata
type TokenInfo struct {
	Decimals uint8
	Symbol   string
}

// ContractCaller handles read-only contract interactions for one network
type ContractCaller struct {
	reader         Reader
	tokenInfoCache map[common.Address]TokenInfo
	mu             sync.RWMutex
}

// NewContractCaller creates a new ContractCaller instance
func NewContractCaller(reader Reader) *ContractCaller {
	return &ContractCaller{
		reader:         reader,
		tokenInfoCache: make(map[common.Address]TokenInfo),
	}
}

// Call packs method with args, executes it against contract and unpacks the outputs
func (cc *ContractCaller) Call(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, &CallError{Contract: contract, Method: method, Err: fmt.Errorf("pack: %w", err)}
	}

	result, err := cc.reader.CallContract(ctx, ethereum.CallMsg{
		To:   &contract,
		Data: data,
	}, nil)
	if err != nil {
		return nil, &CallError{Contract: contract, Method: method, Err: err}
	}

	out, err := parsed.Unpack(method, result)
	if err != nil {
		return nil, &CallError{Contract: contract, Method: method, Err: fmt.Errorf("unpack: %w", err)}
	}
	if len(out) == 0 && len(parsed.Methods[method].Outputs) > 0 {
		return nil, &CallError{Contract: contract, Method: method, Err: fmt.Errorf("empty result")}
	}
	return out, nil
}

// CallUint calls a method returning a single unsigned integer
func (cc *ContractCaller) CallUint(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...interface{}) (*big.Int, error) {
	out, err := cc.Call(ctx, contract, parsed, method, args...)
	if err != nil {
		return nil, err
	}
	value, err := toBigInt(out[0])
	if err != nil {
		return nil, &CallError{Contract: contract, Method: method, Err: err}
	}
	return value, nil
}

// ERC20Balance returns the ERC20 balance for an account
func (cc *ContractCaller) ERC20Balance(ctx context.Context, token, account common.Address) (*big.Int, error) {
	return cc.CallUint(ctx, token, erc20ABI, "balanceOf", account)
}

// ERC20Allowance returns the ERC20 allowance for owner to spender
func (cc *ContractCaller) ERC20Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return cc.CallUint(ctx, token, erc20ABI, "allowance", owner, spender)
}

// NativeBalance returns the native currency balance for an account
func (cc *ContractCaller) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := cc.reader.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, &CallError{Contract: account, Method: "eth_getBalance", Err: err}
	}
	return balance, nil
}

// TokenInfo gets token decimals and symbol with caching
func (cc *ContractCaller) TokenInfo(ctx context.Context, token common.Address) (TokenInfo, error) {
	cc.mu.RLock()
	info, ok := cc.tokenInfoCache[token]
	cc.mu.RUnlock()
	if ok {
		return info, nil
	}

	out, err := cc.Call(ctx, token, erc20ABI, "decimals")
	if err != nil {
		return TokenInfo{}, err
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return TokenInfo{}, &CallError{Contract: token, Method: "decimals", Err: fmt.Errorf("unexpected type %T", out[0])}
	}

	out, err = cc.Call(ctx, token, erc20ABI, "symbol")
	if err != nil {
		return TokenInfo{}, err
	}
	symbol, _ := out[0].(string)

	info = TokenInfo{Decimals: decimals, Symbol: symbol}
	cc.mu.Lock()
	cc.tokenInfoCache[token] = info
	cc.mu.Unlock()
	return info, nil
}

// EstimateGas estimates the gas limit of a transaction request
func (cc *ContractCaller) EstimateGas(ctx context.Context, req TxRequest) (uint64, error) {
	to := req.To
	return cc.reader.EstimateGas(ctx, ethereum.CallMsg{
		From:  req.From,
		To:    &to,
		Value: req.Value,
		Data:  req.Data,
	})
}

// EncodeApprove builds an ERC20 approve call for exactly amount
func EncodeApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	data, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack approve: %w", err)
	}
	return data, nil
}

func toBigInt(v interface{}) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		return n, nil
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	default:
		return nil, fmt.Errorf("unexpected numeric type %T", v)
	}
}

func toUint64(v *big.Int) uint64 {
	if v == nil || v.Sign() <= 0 {
		return 0
	}
	if !v.IsUint64() {
		return ^uint64(0)
	}
	return v.Uint64()
}
