package mintsdk

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// TokenID identifies a payment currency: "native" or a lowercase ERC20 address
type TokenID string

// NativeToken is the network's native currency
const NativeToken TokenID = "native"

// ERC20Token returns the TokenID for an ERC20 contract
func ERC20Token(addr common.Address) TokenID {
	return TokenID(strings.ToLower(addr.Hex()))
}

// IsNative reports whether t is the native currency
func (t TokenID) IsNative() bool {
	return t == NativeToken
}

// Address returns the ERC20 contract address, zero for the native currency
func (t TokenID) Address() common.Address {
	if t.IsNative() {
		return common.Address{}
	}
	return common.HexToAddress(string(t))
}

// Money is an immutable token-tagged amount in the token's smallest unit.
// Arithmetic is only defined between amounts of the same token and decimals.
type Money struct {
	raw      uint256.Int
	decimals uint8
	token    TokenID
	symbol   string
	usd      *decimal.Decimal
}

// NewMoney creates a Money from a raw amount
func NewMoney(raw *big.Int, decimals uint8, token TokenID, symbol string) (Money, error) {
	m := Money{decimals: decimals, token: token, symbol: symbol}
	if raw == nil {
		return m, nil
	}
	if raw.Sign() < 0 {
		return Money{}, invalidParam("amount must not be negative, got %s", raw)
	}
	if m.raw.SetFromBig(raw) {
		return Money{}, fmt.Errorf("%w: %s", ErrAmountOverflow, raw)
	}
	return m, nil
}

// ZeroMoney returns a zero amount of token
func ZeroMoney(decimals uint8, token TokenID, symbol string) Money {
	return Money{decimals: decimals, token: token, symbol: symbol}
}

// ParseMoney parses a human-readable amount such as "0.05"
func ParseMoney(amount string, decimals uint8, token TokenID, symbol string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, invalidParam("invalid amount %q: %v", amount, err)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return Money{}, invalidParam("amount %q has more than %d decimals", amount, decimals)
	}
	return NewMoney(scaled.BigInt(), decimals, token, symbol)
}

// Raw returns a copy of the amount in the smallest unit
func (m Money) Raw() *big.Int {
	return m.raw.ToBig()
}

// Decimals returns the token decimals
func (m Money) Decimals() uint8 { return m.decimals }

// Token returns the token identifier
func (m Money) Token() TokenID { return m.token }

// Symbol returns the token symbol
func (m Money) Symbol() string { return m.symbol }

// IsZero reports whether the amount is zero
func (m Money) IsZero() bool {
	return m.raw.IsZero()
}

func (m Money) sameCurrency(o Money) error {
	if m.token != o.token || m.decimals != o.decimals {
		return fmt.Errorf("%w: %s/%d and %s/%d", ErrTokenMismatch, m.token, m.decimals, o.token, o.decimals)
	}
	return nil
}

// Add returns m + o
func (m Money) Add(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	out := m.withoutUSD()
	if _, overflow := out.raw.AddOverflow(&m.raw, &o.raw); overflow {
		return Money{}, fmt.Errorf("%w: %s + %s", ErrAmountOverflow, m, o)
	}
	return out, nil
}

// Sub returns m - o, failing when o exceeds m
func (m Money) Sub(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	out := m.withoutUSD()
	if _, underflow := out.raw.SubOverflow(&m.raw, &o.raw); underflow {
		return Money{}, fmt.Errorf("%w: %s - %s is negative", ErrAmountOverflow, m, o)
	}
	return out, nil
}

// MulInt returns m * n
func (m Money) MulInt(n uint64) (Money, error) {
	out := m.withoutUSD()
	if _, overflow := out.raw.MulOverflow(&m.raw, uint256.NewInt(n)); overflow {
		return Money{}, fmt.Errorf("%w: %s * %d", ErrAmountOverflow, m, n)
	}
	return out, nil
}

// Cmp compares m and o
func (m Money) Cmp(o Money) (int, error) {
	if err := m.sameCurrency(o); err != nil {
		return 0, err
	}
	return m.raw.Cmp(&o.raw), nil
}

// Decimal returns the amount in whole token units
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(m.raw.ToBig(), -int32(m.decimals))
}

// Formatted returns the amount without symbol, e.g. "0.10138"
func (m Money) Formatted() string {
	return m.Decimal().String()
}

func (m Money) String() string {
	if m.symbol == "" {
		return m.Formatted()
	}
	return m.Formatted() + " " + m.symbol
}

// WithUSD returns a copy carrying a USD value snapshot at the given unit price
func (m Money) WithUSD(unitPrice decimal.Decimal) Money {
	out := m
	usd := m.Decimal().Mul(unitPrice)
	out.usd = &usd
	return out
}

// USD returns the USD snapshot, if one was attached
func (m Money) USD() (decimal.Decimal, bool) {
	if m.usd == nil {
		return decimal.Zero, false
	}
	return *m.usd, true
}

func (m Money) withoutUSD() Money {
	out := m
	out.usd = nil
	return out
}
