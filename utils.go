package mintsdk

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const (
	MaxDecimals = 18

	// DefaultGasBufferPercent pads gas estimates when no buffer is requested
	DefaultGasBufferPercent = 20
)

// ParseUnits converts a human-readable amount to the token's smallest unit
func ParseUnits(amount string, decimals int) (*big.Int, error) {
	if decimals < 0 || decimals > MaxDecimals {
		return nil, invalidParam("decimals must be between 0 and %d, got: %d", MaxDecimals, decimals)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, invalidParam("invalid amount %q", amount)
	}
	if d.Sign() <= 0 {
		return nil, invalidParam("amount must be positive, got: %s", amount)
	}
	return d.Shift(int32(decimals)).Truncate(0).BigInt(), nil
}

// FormatUnits renders a raw amount in whole token units
func FormatUnits(raw *big.Int, decimals int) string {
	if raw == nil {
		return "0"
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)).String()
}

// IsValidAddress reports whether s is a 0x-prefixed, non-zero hex address
func IsValidAddress(s string) bool {
	return common.IsHexAddress(s) && common.HexToAddress(s) != (common.Address{})
}

// ParseAddress parses a hex address, rejecting malformed and zero addresses
func ParseAddress(s string) (common.Address, error) {
	if !IsValidAddress(s) {
		return common.Address{}, invalidParam("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func applyGasBuffer(estimate uint64, buffer GasBuffer, defaultPercent uint64) uint64 {
	if buffer.Fixed > 0 {
		return estimate + buffer.Fixed
	}
	percent := buffer.Percent
	if percent == 0 {
		percent = defaultPercent
	}
	return estimate * (100 + percent) / 100
}
