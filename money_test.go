package mintsdk

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMoneyExactArithmetic(t *testing.T) {
	unit, err := ParseMoney("0.05", 18, NativeToken, "ETH")
	require.NoError(t, err)
	fee, err := ParseMoney("0.00069", 18, NativeToken, "ETH")
	require.NoError(t, err)

	perUnit, err := unit.Add(fee)
	require.NoError(t, err)
	total, err := perUnit.MulInt(2)
	require.NoError(t, err)

	require.Equal(t, "101380000000000000", total.Raw().String())
	require.Equal(t, "0.10138", total.Formatted())
	require.Equal(t, "0.10138 ETH", total.String())

	back, err := total.Sub(perUnit)
	require.NoError(t, err)
	cmp, err := back.Cmp(perUnit)
	require.NoError(t, err)
	require.Zero(t, cmp)
}

func TestMoneyRefusesToMixTokens(t *testing.T) {
	eth := ZeroMoney(18, NativeToken, "ETH")
	usdc := ZeroMoney(6, ERC20Token(usdcAddr), "USDC")

	_, err := eth.Add(usdc)
	require.ErrorIs(t, err, ErrTokenMismatch)
	_, err = eth.Cmp(usdc)
	require.ErrorIs(t, err, ErrTokenMismatch)

	// same token with different decimals is also a mismatch
	_, err = eth.Sub(ZeroMoney(6, NativeToken, "ETH"))
	require.ErrorIs(t, err, ErrTokenMismatch)
}

func TestMoneyBounds(t *testing.T) {
	_, err := NewMoney(big.NewInt(-1), 18, NativeToken, "ETH")
	require.ErrorIs(t, err, ErrInvalidParam)

	_, err = NewMoney(new(big.Int).Lsh(big.NewInt(1), 256), 18, NativeToken, "ETH")
	require.ErrorIs(t, err, ErrAmountOverflow)

	one, err := NewMoney(big.NewInt(1), 18, NativeToken, "ETH")
	require.NoError(t, err)
	_, err = ZeroMoney(18, NativeToken, "ETH").Sub(one)
	require.ErrorIs(t, err, ErrAmountOverflow)

	largest, err := NewMoney(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)), 18, NativeToken, "ETH")
	require.NoError(t, err)
	_, err = largest.MulInt(2)
	require.ErrorIs(t, err, ErrAmountOverflow)
}

func TestParseMoneyRejectsExcessPrecision(t *testing.T) {
	_, err := ParseMoney("1.0000001", 6, ERC20Token(usdcAddr), "USDC")
	require.ErrorIs(t, err, ErrInvalidParam)

	_, err = ParseMoney("abc", 6, ERC20Token(usdcAddr), "USDC")
	require.ErrorIs(t, err, ErrInvalidParam)

	m, err := ParseMoney("100", 6, ERC20Token(usdcAddr), "USDC")
	require.NoError(t, err)
	require.Equal(t, "100000000", m.Raw().String())
	require.Equal(t, "100 USDC", m.String())
}

func TestMoneyUSDSnapshot(t *testing.T) {
	m, err := ParseMoney("0.5", 18, NativeToken, "ETH")
	require.NoError(t, err)

	_, ok := m.USD()
	require.False(t, ok)

	priced := m.WithUSD(decimal.RequireFromString("3000"))
	usd, ok := priced.USD()
	require.True(t, ok)
	require.True(t, usd.Equal(decimal.RequireFromString("1500")))

	doubled, err := priced.MulInt(2)
	require.NoError(t, err)
	_, ok = doubled.USD()
	require.False(t, ok)
}

func TestTokenID(t *testing.T) {
	token := ERC20Token(usdcAddr)
	require.False(t, token.IsNative())
	require.Equal(t, usdcAddr, token.Address())
	require.Equal(t, TokenID("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"), token)
	require.True(t, NativeToken.IsNative())
}
