package mintsdk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustMoney(t *testing.T, amount string, decimals uint8, token TokenID, symbol string) Money {
	t.Helper()
	m, err := ParseMoney(amount, decimals, token, symbol)
	require.NoError(t, err)
	return m
}

func TestComputeCostNative(t *testing.T) {
	state := &ClaimState{
		UnitCost:           mustMoney(t, "0.05", 18, NativeToken, "ETH"),
		PlatformFeePerUnit: mustMoney(t, "0.00069", 18, NativeToken, "ETH"),
	}

	cost, err := ComputeCost(state, 2)
	require.NoError(t, err)
	require.Len(t, cost.PerToken, 1)
	require.Equal(t, "0.10138 ETH", cost.PerToken[NativeToken].String())
	require.Equal(t, "0.1 ETH", cost.ProductSubtotal.String())
	require.Equal(t, "0.00138 ETH", cost.PlatformFeeSubtotal.String())
}

func TestComputeCostMixedTokens(t *testing.T) {
	usdc := ERC20Token(usdcAddr)
	state := &ClaimState{
		UnitCost:           mustMoney(t, "100", 6, usdc, "USDC"),
		PlatformFeePerUnit: mustMoney(t, "0.00069", 18, NativeToken, "ETH"),
	}

	cost, err := ComputeCost(state, 3)
	require.NoError(t, err)
	require.Equal(t, []TokenID{usdc, NativeToken}, cost.Tokens())
	require.Equal(t, "300 USDC", cost.PerToken[usdc].String())
	require.Equal(t, "0.00207 ETH", cost.PerToken[NativeToken].String())
}

func TestComputeCostOmitsZeroEntries(t *testing.T) {
	state := &ClaimState{
		UnitCost:           ZeroMoney(18, NativeToken, "ETH"),
		PlatformFeePerUnit: ZeroMoney(18, NativeToken, "ETH"),
	}
	cost, err := ComputeCost(state, 5)
	require.NoError(t, err)
	require.Empty(t, cost.PerToken)
	require.Empty(t, cost.Tokens())

	_, err = ComputeCost(state, 0)
	require.ErrorIs(t, err, ErrInvalidParam)
}

func TestComputeCostIsAdditive(t *testing.T) {
	usdc := ERC20Token(usdcAddr)
	state := &ClaimState{
		UnitCost:           mustMoney(t, "12.5", 6, usdc, "USDC"),
		PlatformFeePerUnit: mustMoney(t, "0.000777", 18, NativeToken, "ETH"),
	}

	for _, split := range [][2]uint32{{1, 1}, {1, 4}, {3, 7}, {10, 90}} {
		whole, err := ComputeCost(state, split[0]+split[1])
		require.NoError(t, err)
		a, err := ComputeCost(state, split[0])
		require.NoError(t, err)
		b, err := ComputeCost(state, split[1])
		require.NoError(t, err)
		merged, err := a.Merge(b)
		require.NoError(t, err)

		require.Equal(t, whole.Tokens(), merged.Tokens())
		for _, token := range whole.Tokens() {
			require.Equal(t, whole.PerToken[token].String(), merged.PerToken[token].String(), "token %s split %v", token, split)
		}
		require.Equal(t, whole.ProductSubtotal.String(), merged.ProductSubtotal.String())
		require.Equal(t, whole.PlatformFeeSubtotal.String(), merged.PlatformFeeSubtotal.String())
	}
}
