package mintsdk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kaifufi/mint-sdk-go/chain"
)

func TestClaimStateCaching(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	state, err := f.client.GetClaimState(ctx, f.ref(), false)
	require.NoError(t, err)
	require.Equal(t, uint64(10), state.TotalMinted)
	require.Equal(t, uint64(100), state.TotalMax)
	require.Equal(t, "0.05 ETH", state.UnitCost.String())
	require.Equal(t, "0.00069 ETH", state.PlatformFeePerUnit.String())
	require.Nil(t, state.AllowlistRoot)
	require.Equal(t, f.now, state.FetchedAt)
	require.Equal(t, f.now.Add(-time.Hour).Unix(), state.StartDate.Unix())
	require.Equal(t, 1, f.backend.Calls("getClaim"))

	f.update(func(c *chain.EditionClaim) { c.Total = 20 })

	cached, err := f.client.GetClaimState(ctx, f.ref(), false)
	require.NoError(t, err)
	require.Equal(t, uint64(10), cached.TotalMinted)
	require.Equal(t, 1, f.backend.Calls("getClaim"))

	fresh, err := f.client.GetClaimState(ctx, f.ref(), true)
	require.NoError(t, err)
	require.Equal(t, uint64(20), fresh.TotalMinted)
	require.Equal(t, 2, f.backend.Calls("getClaim"))
}

func TestClaimStateFailedRefreshKeepsCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.client.GetClaimState(ctx, f.ref(), true)
	require.NoError(t, err)

	rpcErr := errors.New("header not found")
	f.backend.Fail(extensionAddr, chain.GetEditionABI(), "getClaim", rpcErr)

	_, err = f.client.GetClaimState(ctx, f.ref(), true)
	var readErr *ContractReadError
	require.ErrorAs(t, err, &readErr)
	require.Equal(t, "getClaim", readErr.Method)
	require.ErrorIs(t, err, rpcErr)
	require.ErrorIs(t, err, ErrContractRead)

	state, err := f.client.GetClaimState(ctx, f.ref(), false)
	require.NoError(t, err)
	require.Equal(t, uint64(10), state.TotalMinted)
}

func TestClaimStateFeeFailureNamesMethod(t *testing.T) {
	f := newFixture(t)
	f.backend.Fail(extensionAddr, chain.GetEditionABI(), "MINT_FEE", errors.New("timeout"))

	_, err := f.client.GetClaimState(context.Background(), f.ref(), true)
	var readErr *ContractReadError
	require.ErrorAs(t, err, &readErr)
	require.Equal(t, "MINT_FEE", readErr.Method)

	_, ok := f.client.claims.Cached(f.ref())
	require.False(t, ok)
}

func TestClaimStateERC20Pricing(t *testing.T) {
	f := newFixture(t)
	f.payInUSDC(100_000_000)

	state, err := f.client.GetClaimState(context.Background(), f.ref(), true)
	require.NoError(t, err)
	require.Equal(t, ERC20Token(usdcAddr), state.UnitCost.Token())
	require.Equal(t, uint8(6), state.UnitCost.Decimals())
	require.Equal(t, "100 USDC", state.UnitCost.String())
	require.Equal(t, NativeToken, state.PlatformFeePerUnit.Token())
}

func TestClaimStateUnknownNetwork(t *testing.T) {
	f := newFixture(t)
	ref := f.ref()
	ref.NetworkID = 999

	_, err := f.client.GetClaimState(context.Background(), ref, true)
	require.ErrorIs(t, err, ErrInvalidParam)
}
