package chain_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/kaifufi/mint-sdk-go/chain"
	"github.com/kaifufi/mint-sdk-go/chain/chaintest"
)

var (
	extension = common.HexToAddress("0x26BBEA7803DcAc346D5F5f135b57Cf2c752A02bE")
	creator   = common.HexToAddress("0x5B3C2f8e7C0f8E1A6aB2cF0E3d3D4d8A8a1A2b3C")
	wallet    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	usdc      = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
)

func TestEditionReadClaim(t *testing.T) {
	backend := chaintest.NewBackend()
	root := [32]byte{0xaa}
	backend.Return(extension, chain.GetEditionABI(), "getClaim", chain.EditionClaim{
		Total:           40,
		TotalMax:        100,
		WalletMax:       5,
		StartDate:       big.NewInt(1700000000),
		EndDate:         big.NewInt(1800000000),
		MerkleRoot:      root,
		Location:        "ar://claim",
		TokenId:         big.NewInt(7),
		Cost:            big.NewInt(5_000_000),
		PaymentReceiver: creator,
		Erc20:           usdc,
	})

	cc := chain.NewContractCaller(backend)
	claim, err := chain.Edition{}.ReadClaim(context.Background(), cc, extension, creator, big.NewInt(42))
	require.NoError(t, err)
	require.Equal(t, uint64(40), claim.TotalMinted)
	require.Equal(t, uint64(100), claim.TotalMax)
	require.Equal(t, uint64(5), claim.WalletMax)
	require.Equal(t, uint64(1700000000), claim.StartDate)
	require.Equal(t, uint64(1800000000), claim.EndDate)
	require.True(t, claim.HasAllowlist())
	require.True(t, claim.PaysInERC20())
	require.Equal(t, usdc, claim.ERC20)
	require.Equal(t, 0, claim.Cost.Cmp(big.NewInt(5_000_000)))
}

func TestEditionPlatformFeeDependsOnAllowlist(t *testing.T) {
	backend := chaintest.NewBackend()
	backend.Return(extension, chain.GetEditionABI(), "MINT_FEE", big.NewInt(500_000_000_000_000))
	backend.Return(extension, chain.GetEditionABI(), "MINT_FEE_MERKLE", big.NewInt(690_000_000_000_000))
	cc := chain.NewContractCaller(backend)

	fee, err := chain.Edition{}.ReadPlatformFee(context.Background(), cc, extension, false)
	require.NoError(t, err)
	require.Equal(t, "500000000000000", fee.String())

	fee, err = chain.Edition{}.ReadPlatformFee(context.Background(), cc, extension, true)
	require.NoError(t, err)
	require.Equal(t, "690000000000000", fee.String())
}

func TestEditionReadMintedIndices(t *testing.T) {
	backend := chaintest.NewBackend()
	backend.Handle(extension, chain.GetEditionABI(), "checkMintIndices", func(args []interface{}) ([]interface{}, error) {
		indices := args[2].([]uint32)
		minted := make([]bool, len(indices))
		for i, idx := range indices {
			minted[i] = idx%2 == 0
		}
		return []interface{}{minted}, nil
	})
	cc := chain.NewContractCaller(backend)

	minted, err := chain.Edition{}.ReadMintedIndices(context.Background(), cc, extension, creator, big.NewInt(1), []uint32{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, []bool{false, true, false}, minted)
}

func TestEditionEncodeMint(t *testing.T) {
	data, err := chain.Edition{}.EncodeMint(chain.MintArgs{
		Creator:    creator,
		InstanceID: big.NewInt(42),
		Quantity:   2,
		Recipient:  wallet,
		Indices:    []uint32{3, 9},
		Proofs:     [][][32]byte{{{0x01}}, {{0x02}, {0x03}}},
	})
	require.NoError(t, err)

	method := chain.GetEditionABI().Methods["mintProxy"]
	require.Equal(t, method.ID, data[:4])
	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Equal(t, creator, args[0])
	require.Equal(t, uint16(2), args[2])
	require.Equal(t, []uint32{3, 9}, args[3])
	require.Equal(t, wallet, args[5])
}

func TestEditionEncodeMintRejectsLargeCount(t *testing.T) {
	_, err := chain.Edition{}.EncodeMint(chain.MintArgs{Creator: creator, InstanceID: big.NewInt(1), Quantity: 70000})
	require.Error(t, err)
}

func TestBurnRedeemReadClaimNormalizesRedeemAmount(t *testing.T) {
	backend := chaintest.NewBackend()
	backend.Return(extension, chain.GetBurnRedeemABI(), "getBurnRedeem", chain.BurnRedeemRecord{
		PaymentReceiver: creator,
		RedeemedCount:   6,
		RedeemAmount:    2,
		TotalSupply:     20,
		ContractVersion: 3,
		StartDate:       big.NewInt(0),
		EndDate:         big.NewInt(0),
		Cost:            big.NewInt(1000),
		Location:        "ar://redeem",
	})
	cc := chain.NewContractCaller(backend)

	claim, err := chain.BurnRedeem{}.ReadClaim(context.Background(), cc, extension, creator, big.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, uint64(3), claim.TotalMinted)
	require.Equal(t, uint64(10), claim.TotalMax)
	require.Zero(t, claim.WalletMax)
	require.False(t, claim.HasAllowlist())

	_, err = chain.BurnRedeem{}.ReadWalletMints(context.Background(), cc, extension, wallet, creator, big.NewInt(1))
	require.ErrorIs(t, err, chain.ErrUnsupported)
}

func TestBurnRedeemEncodeMintRequiresTokens(t *testing.T) {
	_, err := chain.BurnRedeem{}.EncodeMint(chain.MintArgs{Creator: creator, InstanceID: big.NewInt(1), Quantity: 1})
	require.Error(t, err)

	data, err := chain.BurnRedeem{}.EncodeMint(chain.MintArgs{
		Creator:    creator,
		InstanceID: big.NewInt(1),
		Quantity:   1,
		BurnTokens: []chain.BurnToken{{
			GroupIndex:      big.NewInt(0),
			ItemIndex:       big.NewInt(0),
			ContractAddress: usdc,
			Id:              big.NewInt(12),
			MerkleProof:     [][32]byte{},
		}},
	})
	require.NoError(t, err)
	require.Equal(t, chain.GetBurnRedeemABI().Methods["burnRedeem"].ID, data[:4])
}

func TestBlindMintReadsUserMints(t *testing.T) {
	backend := chaintest.NewBackend()
	backend.Return(extension, chain.GetBlindMintABI(), "getUserMints", chain.UserMint{ReservedCount: 4, DeliveredCount: 1})
	cc := chain.NewContractCaller(backend)

	minted, err := chain.BlindMint{}.ReadWalletMints(context.Background(), cc, extension, wallet, creator, big.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, uint64(4), minted)
}

func TestReadClaimSurfacesCallError(t *testing.T) {
	backend := chaintest.NewBackend()
	rpcErr := errors.New("execution reverted")
	backend.Fail(extension, chain.GetBlindMintABI(), "getClaim", rpcErr)
	cc := chain.NewContractCaller(backend)

	_, err := chain.BlindMint{}.ReadClaim(context.Background(), cc, extension, creator, big.NewInt(1))
	var callErr *chain.CallError
	require.ErrorAs(t, err, &callErr)
	require.Equal(t, "getClaim", callErr.Method)
	require.ErrorIs(t, err, rpcErr)
}

func TestFamilyFor(t *testing.T) {
	for _, kind := range []chain.Kind{chain.KindEdition, chain.KindBurnRedeem, chain.KindBlindMint} {
		family, err := chain.FamilyFor(kind)
		require.NoError(t, err)
		require.Equal(t, kind, family.Kind())
	}
	_, err := chain.FamilyFor("raffle")
	require.Error(t, err)
}
