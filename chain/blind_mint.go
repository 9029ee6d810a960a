package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BlindMintClaim mirrors the blind mint extension's getClaim tuple
type BlindMintClaim struct {
	StorageProtocol uint8
	Total           uint32
	TotalMax        uint32
	StartDate       *big.Int
	EndDate         *big.Int
	StartingTokenId *big.Int
	TokenVariations uint8
	Location        string
	PaymentReceiver common.Address
	Cost            *big.Int
	Erc20           common.Address
}

// UserMint mirrors the getUserMints tuple
type UserMint struct {
	ReservedCount  uint32
	DeliveredCount uint32
}

// BlindMint is the randomized pool family: mints reserve a slot that is
// revealed later.
type BlindMint struct{}

func (BlindMint) Kind() Kind { return KindBlindMint }

func (BlindMint) SupportsAllowlist() bool { return false }

func (BlindMint) FallbackGas() uint64 { return FallbackGasMint }

func (BlindMint) ReadClaim(ctx context.Context, cc *ContractCaller, extension, creator common.Address, instanceID *big.Int) (*Claim, error) {
	out, err := cc.Call(ctx, extension, blindMintABI, "getClaim", creator, instanceID)
	if err != nil {
		return nil, err
	}
	raw, err := convertTuple[BlindMintClaim](out[0])
	if err != nil {
		return nil, decodeFailure(extension, "getClaim", err)
	}

	cost := raw.Cost
	if cost == nil {
		cost = new(big.Int)
	}
	return &Claim{
		TotalMinted:     uint64(raw.Total),
		TotalMax:        uint64(raw.TotalMax),
		StartDate:       toUint64(raw.StartDate),
		EndDate:         toUint64(raw.EndDate),
		Cost:            cost,
		ERC20:           raw.Erc20,
		PaymentReceiver: raw.PaymentReceiver,
	}, nil
}

func (BlindMint) ReadPlatformFee(ctx context.Context, cc *ContractCaller, extension common.Address, _ bool) (*big.Int, error) {
	return cc.CallUint(ctx, extension, blindMintABI, "MINT_FEE")
}

func (BlindMint) ReadWalletMints(ctx context.Context, cc *ContractCaller, extension, wallet, creator common.Address, instanceID *big.Int) (uint64, error) {
	out, err := cc.Call(ctx, extension, blindMintABI, "getUserMints", wallet, creator, instanceID)
	if err != nil {
		return 0, err
	}
	mints, err := convertTuple[UserMint](out[0])
	if err != nil {
		return 0, decodeFailure(extension, "getUserMints", err)
	}
	return uint64(mints.ReservedCount), nil
}

func (BlindMint) ReadMintedIndices(context.Context, *ContractCaller, common.Address, common.Address, *big.Int, []uint32) ([]bool, error) {
	return nil, ErrUnsupported
}

func (BlindMint) EncodeMint(args MintArgs) ([]byte, error) {
	data, err := blindMintABI.Pack("mintReserve", args.Creator, args.InstanceID, args.Quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to pack mintReserve: %w", err)
	}
	return data, nil
}
