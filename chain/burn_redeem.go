package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BurnRedeemRecord mirrors the leading fields of the getBurnRedeem tuple
type BurnRedeemRecord struct {
	PaymentReceiver common.Address
	StorageProtocol uint8
	RedeemedCount   uint32
	RedeemAmount    uint16
	TotalSupply     uint32
	ContractVersion uint8
	StartDate       *big.Int
	EndDate         *big.Int
	Cost            *big.Int
	Location        string
}

// BurnRedeem is the burn-to-redeem family. Supply counters on chain are kept in
// redeemed tokens; the claim view converts them to redemptions.
type BurnRedeem struct{}

func (BurnRedeem) Kind() Kind { return KindBurnRedeem }

func (BurnRedeem) SupportsAllowlist() bool { return false }

func (BurnRedeem) FallbackGas() uint64 { return FallbackGasBurnRedeem }

func (BurnRedeem) ReadClaim(ctx context.Context, cc *ContractCaller, extension, creator common.Address, instanceID *big.Int) (*Claim, error) {
	out, err := cc.Call(ctx, extension, burnRedeemABI, "getBurnRedeem", creator, instanceID)
	if err != nil {
		return nil, err
	}
	raw, err := convertTuple[BurnRedeemRecord](out[0])
	if err != nil {
		return nil, decodeFailure(extension, "getBurnRedeem", err)
	}

	per := uint64(raw.RedeemAmount)
	if per == 0 {
		per = 1
	}
	cost := raw.Cost
	if cost == nil {
		cost = new(big.Int)
	}
	return &Claim{
		TotalMinted:     uint64(raw.RedeemedCount) / per,
		TotalMax:        uint64(raw.TotalSupply) / per,
		StartDate:       toUint64(raw.StartDate),
		EndDate:         toUint64(raw.EndDate),
		Cost:            cost,
		PaymentReceiver: raw.PaymentReceiver,
	}, nil
}

func (BurnRedeem) ReadPlatformFee(ctx context.Context, cc *ContractCaller, extension common.Address, _ bool) (*big.Int, error) {
	return cc.CallUint(ctx, extension, burnRedeemABI, "BURN_FEE")
}

func (BurnRedeem) ReadWalletMints(context.Context, *ContractCaller, common.Address, common.Address, common.Address, *big.Int) (uint64, error) {
	return 0, ErrUnsupported
}

func (BurnRedeem) ReadMintedIndices(context.Context, *ContractCaller, common.Address, common.Address, *big.Int, []uint32) ([]bool, error) {
	return nil, ErrUnsupported
}

func (BurnRedeem) EncodeMint(args MintArgs) ([]byte, error) {
	if len(args.BurnTokens) == 0 {
		return nil, fmt.Errorf("burn redeem requires at least one burn token")
	}
	data, err := burnRedeemABI.Pack("burnRedeem",
		args.Creator,
		args.InstanceID,
		args.Quantity,
		args.BurnTokens,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack burnRedeem: %w", err)
	}
	return data, nil
}
