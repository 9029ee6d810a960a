package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// EditionClaim mirrors the edition extension's getClaim tuple
type EditionClaim struct {
	Total           uint32
	TotalMax        uint32
	WalletMax       uint32
	StartDate       *big.Int
	EndDate         *big.Int
	StorageProtocol uint8
	MerkleRoot      [32]byte
	Location        string
	TokenId         *big.Int
	Cost            *big.Int
	PaymentReceiver common.Address
	Erc20           common.Address
}

// Edition is the fixed-edition lazy claim family
type Edition struct{}

func (Edition) Kind() Kind { return KindEdition }

func (Edition) SupportsAllowlist() bool { return true }

func (Edition) FallbackGas() uint64 { return FallbackGasMint }

func (Edition) ReadClaim(ctx context.Context, cc *ContractCaller, extension, creator common.Address, instanceID *big.Int) (*Claim, error) {
	out, err := cc.Call(ctx, extension, editionABI, "getClaim", creator, instanceID)
	if err != nil {
		return nil, err
	}
	raw, err := convertTuple[EditionClaim](out[0])
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
		WalletMax:       uint64(raw.WalletMax),
		StartDate:       toUint64(raw.StartDate),
		EndDate:         toUint64(raw.EndDate),
		MerkleRoot:      raw.MerkleRoot,
		Cost:            cost,
		ERC20:           raw.Erc20,
		PaymentReceiver: raw.PaymentReceiver,
	}, nil
}

func (Edition) ReadPlatformFee(ctx context.Context, cc *ContractCaller, extension common.Address, allowlisted bool) (*big.Int, error) {
	method := "MINT_FEE"
	if allowlisted {
		method = "MINT_FEE_MERKLE"
	}
	return cc.CallUint(ctx, extension, editionABI, method)
}

func (Edition) ReadWalletMints(ctx context.Context, cc *ContractCaller, extension, wallet, creator common.Address, instanceID *big.Int) (uint64, error) {
	minted, err := cc.CallUint(ctx, extension, editionABI, "getTotalMints", wallet, creator, instanceID)
	if err != nil {
		return 0, err
	}
	return toUint64(minted), nil
}

func (Edition) ReadMintedIndices(ctx context.Context, cc *ContractCaller, extension, creator common.Address, instanceID *big.Int, indices []uint32) ([]bool, error) {
	if len(indices) == 0 {
		return nil, nil
	}
	out, err := cc.Call(ctx, extension, editionABI, "checkMintIndices", creator, instanceID, indices)
	if err != nil {
		return nil, err
	}
	minted, ok := out[0].([]bool)
	if !ok || len(minted) != len(indices) {
		return nil, decodeFailure(extension, "checkMintIndices", fmt.Errorf("expected %d flags, got %v", len(indices), out[0]))
	}
	return minted, nil
}

func (Edition) EncodeMint(args MintArgs) ([]byte, error) {
	if args.Quantity > 0xffff {
		return nil, fmt.Errorf("edition mint count %d exceeds uint16", args.Quantity)
	}
	indices := args.Indices
	if indices == nil {
		indices = []uint32{}
	}
	proofs := args.Proofs
	if proofs == nil {
		proofs = [][][32]byte{}
	}
	data, err := editionABI.Pack("mintProxy",
		args.Creator,
		args.InstanceID,
		uint16(args.Quantity),
		indices,
		proofs,
		args.Recipient,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack mintProxy: %w", err)
	}
	return data, nil
}

// convertTuple converts an unpacked anonymous tuple struct into T
func convertTuple[T any](v interface{}) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected tuple layout: %v", r)
		}
	}()
	converted, ok := abi.ConvertType(v, new(T)).(*T)
	if !ok {
		return out, fmt.Errorf("unexpected tuple type %T", v)
	}
	return *converted, nil
}
