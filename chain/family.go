package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrUnsupported is returned when a family has no contract method for a read
var ErrUnsupported = errors.New("operation not supported by product family")

// Fallback gas limits used when estimation fails
const (
	FallbackGasApprove    uint64 = 100000
	FallbackGasMint       uint64 = 300000
	FallbackGasBurnRedeem uint64 = 500000
)

// Family is the per-product-family strategy: claim decoding, fee reads,
// mint calldata encoding and allowlist support.
type Family interface {
	Kind() Kind
	ReadClaim(ctx context.Context, cc *ContractCaller, extension, creator common.Address, instanceID *big.Int) (*Claim, error)
	ReadPlatformFee(ctx context.Context, cc *ContractCaller, extension common.Address, allowlisted bool) (*big.Int, error)
	ReadWalletMints(ctx context.Context, cc *ContractCaller, extension, wallet, creator common.Address, instanceID *big.Int) (uint64, error)
	ReadMintedIndices(ctx context.Context, cc *ContractCaller, extension, creator common.Address, instanceID *big.Int, indices []uint32) ([]bool, error)
	EncodeMint(args MintArgs) ([]byte, error)
	SupportsAllowlist() bool
	FallbackGas() uint64
}

// FamilyFor returns the strategy for kind
func FamilyFor(kind Kind) (Family, error) {
	switch kind {
	case KindEdition:
		return Edition{}, nil
	case KindBurnRedeem:
		return BurnRedeem{}, nil
	case KindBlindMint:
		return BlindMint{}, nil
	default:
		return nil, fmt.Errorf("unknown product family %q", kind)
	}
}

func decodeFailure(contract common.Address, method string, err error) error {
	return &CallError{Contract: contract, Method: method, Err: fmt.Errorf("decode: %w", err)}
}
