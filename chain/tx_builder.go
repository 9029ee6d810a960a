package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// TxBackend is the RPC surface needed to price and sign a transaction
type TxBackend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// TxBuilder builds and signs EIP-1559 transactions for one chain
type TxBuilder struct {
	chainID *big.Int
	signer  *ecdsa.PrivateKey
}

// NewTxBuilder creates a new TxBuilder
func NewTxBuilder(chainID int64, signer *ecdsa.PrivateKey) (*TxBuilder, error) {
	if signer == nil {
		return nil, fmt.Errorf("signer key is required")
	}
	if chainID <= 0 {
		return nil, fmt.Errorf("invalid chain id %d", chainID)
	}
	return &TxBuilder{
		chainID: big.NewInt(chainID),
		signer:  signer,
	}, nil
}

// Address returns the address of the signer
func (tb *TxBuilder) Address() common.Address {
	return crypto.PubkeyToAddress(tb.signer.PublicKey)
}

// BuildTx prices req with the backend's nonce and fee suggestions
func (tb *TxBuilder) BuildTx(ctx context.Context, backend TxBackend, req TxRequest) (*types.Transaction, error) {
	if err := tb.validateInputs(req); err != nil {
		return nil, err
	}

	nonce, err := backend.PendingNonceAt(ctx, tb.Address())
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	tipCap, err := backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas tip cap: %w", err)
	}

	head, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest header: %w", err)
	}

	// feeCap = 2 * baseFee + tip
	feeCap := new(big.Int).Set(tipCap)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	to := req.To

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   tb.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       req.Gas,
		To:        &to,
		Value:     value,
		Data:      req.Data,
	}), nil
}

// SignTx signs tx with the builder's key
func (tb *TxBuilder) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(tb.chainID), tb.signer)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}

// BuildSignedTx builds and signs a transaction
func (tb *TxBuilder) BuildSignedTx(ctx context.Context, backend TxBackend, req TxRequest) (*types.Transaction, error) {
	tx, err := tb.BuildTx(ctx, backend, req)
	if err != nil {
		return nil, err
	}
	return tb.SignTx(tx)
}

func (tb *TxBuilder) validateInputs(req TxRequest) error {
	if req.To == (common.Address{}) {
		return fmt.Errorf("to is required")
	}
	if req.Gas == 0 {
		return fmt.Errorf("gas limit is required")
	}
	if req.Value != nil && req.Value.Sign() < 0 {
		return fmt.Errorf("value must not be negative")
	}
	return nil
}
