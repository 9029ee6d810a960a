package mintsdk

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kaifufi/mint-sdk-go/chain"
)

// StepBuilder turns a priced purchase into the ordered transactions a wallet must send
type StepBuilder struct {
	caller        *chain.ContractCaller
	family        chain.Family
	network       NetworkID
	bufferPercent uint64
	logger        *logrus.Entry
}

// NewStepBuilder creates a StepBuilder for one product family on one network
func NewStepBuilder(caller *chain.ContractCaller, family chain.Family, network NetworkID, bufferPercent uint64, logger *logrus.Entry) *StepBuilder {
	if bufferPercent == 0 {
		bufferPercent = DefaultGasBufferPercent
	}
	return &StepBuilder{
		caller:        caller,
		family:        family,
		network:       network,
		bufferPercent: bufferPercent,
		logger:        logger,
	}
}

// Build checks balances and allowances for every payment token and returns the
// approvals that are still needed followed by exactly one mint step.
func (b *StepBuilder) Build(ctx context.Context, ref ProductRef, wallet common.Address, cost *CostBreakdown, mint chain.MintArgs, gas GasBuffer) ([]*TransactionStep, error) {
	tokens := cost.Tokens()
	approvals := make([]*TransactionStep, len(tokens))

	g, gctx := errgroup.WithContext(ctx)
	for i, token := range tokens {
		amount := cost.PerToken[token]
		if token.IsNative() {
			g.Go(func() error {
				return b.checkNative(gctx, wallet, amount)
			})
			continue
		}
		g.Go(func() error {
			step, err := b.checkERC20(gctx, ref.ExtensionAddress, wallet, amount, gas)
			approvals[i] = step
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	steps := make([]*TransactionStep, 0, len(tokens)+1)
	for _, step := range approvals {
		if step != nil {
			steps = append(steps, step)
		}
	}

	mintStep, err := b.mintStep(ctx, ref, wallet, cost, mint, gas)
	if err != nil {
		return nil, err
	}
	return append(steps, mintStep), nil
}

func (b *StepBuilder) checkNative(ctx context.Context, wallet common.Address, amount Money) error {
	raw, err := b.caller.NativeBalance(ctx, wallet)
	if err != nil {
		return contractReadError("eth_getBalance", err)
	}
	return requireFunds(amount, raw)
}

func (b *StepBuilder) checkERC20(ctx context.Context, spender, wallet common.Address, amount Money, gas GasBuffer) (*TransactionStep, error) {
	token := amount.Token().Address()

	var balance, allowance *big.Int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if balance, err = b.caller.ERC20Balance(gctx, token, wallet); err != nil {
			return contractReadError("balanceOf", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if allowance, err = b.caller.ERC20Allowance(gctx, token, wallet, spender); err != nil {
			return contractReadError("allowance", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := requireFunds(amount, balance); err != nil {
		return nil, err
	}
	if allowance.Cmp(amount.Raw()) >= 0 {
		b.logger.WithFields(logrus.Fields{"token": amount.Symbol(), "wallet": wallet.Hex()}).Debug("allowance sufficient, skipping approval")
		return nil, nil
	}

	data, err := chain.EncodeApprove(spender, amount.Raw())
	if err != nil {
		return nil, err
	}
	req := chain.TxRequest{From: wallet, To: token, Data: data, Value: new(big.Int)}
	req.Gas = b.gasLimit(ctx, req, gas, chain.FallbackGasApprove, StepApprove)

	approved := amount
	return &TransactionStep{
		ID:          uuid.NewString(),
		Kind:        StepApprove,
		Description: fmt.Sprintf("Approve %s", amount),
		Cost:        &approved,
		NetworkID:   b.network,
		Request:     req,
	}, nil
}

func (b *StepBuilder) mintStep(ctx context.Context, ref ProductRef, wallet common.Address, cost *CostBreakdown, mint chain.MintArgs, gas GasBuffer) (*TransactionStep, error) {
	data, err := b.family.EncodeMint(mint)
	if err != nil {
		return nil, invalidParam("failed to encode mint: %v", err)
	}

	value := new(big.Int)
	var stepCost *Money
	if native, ok := cost.Total(NativeToken); ok {
		value = native.Raw()
		stepCost = &native
	}

	req := chain.TxRequest{From: wallet, To: ref.ExtensionAddress, Data: data, Value: value}
	req.Gas = b.gasLimit(ctx, req, gas, b.family.FallbackGas(), StepMint)

	return &TransactionStep{
		ID:          uuid.NewString(),
		Kind:        StepMint,
		Description: fmt.Sprintf("Mint %d from %s", mint.Quantity, ref),
		Cost:        stepCost,
		NetworkID:   b.network,
		Request:     req,
	}, nil
}

// gasLimit estimates gas for req and pads it, falling back to a per-kind constant
func (b *StepBuilder) gasLimit(ctx context.Context, req chain.TxRequest, gas GasBuffer, fallback uint64, kind StepKind) uint64 {
	estimate, err := b.caller.EstimateGas(ctx, req)
	if err != nil {
		b.logger.WithFields(logrus.Fields{"step": kind, "fallbackGas": fallback}).WithError(err).Warn("gas estimation failed, using fallback limit")
		return fallback
	}
	return applyGasBuffer(estimate, gas, b.bufferPercent)
}

func requireFunds(required Money, availableRaw *big.Int) error {
	available, err := NewMoney(availableRaw, required.Decimals(), required.Token(), required.Symbol())
	if err != nil {
		return err
	}
	cmp, err := available.Cmp(required)
	if err != nil {
		return err
	}
	if cmp < 0 {
		return &InsufficientFundsError{Token: required.Token(), Required: required, Available: available}
	}
	return nil
}
