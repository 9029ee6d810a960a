package mintsdk

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Executor runs the steps of a prepared purchase one at a time against an account
type Executor struct {
	confirmations uint64
	clock         func() time.Time
	logger        *logrus.Entry
	metrics       *Metrics
	tracer        trace.Tracer
}

// Execution is one run of a prepared purchase. Its events can be consumed once.
type Execution struct {
	executor *Executor
	ctx      context.Context
	prepared *PreparedPurchase
	account  Account
	onDone   func(*Order)

	started atomic.Bool
	order   *Order
	err     error
}

// Run starts an execution. Nothing is sent until Events is ranged over.
func (e *Executor) Run(ctx context.Context, prepared *PreparedPurchase, account Account) *Execution {
	return &Execution{
		executor: e,
		ctx:      ctx,
		prepared: prepared,
		account:  account,
		order: &Order{
			ID:         uuid.NewString(),
			PurchaseID: prepared.ID,
			Request:    prepared.Request,
			Buyer:      account.Address(),
			TotalCost:  prepared.Cost,
			CreatedAt:  e.clock(),
		},
	}
}

// Execute runs every step and returns the resulting order. The order is returned even on failure.
func (e *Executor) Execute(ctx context.Context, prepared *PreparedPurchase, account Account) (*Order, error) {
	x := e.Run(ctx, prepared, account)
	for range x.Events() {
	}
	return x.Result()
}

// Events yields step lifecycle events while sending the steps. Breaking out of the
// loop stops the execution before the next step; a step already broadcast is still
// awaited and its receipt recorded.
func (x *Execution) Events() iter.Seq[StepEvent] {
	return func(yield func(StepEvent) bool) {
		if !x.started.CompareAndSwap(false, true) {
			return
		}
		stopped := false
		x.run(func(event StepEvent) bool {
			if stopped {
				return false
			}
			if !yield(event) {
				stopped = true
			}
			return !stopped
		})
		x.finish()
	}
}

// Result returns the order once Events has been drained
func (x *Execution) Result() (*Order, error) {
	if !x.started.Load() {
		return nil, errors.New("execution has not run")
	}
	return x.order, x.err
}

func (x *Execution) run(yield func(StepEvent) bool) {
	steps := x.prepared.Steps
	for i, step := range steps {
		event := StepEvent{StepID: step.ID, Kind: step.Kind, Index: i, Total: len(steps)}

		if err := x.ctx.Err(); err != nil {
			x.fail(step, err)
			return
		}

		event.Type = EventStarted
		if !yield(event) {
			x.fail(step, ErrExecutionAborted)
			return
		}

		stopped := false
		receipt, err := x.executeStep(step, func(hash common.Hash) {
			x.order.Pending = &PendingTx{StepID: step.ID, Kind: step.Kind, NetworkID: step.NetworkID, TxHash: hash}
			confirming := event
			confirming.Type = EventConfirming
			confirming.TxHash = hash
			stopped = !yield(confirming)
		})
		if receipt != nil {
			x.order.Pending = nil
		}
		if err != nil {
			x.fail(step, err)
			failed := event
			failed.Type = EventFailed
			failed.Err = x.err
			switch {
			case receipt != nil:
				failed.TxHash = receipt.TxHash
			case x.order.Pending != nil:
				failed.TxHash = x.order.Pending.TxHash
			}
			yield(failed)
			return
		}

		x.order.Receipts = append(x.order.Receipts, *receipt)
		if !stopped {
			completed := event
			completed.Type = EventCompleted
			completed.TxHash = receipt.TxHash
			completed.Receipt = receipt
			stopped = !yield(completed)
		}
		if stopped {
			if i < len(steps)-1 {
				x.fail(steps[i+1], ErrExecutionAborted)
			}
			return
		}
	}
}

// executeStep moves the account to the step's network, submits it and waits for confirmation.
// sent is called once the transaction is broadcast; the step is always awaited after that.
func (x *Execution) executeStep(step *TransactionStep, sent func(common.Hash)) (*TransactionReceipt, error) {
	e := x.executor
	ctx, span := e.tracer.Start(x.ctx, "mintsdk.ExecuteStep", trace.WithAttributes(
		attribute.String("step.id", step.ID),
		attribute.String("step.kind", string(step.Kind)),
		attribute.Int64("network", int64(step.NetworkID)),
	))
	defer span.End()

	log := e.logger.WithFields(logrus.Fields{"step": step.ID, "kind": step.Kind, "network": step.NetworkID})
	start := time.Now()

	receipt, err := step.execute(ctx, x.account, e.confirmations, sent)
	e.metrics.observeStep(step.Kind, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.WithError(err).Warn("step failed")
		return receipt, err
	}

	span.SetAttributes(attribute.String("tx.hash", receipt.TxHash.Hex()))
	log.WithField("tx", receipt.TxHash.Hex()).Info("step confirmed")
	return receipt, nil
}

func (x *Execution) fail(step *TransactionStep, err error) {
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		err = &StepError{StepID: step.ID, Kind: step.Kind, Err: err}
	}
	x.order.FailedStep = step.ID
	x.err = err
}

func (x *Execution) finish() {
	order := x.order
	switch {
	case x.err == nil:
		order.Status = OrderCompleted
	case len(order.Receipts) > 0:
		order.Status = OrderPartial
	default:
		order.Status = OrderFailed
	}
	order.Err = x.err

	if order.Status != OrderCompleted {
		x.executor.logger.WithFields(logrus.Fields{
			"order":    order.ID,
			"status":   order.Status,
			"receipts": len(order.Receipts),
		}).WithError(x.err).Warn("order did not complete")
	}
	if x.onDone != nil {
		x.onDone(order)
	}
}

// Execute submits the step through account and waits for confirmations.
// A mined transaction with failed status returns ErrTransactionReverted along with its receipt.
func (s *TransactionStep) Execute(ctx context.Context, account Account, confirmations uint64) (*TransactionReceipt, error) {
	return s.execute(ctx, account, confirmations, nil)
}

func (s *TransactionStep) execute(ctx context.Context, account Account, confirmations uint64, sent func(common.Hash)) (*TransactionReceipt, error) {
	if err := ensureNetwork(ctx, account, s.NetworkID); err != nil {
		return nil, err
	}

	hash, err := account.SendTransaction(ctx, s.Request)
	if err != nil {
		return nil, err
	}
	if sent != nil {
		sent(hash)
	}

	raw, err := account.WaitForReceipt(ctx, hash, confirmations)
	if err != nil {
		return nil, err
	}
	receipt := s.receipt(raw)
	if raw.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s", ErrTransactionReverted, raw.TxHash.Hex())
	}
	return receipt, nil
}

func (s *TransactionStep) receipt(raw *types.Receipt) *TransactionReceipt {
	return newReceipt(s.NetworkID, s.ID, s.Kind, raw)
}

func newReceipt(network NetworkID, stepID string, kind StepKind, raw *types.Receipt) *TransactionReceipt {
	r := &TransactionReceipt{
		NetworkID: network,
		StepID:    stepID,
		Kind:      kind,
		TxHash:    raw.TxHash,
		GasUsed:   raw.GasUsed,
		Status:    raw.Status,
	}
	if raw.BlockNumber != nil {
		r.BlockNumber = raw.BlockNumber.Uint64()
	}
	return r
}

func ensureNetwork(ctx context.Context, account Account, want NetworkID) error {
	got, err := account.ConnectedNetwork(ctx)
	if err != nil {
		return fmt.Errorf("failed to read connected network: %w", err)
	}
	if got == want {
		return nil
	}
	if err := account.SwitchNetwork(ctx, want); err != nil {
		var mismatch *NetworkMismatchError
		if errors.As(err, &mismatch) {
			return err
		}
		return fmt.Errorf("%w: switch to %d failed: %v", ErrWrongNetwork, want, err)
	}
	if got, err = account.ConnectedNetwork(ctx); err != nil {
		return fmt.Errorf("failed to read connected network: %w", err)
	}
	if got != want {
		return &NetworkMismatchError{Want: want, Got: got}
	}
	return nil
}
