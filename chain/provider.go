package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"
)

const (
	ProviderPrimary  = "primary"
	ProviderFallback = "fallback"

	DefaultReadTimeout = 5 * time.Second
)

// ErrNoProvider is returned when neither a primary nor a fallback reader is configured
var ErrNoProvider = errors.New("no read provider configured")

// Reader is the read-only RPC surface used by the purchase pipeline.
// *ethclient.Client satisfies it.
type Reader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// ReadObserver is notified after every read attempt
type ReadObserver func(method, provider string, err error)

// FallbackReaderConfig holds configuration for a FallbackReader
type FallbackReaderConfig struct {
	Primary  Reader
	Fallback Reader
	// Timeout bounds each primary read before the fallback is tried
	Timeout time.Duration
	// FallbackRPS throttles the fallback provider, zero means unlimited
	FallbackRPS   float64
	FallbackBurst int
	Observer      ReadObserver
}

// FallbackReader issues reads against a primary provider with a short timeout and
// retries on a secondary read-only provider when the primary is slow, failing or absent.
type FallbackReader struct {
	primary  Reader
	fallback Reader
	timeout  time.Duration
	limiter  *rate.Limiter
	observe  ReadObserver
}

// NewFallbackReader creates a new FallbackReader
func NewFallbackReader(config FallbackReaderConfig) *FallbackReader {
	if config.Timeout == 0 {
		config.Timeout = DefaultReadTimeout
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.FallbackRPS > 0 {
		burst := config.FallbackBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.FallbackRPS), burst)
	}
	return &FallbackReader{
		primary:  config.Primary,
		fallback: config.Fallback,
		timeout:  config.Timeout,
		limiter:  limiter,
		observe:  config.Observer,
	}
}

// CallContract executes a read-only contract call
func (f *FallbackReader) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var out []byte
	err := f.do(ctx, "eth_call", func(ctx context.Context, r Reader) error {
		var err error
		out, err = r.CallContract(ctx, msg, blockNumber)
		return err
	})
	return out, err
}

// BalanceAt returns the native balance of account
func (f *FallbackReader) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	var out *big.Int
	err := f.do(ctx, "eth_getBalance", func(ctx context.Context, r Reader) error {
		var err error
		out, err = r.BalanceAt(ctx, account, blockNumber)
		return err
	})
	return out, err
}

// EstimateGas estimates the gas needed to execute msg
func (f *FallbackReader) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var out uint64
	err := f.do(ctx, "eth_estimateGas", func(ctx context.Context, r Reader) error {
		var err error
		out, err = r.EstimateGas(ctx, msg)
		return err
	})
	return out, err
}

func (f *FallbackReader) do(ctx context.Context, method string, call func(context.Context, Reader) error) error {
	if f.primary == nil && f.fallback == nil {
		return ErrNoProvider
	}

	var primaryErr error
	if f.primary != nil {
		timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
		primaryErr = call(timeoutCtx, f.primary)
		cancel()
		f.notify(method, ProviderPrimary, primaryErr)
		if primaryErr == nil {
			return nil
		}
		if f.fallback == nil || ctx.Err() != nil {
			return primaryErr
		}
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("fallback throttled: %w", err)
	}
	err := call(ctx, f.fallback)
	f.notify(method, ProviderFallback, err)
	if err != nil && primaryErr != nil {
		return fmt.Errorf("%w (primary: %v)", err, primaryErr)
	}
	return err
}

func (f *FallbackReader) notify(method, provider string, err error) {
	if f.observe != nil {
		f.observe(method, provider, err)
	}
}
