package mintsdk

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"github.com/kaifufi/mint-sdk-go/chain"
)

const (
	DefaultReceiptPollInterval = 2 * time.Second
	DefaultReceiptTimeout      = 120 * time.Second
)

// Account is the wallet that signs and submits purchase transactions
type Account interface {
	Address() common.Address
	ConnectedNetwork(ctx context.Context) (NetworkID, error)
	SwitchNetwork(ctx context.Context, id NetworkID) error
	Balance(ctx context.Context, token TokenID) (Money, error)
	SendTransaction(ctx context.Context, req chain.TxRequest) (common.Hash, error)
	WaitForReceipt(ctx context.Context, hash common.Hash, confirmations uint64) (*types.Receipt, error)
}

// EthBackend is the RPC surface an EOAAccount needs on each network.
// *ethclient.Client satisfies it.
type EthBackend interface {
	chain.TxBackend
	chain.Reader
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// EOAConfig holds configuration for an EOAAccount
type EOAConfig struct {
	Backends map[NetworkID]EthBackend
	Heads    map[NetworkID]*HeadWatcher
	// Networks supplies native currency symbols; ETH when absent
	Networks       map[NetworkID]Network
	Network        NetworkID
	PollInterval   time.Duration
	ReceiptTimeout time.Duration
	Logger         *logrus.Entry
}

// EOAAccount signs transactions locally with a private key
type EOAAccount struct {
	key            *ecdsa.PrivateKey
	backends       map[NetworkID]EthBackend
	heads          map[NetworkID]*HeadWatcher
	callers        map[NetworkID]*chain.ContractCaller
	symbols        map[NetworkID]string
	builders       map[NetworkID]*chain.TxBuilder
	pollInterval   time.Duration
	receiptTimeout time.Duration
	logger         *logrus.Entry

	mu      sync.RWMutex
	network NetworkID
}

// NewEOAAccount creates an account from a private key and per-network backends
func NewEOAAccount(key *ecdsa.PrivateKey, config EOAConfig) (*EOAAccount, error) {
	if key == nil {
		return nil, invalidParam("private key is required")
	}
	if len(config.Backends) == 0 {
		return nil, invalidParam("at least one network backend is required")
	}
	if config.PollInterval == 0 {
		config.PollInterval = DefaultReceiptPollInterval
	}
	if config.ReceiptTimeout == 0 {
		config.ReceiptTimeout = DefaultReceiptTimeout
	}
	if config.Logger == nil {
		config.Logger = logrus.NewEntry(logrus.StandardLogger())
	}

	builders := make(map[NetworkID]*chain.TxBuilder, len(config.Backends))
	callers := make(map[NetworkID]*chain.ContractCaller, len(config.Backends))
	symbols := make(map[NetworkID]string, len(config.Backends))
	for id, backend := range config.Backends {
		builder, err := chain.NewTxBuilder(int64(id), key)
		if err != nil {
			return nil, err
		}
		builders[id] = builder
		callers[id] = chain.NewContractCaller(backend)
		symbols[id] = "ETH"
		if n, ok := config.Networks[id]; ok && n.NativeSymbol != "" {
			symbols[id] = n.NativeSymbol
		}
	}

	network := config.Network
	if _, ok := config.Backends[network]; !ok {
		network = lowestNetwork(config.Backends)
	}

	return &EOAAccount{
		key:            key,
		backends:       config.Backends,
		heads:          config.Heads,
		callers:        callers,
		symbols:        symbols,
		builders:       builders,
		pollInterval:   config.PollInterval,
		receiptTimeout: config.ReceiptTimeout,
		logger:         config.Logger.WithField("component", "account"),
		network:        network,
	}, nil
}

// DialEOAAccount connects to every network's RPC (and websocket, when configured) and
// returns an account signing with hexKey
func DialEOAAccount(ctx context.Context, hexKey string, networks map[NetworkID]Network, receiptTimeout time.Duration, logger *logrus.Entry) (*EOAAccount, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, invalidParam("invalid private key: %v", err)
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	backends := make(map[NetworkID]EthBackend, len(networks))
	heads := make(map[NetworkID]*HeadWatcher)
	for id, network := range networks {
		url := network.RPCURL
		if url == "" {
			url = network.FallbackRPCURL
		}
		if url == "" {
			continue
		}
		client, err := ethclient.DialContext(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s RPC: %w", network.Name, err)
		}
		backends[id] = client

		if network.WSURL != "" {
			hw := NewHeadWatcher(HeadWatcherConfig{Endpoint: network.WSURL, Logger: logger.WithField("network", network.Name)})
			if err := hw.Connect(ctx); err != nil {
				logger.WithError(err).WithField("network", network.Name).Warn("head subscription unavailable, polling for confirmations")
				continue
			}
			heads[id] = hw
		}
	}

	return NewEOAAccount(key, EOAConfig{
		Backends:       backends,
		Heads:          heads,
		Networks:       networks,
		ReceiptTimeout: receiptTimeout,
		Logger:         logger,
	})
}

// Address returns the signer address
func (a *EOAAccount) Address() common.Address {
	return crypto.PubkeyToAddress(a.key.PublicKey)
}

// ConnectedNetwork returns the network transactions are currently sent to
func (a *EOAAccount) ConnectedNetwork(context.Context) (NetworkID, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.network, nil
}

// SwitchNetwork selects the network for subsequent transactions
func (a *EOAAccount) SwitchNetwork(_ context.Context, id NetworkID) error {
	if _, ok := a.backends[id]; !ok {
		return &NetworkMismatchError{Want: id, Got: a.current()}
	}
	a.mu.Lock()
	a.network = id
	a.mu.Unlock()
	a.logger.WithField("network", id).Info("switched network")
	return nil
}

// Balance returns the account balance of token on the connected network
func (a *EOAAccount) Balance(ctx context.Context, token TokenID) (Money, error) {
	id := a.current()
	caller, ok := a.callers[id]
	if !ok {
		return Money{}, fmt.Errorf("no backend for network %d", id)
	}
	if token.IsNative() {
		raw, err := caller.NativeBalance(ctx, a.Address())
		if err != nil {
			return Money{}, contractReadError("eth_getBalance", err)
		}
		return NewMoney(raw, nativeDecimals, NativeToken, a.symbols[id])
	}

	info, err := caller.TokenInfo(ctx, token.Address())
	if err != nil {
		return Money{}, contractReadError("decimals", err)
	}
	raw, err := caller.ERC20Balance(ctx, token.Address(), a.Address())
	if err != nil {
		return Money{}, contractReadError("balanceOf", err)
	}
	return NewMoney(raw, info.Decimals, token, info.Symbol)
}

// SendTransaction signs req with EIP-1559 pricing and broadcasts it
func (a *EOAAccount) SendTransaction(ctx context.Context, req chain.TxRequest) (common.Hash, error) {
	id := a.current()
	backend, err := a.backend()
	if err != nil {
		return common.Hash{}, err
	}
	if req.From != (common.Address{}) && req.From != a.Address() {
		return common.Hash{}, invalidParam("transaction from %s cannot be signed by %s", req.From.Hex(), a.Address().Hex())
	}

	tx, err := a.builders[id].BuildSignedTx(ctx, backend, req)
	if err != nil {
		return common.Hash{}, err
	}
	if err := backend.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	a.logger.WithFields(logrus.Fields{"network": id, "tx": tx.Hash().Hex(), "nonce": tx.Nonce()}).Info("transaction sent")
	return tx.Hash(), nil
}

// WaitForReceipt polls for the receipt of hash and then waits until it has the requested
// number of confirmations
func (a *EOAAccount) WaitForReceipt(ctx context.Context, hash common.Hash, confirmations uint64) (*types.Receipt, error) {
	id := a.current()
	backend, err := a.backend()
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, a.receiptTimeout)
	defer cancel()

	var receipt *types.Receipt
	for {
		receipt, err = backend.TransactionReceipt(timeoutCtx, hash)
		if err == nil {
			break
		}
		if !errors.Is(err, ethereum.NotFound) {
			a.logger.WithError(err).WithField("tx", hash.Hex()).Debug("receipt lookup failed, retrying")
		}

		select {
		case <-timeoutCtx.Done():
			return nil, fmt.Errorf("timeout waiting for transaction receipt: %s", hash.Hex())
		case <-time.After(a.pollInterval):
		}
	}

	if confirmations <= 1 || receipt.BlockNumber == nil {
		return receipt, nil
	}
	target := receipt.BlockNumber.Uint64() + confirmations - 1

	if hw, ok := a.heads[id]; ok && hw.IsConnected() {
		if _, err := hw.WaitFor(timeoutCtx, target); err != nil {
			return nil, fmt.Errorf("waiting for %d confirmations of %s: %w", confirmations, hash.Hex(), err)
		}
		return receipt, nil
	}

	for {
		head, err := backend.BlockNumber(timeoutCtx)
		if err == nil && head >= target {
			return receipt, nil
		}
		select {
		case <-timeoutCtx.Done():
			return nil, fmt.Errorf("waiting for %d confirmations of %s: %w", confirmations, hash.Hex(), timeoutCtx.Err())
		case <-time.After(a.pollInterval):
		}
	}
}

// Close releases websocket subscriptions
func (a *EOAAccount) Close() {
	for _, hw := range a.heads {
		hw.Close()
	}
}

func (a *EOAAccount) current() NetworkID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.network
}

func (a *EOAAccount) backend() (EthBackend, error) {
	id := a.current()
	backend, ok := a.backends[id]
	if !ok {
		return nil, fmt.Errorf("no backend for network %d", id)
	}
	return backend, nil
}

func lowestNetwork(backends map[NetworkID]EthBackend) NetworkID {
	var lowest NetworkID
	for id := range backends {
		if lowest == 0 || id < lowest {
			lowest = id
		}
	}
	return lowest
}
