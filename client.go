package mintsdk

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kaifufi/mint-sdk-go/chain"
	"github.com/kaifufi/mint-sdk-go/journal"
)

const tracerName = "github.com/kaifufi/mint-sdk-go"

// Client is the main SDK client
type Client struct {
	networks         map[NetworkID]Network
	callers          map[NetworkID]*chain.ContractCaller
	rpcClients       []*ethclient.Client
	claims           *ClaimReader
	executor         *Executor
	allowlist        AllowlistProvider
	gasBufferPercent uint64
	receiptTimeout   time.Duration
	journal          journal.Store
	metrics          *Metrics
	tracer           trace.Tracer
	logger           *logrus.Entry
	clock            func() time.Time
	closeOnce        sync.Once
}

// ClientConfig holds configuration for creating a Client
type ClientConfig struct {
	// Networks the client may read from; DefaultNetworks is used when empty
	Networks map[NetworkID]Network
	// Readers are the primary (usually wallet-supplied) read providers per network
	Readers map[NetworkID]chain.Reader
	// Fallbacks are secondary read-only providers; dialed from FallbackRPCURL when absent
	Fallbacks map[NetworkID]chain.Reader

	Allowlist     AllowlistProvider
	AllowlistHost string

	ReadTimeout      time.Duration
	FallbackRPS      float64
	GasBufferPercent uint64
	Confirmations    uint64
	ReceiptTimeout   time.Duration

	Logger     *logrus.Logger
	Registerer prometheus.Registerer
	Journal    journal.Store
	Clock      func() time.Time
}

// NewClient creates a new mint SDK client
func NewClient(config ClientConfig) (*Client, error) {
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = chain.DefaultReadTimeout
	}
	if config.GasBufferPercent == 0 {
		config.GasBufferPercent = DefaultGasBufferPercent
	}
	if config.Confirmations == 0 {
		config.Confirmations = 1
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.Allowlist == nil && config.AllowlistHost != "" {
		config.Allowlist = NewAllowlistClient(config.AllowlistHost, nil)
	}

	networks := make(map[NetworkID]Network)
	if len(config.Networks) == 0 && len(config.Readers) == 0 {
		for id, n := range DefaultNetworks {
			networks[id] = n
		}
	}
	for id, n := range config.Networks {
		n.ID = id
		networks[id] = mergeNetwork(DefaultNetworks[id], n)
	}
	for id := range config.Readers {
		if _, ok := networks[id]; !ok {
			networks[id] = mergeNetwork(DefaultNetworks[id], Network{ID: id})
		}
	}

	logger := config.Logger.WithField("component", "mintsdk")
	c := &Client{
		networks:         networks,
		callers:          make(map[NetworkID]*chain.ContractCaller, len(networks)),
		allowlist:        config.Allowlist,
		gasBufferPercent: config.GasBufferPercent,
		receiptTimeout:   config.ReceiptTimeout,
		journal:          config.Journal,
		metrics:          NewMetrics(config.Registerer),
		tracer:           otel.Tracer(tracerName),
		logger:           logger,
		clock:            config.Clock,
	}

	for id, network := range networks {
		primary := config.Readers[id]
		if primary == nil && network.RPCURL != "" {
			rpc, err := c.dial(network.RPCURL)
			if err != nil {
				c.Close()
				return nil, fmt.Errorf("failed to connect to %s RPC: %w", network.Name, err)
			}
			primary = rpc
		}
		fallback := config.Fallbacks[id]
		if fallback == nil && network.FallbackRPCURL != "" && network.FallbackRPCURL != network.RPCURL {
			rpc, err := c.dial(network.FallbackRPCURL)
			if err != nil {
				c.Close()
				return nil, fmt.Errorf("failed to connect to %s fallback RPC: %w", network.Name, err)
			}
			fallback = rpc
		}

		netLog := logger.WithField("network", network.Name)
		reader := chain.NewFallbackReader(chain.FallbackReaderConfig{
			Primary:       primary,
			Fallback:      fallback,
			Timeout:       config.ReadTimeout,
			FallbackRPS:   config.FallbackRPS,
			FallbackBurst: 1,
			Observer: func(method, provider string, err error) {
				c.metrics.observeRead(method, provider, err)
				if err != nil && provider == chain.ProviderPrimary && fallback != nil {
					netLog.WithError(err).WithField("method", method).Warn("primary read failed, using fallback provider")
				}
			},
		})
		c.callers[id] = chain.NewContractCaller(reader)
	}

	c.claims = NewClaimReader(c, c.clock, logger.WithField("component", "claim-reader"))
	c.executor = &Executor{
		confirmations: config.Confirmations,
		clock:         c.clock,
		logger:        logger.WithField("component", "executor"),
		metrics:       c.metrics,
		tracer:        c.tracer,
	}
	return c, nil
}

func (c *Client) dial(url string) (*ethclient.Client, error) {
	rpc, err := ethclient.Dial(url)
	if err != nil {
		return nil, err
	}
	c.rpcClients = append(c.rpcClients, rpc)
	return rpc, nil
}

// Close closes the client and cleans up resources
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		for _, rpc := range c.rpcClients {
			rpc.Close()
		}
		if c.journal != nil {
			if err := c.journal.Close(); err != nil {
				c.logger.WithError(err).Warn("failed to close journal")
			}
		}
	})
}

// Caller returns the contract caller for a network
func (c *Client) Caller(id NetworkID) (*chain.ContractCaller, error) {
	caller, ok := c.callers[id]
	if !ok {
		return nil, invalidParam("network %d is not configured", id)
	}
	return caller, nil
}

// Network returns the settings of a configured network
func (c *Client) Network(id NetworkID) (Network, error) {
	network, ok := c.networks[id]
	if !ok {
		return Network{}, invalidParam("network %d is not configured", id)
	}
	return network, nil
}

// Product builds a ProductRef using the network's configured extension contract for family
func (c *Client) Product(family ProductFamily, network NetworkID, creator common.Address, instanceID *big.Int) (ProductRef, error) {
	n, err := c.Network(network)
	if err != nil {
		return ProductRef{}, err
	}
	ref := ProductRef{
		Family:           family,
		NetworkID:        network,
		ExtensionAddress: n.Contracts.For(family),
		CreatorContract:  creator,
		InstanceID:       instanceID,
	}
	return ref, ref.validate()
}

// GetClaimState returns the product's claim snapshot, reading the chain when forceRefresh
// is set or nothing is cached yet
func (c *Client) GetClaimState(ctx context.Context, ref ProductRef, forceRefresh bool) (*ClaimState, error) {
	return c.claims.Fetch(ctx, ref, forceRefresh)
}

// GetStatus returns the product's sale status
func (c *Client) GetStatus(ctx context.Context, ref ProductRef, forceRefresh bool) (Status, error) {
	state, err := c.claims.Fetch(ctx, ref, forceRefresh)
	if err != nil {
		return "", err
	}
	return ResolveStatus(state, c.clock()), nil
}

// GetAllocation returns how many units wallet can mint right now. The claim is always re-read.
func (c *Client) GetAllocation(ctx context.Context, ref ProductRef, wallet common.Address) (*AllocationResult, error) {
	alloc, err := c.allocate(ctx, ref, wallet)
	if err != nil {
		return nil, err
	}
	return alloc.result, nil
}

// GetCost prices quantity units using the cached claim, reading it if needed
func (c *Client) GetCost(ctx context.Context, ref ProductRef, quantity uint32) (*CostBreakdown, error) {
	state, err := c.claims.Fetch(ctx, ref, false)
	if err != nil {
		return nil, err
	}
	return ComputeCost(state, quantity)
}

// GetWalletMints returns how many units wallet has already minted
func (c *Client) GetWalletMints(ctx context.Context, ref ProductRef, wallet common.Address) (uint64, error) {
	if err := ref.validate(); err != nil {
		return 0, err
	}
	if wallet == (common.Address{}) {
		return 0, invalidParam("wallet address is required")
	}
	family, err := chain.FamilyFor(convertFamily(ref.Family))
	if err != nil {
		return 0, invalidParam("%v", err)
	}
	caller, err := c.Caller(ref.NetworkID)
	if err != nil {
		return 0, err
	}
	minted, err := family.ReadWalletMints(ctx, caller, ref.ExtensionAddress, wallet, ref.CreatorContract, ref.InstanceID)
	if err != nil {
		if errors.Is(err, chain.ErrUnsupported) {
			return 0, invalidParam("%s products do not track wallet mints", ref.Family)
		}
		return 0, contractReadError("walletMints", err)
	}
	return minted, nil
}

// PreparePurchase checks eligibility and funds, prices the purchase and builds its steps.
// It returns no partial result on failure.
func (c *Client) PreparePurchase(ctx context.Context, req PurchaseRequest) (prepared *PreparedPurchase, err error) {
	if err := req.validate(); err != nil {
		c.metrics.observePrepare("invalid")
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "mintsdk.PreparePurchase", trace.WithAttributes(
		attribute.String("product", req.Product.String()),
		attribute.String("wallet", req.Wallet.Hex()),
		attribute.Int64("quantity", int64(req.Quantity)),
	))
	defer func() {
		switch {
		case err == nil:
			c.metrics.observePrepare("ok")
		case errors.Is(err, ErrNotEligible):
			c.metrics.observePrepare("ineligible")
		case errors.Is(err, ErrBalanceNotEnough):
			c.metrics.observePrepare("insufficient_funds")
		default:
			c.metrics.observePrepare("error")
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	ref := req.Product
	log := c.logger.WithFields(logrus.Fields{"product": ref.String(), "wallet": req.Wallet.Hex(), "quantity": req.Quantity})

	alloc, err := c.allocate(ctx, ref, req.Wallet)
	if err != nil {
		return nil, err
	}
	result := alloc.result
	if !result.IsEligible {
		return nil, &EligibilityError{Reason: result.Reason}
	}
	if !result.Allows(req.Quantity) {
		return nil, &EligibilityError{Reason: ReasonOverAllocation, MaxQuantity: result.MaxQuantity}
	}

	cost, err := ComputeCost(alloc.state, req.Quantity)
	if err != nil {
		return nil, err
	}

	family, err := chain.FamilyFor(convertFamily(ref.Family))
	if err != nil {
		return nil, invalidParam("%v", err)
	}
	caller, err := c.Caller(ref.NetworkID)
	if err != nil {
		return nil, err
	}

	builder := NewStepBuilder(caller, family, ref.NetworkID, c.gasBufferPercent, log)
	steps, err := builder.Build(ctx, ref, req.Wallet, cost, mintArgs(req, result), req.Gas)
	if err != nil {
		return nil, err
	}

	prepared = &PreparedPurchase{
		ID:              uuid.NewString(),
		Request:         req,
		Cost:            cost,
		Allocation:      result,
		Steps:           steps,
		IsEligible:      true,
		PreparedAt:      c.clock(),
		NetworkMismatch: req.ConnectedNetwork != 0 && req.ConnectedNetwork != ref.NetworkID,
	}
	if prepared.NetworkMismatch {
		log.WithField("connectedNetwork", req.ConnectedNetwork).Warn("wallet is on another network, execution will request a switch")
	}
	log.WithFields(logrus.Fields{"purchase": prepared.ID, "steps": len(steps)}).Info("purchase prepared")
	return prepared, nil
}

func mintArgs(req PurchaseRequest, alloc *AllocationResult) chain.MintArgs {
	args := chain.MintArgs{
		Creator:    req.Product.CreatorContract,
		InstanceID: req.Product.InstanceID,
		Quantity:   req.Quantity,
		Recipient:  req.Recipient,
		Indices:    []uint32{},
		Proofs:     [][][32]byte{},
	}
	if len(alloc.Proofs) > 0 {
		for _, p := range alloc.Proofs[:req.Quantity] {
			args.Indices = append(args.Indices, p.Index)
			args.Proofs = append(args.Proofs, p.Proof)
		}
	}
	if br, ok := req.Payload.(BurnRedeemPayload); ok {
		args.BurnTokens = br.BurnTokens
	}
	return args
}

// Purchase executes a prepared purchase and returns the order. The order is returned
// even when a step fails; a prepared purchase can only be executed once.
func (c *Client) Purchase(ctx context.Context, prepared *PreparedPurchase, account Account) (*Order, error) {
	x, err := c.PurchaseEvents(ctx, prepared, account)
	if err != nil {
		return nil, err
	}
	for range x.Events() {
	}
	return x.Result()
}

// PurchaseEvents starts executing a prepared purchase and exposes its step events
func (c *Client) PurchaseEvents(ctx context.Context, prepared *PreparedPurchase, account Account) (*Execution, error) {
	if prepared == nil || account == nil {
		return nil, invalidParam("prepared purchase and account are required")
	}
	if account.Address() != prepared.Request.Wallet {
		return nil, invalidParam("purchase prepared for %s cannot be sent by %s", prepared.Request.Wallet.Hex(), account.Address().Hex())
	}
	if !prepared.consumed.CompareAndSwap(false, true) {
		return nil, ErrPurchaseConsumed
	}

	x := c.executor.Run(ctx, prepared, account)
	x.onDone = c.record
	return x, nil
}

// Resume prepares and executes the remainder of a partial or failed order. Approvals that
// were confirmed are skipped because the allowance is re-read. A transaction left pending by
// the previous run is awaited first and never sent twice.
func (c *Client) Resume(ctx context.Context, order *Order, account Account) (*Order, error) {
	if order == nil {
		return nil, invalidParam("order is required")
	}
	if order.Status == OrderCompleted {
		return nil, ErrOrderCompleted
	}

	log := c.logger.WithFields(logrus.Fields{"order": order.ID, "failedStep": order.FailedStep})
	if p := order.Pending; p != nil {
		done, err := c.reconcile(ctx, order, p, account)
		if err != nil {
			return nil, err
		}
		if done != nil {
			return done, nil
		}
	}

	log.Info("resuming order")
	prepared, err := c.PreparePurchase(ctx, order.Request)
	if err != nil {
		return nil, err
	}
	return c.Purchase(ctx, prepared, account)
}

// reconcile waits for the pending transaction of order. A confirmed mint completes the
// order; any other outcome returns nil so the order is re-prepared.
func (c *Client) reconcile(ctx context.Context, order *Order, p *PendingTx, account Account) (*Order, error) {
	log := c.logger.WithFields(logrus.Fields{"order": order.ID, "tx": p.TxHash.Hex()})
	if err := ensureNetwork(ctx, account, p.NetworkID); err != nil {
		return nil, err
	}
	raw, err := account.WaitForReceipt(ctx, p.TxHash, c.executor.confirmations)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTransactionPending, p.TxHash.Hex(), err)
	}
	if raw.Status != types.ReceiptStatusSuccessful {
		log.Warn("pending transaction reverted, preparing again")
		return nil, nil
	}
	if p.Kind != StepMint {
		log.Info("pending approval confirmed")
		return nil, nil
	}

	done := *order
	done.Receipts = append(append([]TransactionReceipt(nil), order.Receipts...), *newReceipt(p.NetworkID, p.StepID, p.Kind, raw))
	done.Status = OrderCompleted
	done.FailedStep = ""
	done.Pending = nil
	done.Err = nil
	log.Info("pending mint confirmed, order completed")
	c.record(&done)
	return &done, nil
}

// GetOrder loads a journaled order
func (c *Client) GetOrder(id string) (*journal.Record, error) {
	if c.journal == nil {
		return nil, invalidParam("no order journal configured")
	}
	return c.journal.Get(id)
}

// ListOrders returns every journaled order, oldest first
func (c *Client) ListOrders() ([]journal.Record, error) {
	if c.journal == nil {
		return nil, invalidParam("no order journal configured")
	}
	return c.journal.List()
}

// DialAccount creates an EOAAccount on the client's configured networks
func (c *Client) DialAccount(ctx context.Context, hexKey string) (*EOAAccount, error) {
	return DialEOAAccount(ctx, hexKey, c.networks, c.receiptTimeout, c.logger)
}

func (c *Client) record(order *Order) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Put(toRecord(order)); err != nil {
		c.logger.WithError(err).WithField("order", order.ID).Warn("failed to journal order")
	}
}

func toRecord(order *Order) journal.Record {
	ref := order.Request.Product
	record := journal.Record{
		ID:         order.ID,
		PurchaseID: order.PurchaseID,
		Status:     string(order.Status),
		Buyer:      order.Buyer.Hex(),
		NetworkID:  int64(ref.NetworkID),
		Family:     string(ref.Family),
		Extension:  ref.ExtensionAddress.Hex(),
		Creator:    ref.CreatorContract.Hex(),
		Quantity:   order.Request.Quantity,
		Receipts:   make([]journal.Receipt, 0, len(order.Receipts)),
		FailedStep: order.FailedStep,
		CreatedAt:  order.CreatedAt,
	}
	if ref.InstanceID != nil {
		record.InstanceID = ref.InstanceID.String()
	}
	if order.TotalCost != nil {
		for _, token := range order.TotalCost.Tokens() {
			record.Cost = append(record.Cost, order.TotalCost.PerToken[token].String())
		}
	}
	for _, r := range order.Receipts {
		record.Receipts = append(record.Receipts, journal.Receipt{
			StepID:      r.StepID,
			Kind:        string(r.Kind),
			TxHash:      r.TxHash.Hex(),
			BlockNumber: r.BlockNumber,
			GasUsed:     r.GasUsed,
			Status:      r.Status,
		})
	}
	if order.Pending != nil {
		record.PendingTxHash = order.Pending.TxHash.Hex()
	}
	if order.Err != nil {
		record.Error = order.Err.Error()
	}
	return record
}
