package mintsdk

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kaifufi/mint-sdk-go/chain"
)

const nativeDecimals = 18

// CallerSource resolves per-network read access
type CallerSource interface {
	Caller(id NetworkID) (*chain.ContractCaller, error)
	Network(id NetworkID) (Network, error)
}

// ClaimReader fetches claim records and keeps the latest snapshot per product
type ClaimReader struct {
	source CallerSource
	clock  func() time.Time
	logger *logrus.Entry

	mu    sync.RWMutex
	cache map[string]*ClaimState
}

// NewClaimReader creates a new ClaimReader
func NewClaimReader(source CallerSource, clock func() time.Time, logger *logrus.Entry) *ClaimReader {
	if clock == nil {
		clock = time.Now
	}
	return &ClaimReader{
		source: source,
		clock:  clock,
		logger: logger,
		cache:  make(map[string]*ClaimState),
	}
}

// Cached returns the last fetched snapshot, if any
func (r *ClaimReader) Cached(ref ProductRef) (*ClaimState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.cache[ref.key()]
	return state, ok
}

// Fetch returns the cached snapshot unless forceRefresh is set or nothing is cached.
// A failed refresh leaves the previous snapshot in place.
func (r *ClaimReader) Fetch(ctx context.Context, ref ProductRef, forceRefresh bool) (*ClaimState, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	if !forceRefresh {
		if state, ok := r.Cached(ref); ok {
			r.logger.WithField("product", ref.String()).Debug("claim state cache hit")
			return state, nil
		}
	}

	state, err := r.read(ctx, ref)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[ref.key()] = state
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"product":     ref.String(),
		"totalMinted": state.TotalMinted,
		"totalMax":    state.TotalMax,
	}).Debug("claim state refreshed")
	return state, nil
}

func (r *ClaimReader) read(ctx context.Context, ref ProductRef) (*ClaimState, error) {
	family, err := chain.FamilyFor(convertFamily(ref.Family))
	if err != nil {
		return nil, invalidParam("%v", err)
	}
	caller, err := r.source.Caller(ref.NetworkID)
	if err != nil {
		return nil, err
	}
	network, err := r.source.Network(ref.NetworkID)
	if err != nil {
		return nil, err
	}

	claim, err := family.ReadClaim(ctx, caller, ref.ExtensionAddress, ref.CreatorContract, ref.InstanceID)
	if err != nil {
		return nil, contractReadError("getClaim", err)
	}

	var (
		fee  *big.Int
		info = chain.TokenInfo{Decimals: nativeDecimals, Symbol: network.NativeSymbol}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fee, err = family.ReadPlatformFee(gctx, caller, ref.ExtensionAddress, claim.HasAllowlist())
		return err
	})
	if claim.PaysInERC20() {
		g.Go(func() error {
			var err error
			info, err = caller.TokenInfo(gctx, claim.ERC20)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, contractReadError("platformFee", err)
	}

	token := NativeToken
	if claim.PaysInERC20() {
		token = ERC20Token(claim.ERC20)
	}
	unitCost, err := NewMoney(claim.Cost, info.Decimals, token, info.Symbol)
	if err != nil {
		return nil, err
	}
	platformFee, err := NewMoney(fee, nativeDecimals, NativeToken, network.NativeSymbol)
	if err != nil {
		return nil, err
	}

	state := &ClaimState{
		TotalMinted:        claim.TotalMinted,
		TotalMax:           claim.TotalMax,
		WalletMax:          claim.WalletMax,
		StartDate:          unixOrZero(claim.StartDate),
		EndDate:            unixOrZero(claim.EndDate),
		UnitCost:           unitCost,
		PlatformFeePerUnit: platformFee,
		PaymentReceiver:    claim.PaymentReceiver,
		FetchedAt:          r.clock(),
	}
	if claim.HasAllowlist() {
		root := claim.MerkleRoot
		state.AllowlistRoot = &root
	}
	return state, nil
}

func unixOrZero(sec uint64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), 0).UTC()
}
