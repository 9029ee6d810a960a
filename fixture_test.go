package mintsdk

import (
	"context"
	"encoding/binary"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/kaifufi/mint-sdk-go/chain"
	"github.com/kaifufi/mint-sdk-go/chain/chaintest"
	"github.com/kaifufi/mint-sdk-go/journal"
)

const testNetwork NetworkID = 31337

var (
	extensionAddr = common.HexToAddress("0x26BBEA7803DcAc346D5F5f135b57Cf2c752A02bE")
	creatorAddr   = common.HexToAddress("0x5B3C2f8e7C0f8E1A6aB2cF0E3d3D4d8A8a1A2b3C")
	buyerAddr     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	otherAddr     = common.HexToAddress("0x2222222222222222222222222222222222222222")
	usdcAddr      = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
)

func eth(s string) *big.Int {
	v, err := ParseUnits(s, 18)
	if err != nil {
		panic(err)
	}
	return v
}

type fixture struct {
	t        *testing.T
	backend  *chaintest.Backend
	client   *Client
	journal  *journal.LevelDBStore
	registry *prometheus.Registry
	now      time.Time

	mu            sync.Mutex
	claim         chain.EditionClaim
	walletMints   uint32
	mintFee       *big.Int
	merkleFee     *big.Int
	mintedIndices map[uint32]bool
	allowlist     *fakeAllowlist
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	f := &fixture{
		t:        t,
		backend:  chaintest.NewBackend(),
		registry: prometheus.NewRegistry(),
		now:      now,
		claim: chain.EditionClaim{
			Total:     10,
			TotalMax:  100,
			StartDate: big.NewInt(now.Add(-time.Hour).Unix()),
			EndDate:   big.NewInt(now.Add(24 * time.Hour).Unix()),
			Location:  "ar://edition",
			TokenId:   big.NewInt(1),
			Cost:      eth("0.05"),
		},
		mintFee:       eth("0.00069"),
		merkleFee:     eth("0.00069"),
		mintedIndices: make(map[uint32]bool),
		allowlist:     &fakeAllowlist{proofs: make(map[common.Address][]MerkleProof)},
	}

	parsed := chain.GetEditionABI()
	f.backend.Handle(extensionAddr, parsed, "getClaim", func([]interface{}) ([]interface{}, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		return []interface{}{f.claim}, nil
	})
	f.backend.Handle(extensionAddr, parsed, "getTotalMints", func([]interface{}) ([]interface{}, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		return []interface{}{f.walletMints}, nil
	})
	f.backend.Handle(extensionAddr, parsed, "MINT_FEE", func([]interface{}) ([]interface{}, error) {
		return []interface{}{f.mintFee}, nil
	})
	f.backend.Handle(extensionAddr, parsed, "MINT_FEE_MERKLE", func([]interface{}) ([]interface{}, error) {
		return []interface{}{f.merkleFee}, nil
	})
	f.backend.Handle(extensionAddr, parsed, "checkMintIndices", func(args []interface{}) ([]interface{}, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		indices := args[2].([]uint32)
		minted := make([]bool, len(indices))
		for i, idx := range indices {
			minted[i] = f.mintedIndices[idx]
		}
		return []interface{}{minted}, nil
	})
	f.backend.SetBalance(buyerAddr, eth("10"))
	f.backend.SetGas(100000, nil)

	store, err := journal.NewMemory()
	require.NoError(t, err)
	f.journal = store

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	client, err := NewClient(ClientConfig{
		Networks: map[NetworkID]Network{
			testNetwork: {Name: "anvil", NativeSymbol: "ETH"},
		},
		Readers:    map[NetworkID]chain.Reader{testNetwork: f.backend},
		Allowlist:  f.allowlist,
		Logger:     logger,
		Registerer: f.registry,
		Journal:    store,
		Clock:      func() time.Time { return f.now },
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	f.client = client
	return f
}

func (f *fixture) update(fn func(c *chain.EditionClaim)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.claim)
}

func (f *fixture) setWalletMints(n uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.walletMints = n
}

func (f *fixture) ref() ProductRef {
	return ProductRef{
		Family:           FamilyEdition,
		NetworkID:        testNetwork,
		ExtensionAddress: extensionAddr,
		CreatorContract:  creatorAddr,
		InstanceID:       big.NewInt(42),
		MerkleTreeID:     "tree-1",
	}
}

func (f *fixture) request(quantity uint32) PurchaseRequest {
	return PurchaseRequest{Product: f.ref(), Wallet: buyerAddr, Quantity: quantity}
}

// payInUSDC switches the claim to an ERC20 price and mounts the token
func (f *fixture) payInUSDC(unitCost int64) *chaintest.ERC20 {
	token := chaintest.NewERC20(f.backend, usdcAddr, 6, "USDC")
	f.update(func(c *chain.EditionClaim) {
		c.Erc20 = usdcAddr
		c.Cost = big.NewInt(unitCost)
	})
	return token
}

type fakeAllowlist struct {
	mu     sync.Mutex
	proofs map[common.Address][]MerkleProof
	calls  int
}

func (a *fakeAllowlist) Proofs(_ context.Context, _ string, wallet common.Address) ([]MerkleProof, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return a.proofs[wallet], nil
}

type fakeAccount struct {
	mu         sync.Mutex
	addr       common.Address
	network    NetworkID
	switchable bool
	sent       []chain.TxRequest
	revertOn   map[int]bool
	waitErr    map[int]error
	onSend     func(req chain.TxRequest)
	switches   int
}

func newFakeAccount() *fakeAccount {
	return &fakeAccount{
		addr:       buyerAddr,
		network:    testNetwork,
		switchable: true,
		revertOn:   make(map[int]bool),
		waitErr:    make(map[int]error),
	}
}

func (a *fakeAccount) Address() common.Address { return a.addr }

func (a *fakeAccount) ConnectedNetwork(context.Context) (NetworkID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.network, nil
}

func (a *fakeAccount) SwitchNetwork(_ context.Context, id NetworkID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.switches++
	if a.switchable {
		a.network = id
	}
	return nil
}

func (a *fakeAccount) Balance(_ context.Context, token TokenID) (Money, error) {
	return ZeroMoney(nativeDecimals, token, "ETH"), nil
}

func (a *fakeAccount) SendTransaction(_ context.Context, req chain.TxRequest) (common.Hash, error) {
	a.mu.Lock()
	a.sent = append(a.sent, req)
	n := len(a.sent)
	onSend := a.onSend
	a.mu.Unlock()

	if onSend != nil {
		onSend(req)
	}
	return txHash(n), nil
}

func (a *fakeAccount) WaitForReceipt(_ context.Context, hash common.Hash, _ uint64) (*types.Receipt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for i := 1; i <= len(a.sent); i++ {
		if txHash(i) == hash {
			n = i
		}
	}
	// a wait error is reported once, later waits see the receipt
	if err := a.waitErr[n]; err != nil {
		delete(a.waitErr, n)
		return nil, err
	}
	status := types.ReceiptStatusSuccessful
	if a.revertOn[n] {
		status = types.ReceiptStatusFailed
	}
	return &types.Receipt{
		TxHash:      hash,
		Status:      status,
		BlockNumber: big.NewInt(int64(100 + n)),
		GasUsed:     50000,
	}, nil
}

func (a *fakeAccount) sentCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sent)
}

func txHash(n int) common.Hash {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	return crypto.Keccak256Hash(buf[:])
}
