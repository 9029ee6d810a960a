package mintsdk

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kaifufi/mint-sdk-go/chain"
)

// ProductFamily represents the contract family a product is minted through
type ProductFamily string

const (
	FamilyEdition    ProductFamily = "edition"
	FamilyBurnRedeem ProductFamily = "burn-redeem"
	FamilyBlindMint  ProductFamily = "blind-mint"
)

func convertFamily(f ProductFamily) chain.Kind {
	switch f {
	case FamilyEdition:
		return chain.KindEdition
	case FamilyBurnRedeem:
		return chain.KindBurnRedeem
	case FamilyBlindMint:
		return chain.KindBlindMint
	default:
		return chain.Kind(f)
	}
}

// ProductRef identifies one mintable product instance
type ProductRef struct {
	Family           ProductFamily
	NetworkID        NetworkID
	ExtensionAddress common.Address
	CreatorContract  common.Address
	InstanceID       *big.Int
	// MerkleTreeID names the allowlist tree at the allowlist provider
	MerkleTreeID string
}

func (r ProductRef) validate() error {
	if _, err := chain.FamilyFor(convertFamily(r.Family)); err != nil {
		return invalidParam("unknown product family %q", r.Family)
	}
	if r.NetworkID <= 0 {
		return invalidParam("network id is required")
	}
	if r.ExtensionAddress == (common.Address{}) {
		return invalidParam("extension address is required")
	}
	if r.CreatorContract == (common.Address{}) {
		return invalidParam("creator contract is required")
	}
	if r.InstanceID == nil || r.InstanceID.Sign() <= 0 {
		return invalidParam("instance id must be a positive integer")
	}
	return nil
}

func (r ProductRef) key() string {
	return fmt.Sprintf("%d/%s/%s/%s", r.NetworkID, strings.ToLower(r.ExtensionAddress.Hex()), strings.ToLower(r.CreatorContract.Hex()), r.InstanceID)
}

func (r ProductRef) String() string {
	return fmt.Sprintf("%s:%d:%s#%s", r.Family, r.NetworkID, r.CreatorContract.Hex(), r.InstanceID)
}

// Status represents the sale status of a product
type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusActive   Status = "active"
	StatusSoldOut  Status = "sold-out"
	StatusEnded    Status = "ended"
)

// ClaimState is a snapshot of a product's on-chain claim record.
// Zero TotalMax and WalletMax mean unbounded; a zero EndDate means the sale never ends.
type ClaimState struct {
	TotalMinted        uint64
	TotalMax           uint64
	WalletMax          uint64
	StartDate          time.Time
	EndDate            time.Time
	AllowlistRoot      *[32]byte
	UnitCost           Money
	PlatformFeePerUnit Money
	PaymentReceiver    common.Address
	FetchedAt          time.Time
}

// SupplyRemaining returns the unminted supply, ok is false when supply is unbounded
func (s *ClaimState) SupplyRemaining() (remaining uint64, ok bool) {
	if s.TotalMax == 0 {
		return 0, false
	}
	if s.TotalMinted >= s.TotalMax {
		return 0, true
	}
	return s.TotalMax - s.TotalMinted, true
}

// Unbounded is the MaxQuantity of a wallet with no personal or supply limit
const Unbounded int64 = -1

// Ineligibility reasons
const (
	ReasonNotStarted     = "not started"
	ReasonEnded          = "ended"
	ReasonSoldOut        = "sold out"
	ReasonWalletLimit    = "wallet limit reached"
	ReasonNotOnAllowlist = "not on allowlist"
	ReasonNoMints        = "no mints available"
	ReasonOverAllocation = "quantity exceeds allocation"
)

// MerkleProof proves one allowlist mint index for a wallet
type MerkleProof struct {
	Index uint32
	Proof [][32]byte
}

// AllocationResult is the purchasable quantity for one wallet
type AllocationResult struct {
	IsEligible  bool
	MaxQuantity int64
	Reason      string
	Proofs      []MerkleProof
}

// Allows reports whether quantity fits in the allocation
func (a *AllocationResult) Allows(quantity uint32) bool {
	if !a.IsEligible {
		return false
	}
	return a.MaxQuantity == Unbounded || int64(quantity) <= a.MaxQuantity
}

// CostBreakdown is the total cost of a purchase grouped by payment token
type CostBreakdown struct {
	PerToken            map[TokenID]Money
	ProductSubtotal     Money
	PlatformFeeSubtotal Money
}

// Tokens returns the payment tokens in execution order: ERC20 by address, native last
func (c *CostBreakdown) Tokens() []TokenID {
	tokens := make([]TokenID, 0, len(c.PerToken))
	for token := range c.PerToken {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].IsNative() != tokens[j].IsNative() {
			return tokens[j].IsNative()
		}
		return tokens[i] < tokens[j]
	})
	return tokens
}

// Total returns the amount due in token, zero when the token is not used
func (c *CostBreakdown) Total(token TokenID) (Money, bool) {
	m, ok := c.PerToken[token]
	return m, ok
}

// Merge returns the sum of two breakdowns
func (c *CostBreakdown) Merge(o *CostBreakdown) (*CostBreakdown, error) {
	out := &CostBreakdown{PerToken: make(map[TokenID]Money, len(c.PerToken)+len(o.PerToken))}
	for token, m := range c.PerToken {
		out.PerToken[token] = m
	}
	for token, m := range o.PerToken {
		existing, ok := out.PerToken[token]
		if !ok {
			out.PerToken[token] = m
			continue
		}
		sum, err := existing.Add(m)
		if err != nil {
			return nil, err
		}
		out.PerToken[token] = sum
	}

	var err error
	if out.ProductSubtotal, err = c.ProductSubtotal.Add(o.ProductSubtotal); err != nil {
		return nil, err
	}
	if out.PlatformFeeSubtotal, err = c.PlatformFeeSubtotal.Add(o.PlatformFeeSubtotal); err != nil {
		return nil, err
	}
	return out, nil
}

// StepKind represents the kind of a transaction step
type StepKind string

const (
	StepApprove StepKind = "approve"
	StepMint    StepKind = "mint"
)

// TransactionStep is one transaction the buyer's account must submit
type TransactionStep struct {
	ID          string
	Kind        StepKind
	Description string
	Cost        *Money
	NetworkID   NetworkID
	Request     chain.TxRequest
}

// GasBuffer pads estimated gas. Fixed takes precedence over Percent.
type GasBuffer struct {
	Fixed   uint64
	Percent uint64
}

// Payload carries the family-specific purchase inputs
type Payload interface {
	family() ProductFamily
}

// EditionPayload is the payload of an edition purchase
type EditionPayload struct{}

func (EditionPayload) family() ProductFamily { return FamilyEdition }

// BurnRedeemPayload selects the tokens burned to redeem
type BurnRedeemPayload struct {
	BurnTokens []chain.BurnToken
}

func (BurnRedeemPayload) family() ProductFamily { return FamilyBurnRedeem }

// BlindMintPayload is the payload of a blind mint purchase
type BlindMintPayload struct{}

func (BlindMintPayload) family() ProductFamily { return FamilyBlindMint }

// PurchaseRequest asks for quantity of a product on behalf of wallet
type PurchaseRequest struct {
	Product  ProductRef
	Wallet   common.Address
	Quantity uint32
	// Recipient receives the minted tokens, defaults to Wallet
	Recipient common.Address
	Payload   Payload
	Gas       GasBuffer
	// ConnectedNetwork is the wallet's current network, if known. A mismatch is
	// reported on the prepared purchase; execution switches networks.
	ConnectedNetwork NetworkID
}

func (r *PurchaseRequest) validate() error {
	if err := r.Product.validate(); err != nil {
		return err
	}
	if r.Wallet == (common.Address{}) {
		return invalidParam("wallet address is required")
	}
	if r.Quantity == 0 {
		return invalidParam("quantity must be a positive integer")
	}
	if r.Payload == nil {
		switch r.Product.Family {
		case FamilyEdition:
			r.Payload = EditionPayload{}
		case FamilyBlindMint:
			r.Payload = BlindMintPayload{}
		default:
			return invalidParam("%s purchase requires a payload", r.Product.Family)
		}
	}
	if r.Payload.family() != r.Product.Family {
		return invalidParam("%s payload for %s product", r.Payload.family(), r.Product.Family)
	}
	if br, ok := r.Payload.(BurnRedeemPayload); ok && len(br.BurnTokens) == 0 {
		return invalidParam("burn tokens are required")
	}
	if r.Recipient == (common.Address{}) {
		r.Recipient = r.Wallet
	}
	return nil
}

// PreparedPurchase is a validated, priced, ready-to-execute purchase.
// It can be executed once.
type PreparedPurchase struct {
	ID         string
	Request    PurchaseRequest
	Cost       *CostBreakdown
	Allocation *AllocationResult
	Steps      []*TransactionStep
	IsEligible bool
	PreparedAt time.Time
	// NetworkMismatch is set when the request's ConnectedNetwork is not the product network
	NetworkMismatch bool

	consumed atomic.Bool
}

// Product returns the product being purchased
func (p *PreparedPurchase) Product() ProductRef { return p.Request.Product }

// Quantity returns the purchased quantity
func (p *PreparedPurchase) Quantity() uint32 { return p.Request.Quantity }

// OrderStatus represents the outcome of an execution
type OrderStatus string

const (
	OrderCompleted OrderStatus = "completed"
	OrderPartial   OrderStatus = "partial"
	OrderFailed    OrderStatus = "failed"
)

// TransactionReceipt is the mined result of one step
type TransactionReceipt struct {
	NetworkID   NetworkID
	StepID      string
	Kind        StepKind
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Status      uint64
}

// Order is the result of executing a prepared purchase
type Order struct {
	ID         string
	PurchaseID string
	Request    PurchaseRequest
	Buyer      common.Address
	Receipts   []TransactionReceipt
	Status     OrderStatus
	TotalCost  *CostBreakdown
	FailedStep string
	// Pending is a broadcast transaction whose outcome was never observed
	Pending   *PendingTx
	Err       error
	CreatedAt time.Time
}

// PendingTx identifies a step transaction that was sent but not confirmed
type PendingTx struct {
	StepID    string
	Kind      StepKind
	NetworkID NetworkID
	TxHash    common.Hash
}

// StepEventType represents a step lifecycle transition
type StepEventType string

const (
	EventStarted    StepEventType = "started"
	EventConfirming StepEventType = "confirming"
	EventCompleted  StepEventType = "completed"
	EventFailed     StepEventType = "failed"
)

// StepEvent reports progress of one step
type StepEvent struct {
	Type    StepEventType
	StepID  string
	Kind    StepKind
	Index   int
	Total   int
	TxHash  common.Hash
	Receipt *TransactionReceipt
	Err     error
}
