package mintsdk

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kaifufi/mint-sdk-go/chain"
)

type allocation struct {
	result *AllocationResult
	state  *ClaimState
}

// allocate refreshes the claim and computes what wallet may mint
func (c *Client) allocate(ctx context.Context, ref ProductRef, wallet common.Address) (*allocation, error) {
	if wallet == (common.Address{}) {
		return nil, invalidParam("wallet address is required")
	}
	if err := ref.validate(); err != nil {
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

	var (
		state    *ClaimState
		prior    uint64
		priorErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		state, err = c.claims.Fetch(gctx, ref, true)
		return err
	})
	g.Go(func() error {
		prior, priorErr = family.ReadWalletMints(gctx, caller, ref.ExtensionAddress, wallet, ref.CreatorContract, ref.InstanceID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log := c.logger.WithFields(logrus.Fields{"product": ref.String(), "wallet": wallet.Hex()})
	result := &AllocationResult{}

	status := ResolveStatus(state, c.clock())
	if status != StatusActive {
		result.Reason = statusReason(status)
		log.WithField("status", status).Debug("product not purchasable")
		return &allocation{result: result, state: state}, nil
	}

	personal := Unbounded
	switch {
	case state.AllowlistRoot != nil:
		proofs, err := c.allowlistProofs(ctx, family, caller, ref, wallet, *state.AllowlistRoot)
		if err != nil {
			return nil, err
		}
		if len(proofs) == 0 {
			result.Reason = ReasonNotOnAllowlist
			return &allocation{result: result, state: state}, nil
		}
		result.Proofs = proofs
		personal = int64(len(proofs))
	case state.WalletMax > 0:
		if priorErr != nil {
			return nil, contractReadError("walletMints", priorErr)
		}
		if prior >= state.WalletMax {
			result.Reason = ReasonWalletLimit
			return &allocation{result: result, state: state}, nil
		}
		personal = int64(state.WalletMax - prior)
	}

	result.MaxQuantity = personal
	if remaining, bounded := state.SupplyRemaining(); bounded {
		if personal == Unbounded || int64(remaining) < personal {
			result.MaxQuantity = int64(remaining)
		}
	}
	result.IsEligible = result.MaxQuantity == Unbounded || result.MaxQuantity > 0
	if !result.IsEligible {
		result.Reason = ReasonNoMints
	}
	if len(result.Proofs) > 0 && result.MaxQuantity >= 0 && int64(len(result.Proofs)) > result.MaxQuantity {
		result.Proofs = result.Proofs[:result.MaxQuantity]
	}

	log.WithFields(logrus.Fields{"eligible": result.IsEligible, "maxQuantity": result.MaxQuantity}).Debug("allocation computed")
	return &allocation{result: result, state: state}, nil
}

// allowlistProofs returns the wallet's proofs that verify against root and are not yet consumed
func (c *Client) allowlistProofs(ctx context.Context, family chain.Family, caller *chain.ContractCaller, ref ProductRef, wallet common.Address, root [32]byte) ([]MerkleProof, error) {
	if !family.SupportsAllowlist() {
		return nil, nil
	}
	if c.allowlist == nil {
		return nil, &AllowlistError{Message: "no allowlist provider configured"}
	}
	if ref.MerkleTreeID == "" {
		return nil, invalidParam("product %s is allowlisted but has no merkle tree id", ref)
	}

	proofs, err := c.allowlist.Proofs(ctx, ref.MerkleTreeID, wallet)
	if err != nil {
		return nil, err
	}

	valid := make([]MerkleProof, 0, len(proofs))
	for _, p := range proofs {
		if chain.VerifyMerkleProof(root, chain.MerkleLeaf(wallet, p.Index), p.Proof) {
			valid = append(valid, p)
			continue
		}
		c.logger.WithFields(logrus.Fields{"wallet": wallet.Hex(), "index": p.Index}).Warn("discarding allowlist proof that does not match on-chain root")
	}
	if len(valid) == 0 {
		return valid, nil
	}

	indices := make([]uint32, len(valid))
	for i, p := range valid {
		indices[i] = p.Index
	}
	minted, err := family.ReadMintedIndices(ctx, caller, ref.ExtensionAddress, ref.CreatorContract, ref.InstanceID, indices)
	if errors.Is(err, chain.ErrUnsupported) {
		return valid, nil
	}
	if err != nil {
		return nil, contractReadError("checkMintIndices", err)
	}

	unused := valid[:0]
	for i, p := range valid {
		if i < len(minted) && minted[i] {
			continue
		}
		unused = append(unused, p)
	}
	return unused, nil
}
