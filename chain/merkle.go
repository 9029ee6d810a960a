package chain

import (
	"bytes"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MerkleLeaf computes keccak256(abi.encodePacked(wallet, uint32 index))
func MerkleLeaf(wallet common.Address, index uint32) common.Hash {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], index)
	return crypto.Keccak256Hash(wallet.Bytes(), idx[:])
}

// VerifyMerkleProof checks a sorted-pair keccak proof of leaf against root
func VerifyMerkleProof(root [32]byte, leaf common.Hash, proof [][32]byte) bool {
	computed := leaf
	for _, sibling := range proof {
		computed = hashPair(computed, sibling)
	}
	return computed == common.Hash(root)
}

// MerkleRoot builds the root of a sorted-pair tree over leaves and returns the
// proof for every leaf. Used to produce allowlists.
func MerkleRoot(leaves []common.Hash) (common.Hash, [][][32]byte) {
	proofs := make([][][32]byte, len(leaves))
	if len(leaves) == 0 {
		return common.Hash{}, proofs
	}
	positions := make([]int, len(leaves))
	for i := range positions {
		positions[i] = i
	}

	level := append([]common.Hash(nil), leaves...)
	for len(level) > 1 {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, hashPair(level[i], level[i+1]))
		}
		for leaf, pos := range positions {
			sibling := pos ^ 1
			if sibling < len(level) {
				proofs[leaf] = append(proofs[leaf], level[sibling])
			}
			positions[leaf] = pos / 2
		}
		level = next
	}
	return level[0], proofs
}

func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a[:], b[:])
}
