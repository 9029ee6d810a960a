package chain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Kind identifies a product family contract surface
type Kind string

const (
	KindEdition    Kind = "edition"
	KindBurnRedeem Kind = "burn-redeem"
	KindBlindMint  Kind = "blind-mint"
)

// Claim is the family-independent view of an on-chain claim record.
// Zero TotalMax/WalletMax mean unbounded, zero EndDate means no end.
type Claim struct {
	TotalMinted     uint64
	TotalMax        uint64
	WalletMax       uint64
	StartDate       uint64
	EndDate         uint64
	MerkleRoot      [32]byte
	Cost            *big.Int
	ERC20           common.Address
	PaymentReceiver common.Address
}

// HasAllowlist reports whether the claim is gated by a Merkle root
func (c *Claim) HasAllowlist() bool {
	return c.MerkleRoot != [32]byte{}
}

// PaysInERC20 reports whether the unit cost is denominated in an ERC-20 token
func (c *Claim) PaysInERC20() bool {
	return c.ERC20 != (common.Address{})
}

// BurnToken selects one token burned by a burn-redeem mint
type BurnToken struct {
	GroupIndex      *big.Int
	ItemIndex       *big.Int
	ContractAddress common.Address
	Id              *big.Int
	MerkleProof     [][32]byte
}

// MintArgs carries everything a family needs to encode its mint call
type MintArgs struct {
	Creator    common.Address
	InstanceID *big.Int
	Quantity   uint32
	Recipient  common.Address
	Indices    []uint32
	Proofs     [][][32]byte
	BurnTokens []BurnToken
}

// TxRequest is an unsigned transaction a wallet is asked to submit
type TxRequest struct {
	From  common.Address
	To    common.Address
	Data  []byte
	Value *big.Int
	Gas   uint64
}

// ERC20 ABI JSON for balance, allowance, approve and metadata functions
const erc20ABIJSON = `[
	{
		"constant": true,
		"inputs": [{"name": "account", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "spender", "type": "address"}
		],
		"name": "allowance",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "spender", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "decimals",
		"outputs": [{"name": "", "type": "uint8"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "symbol",
		"outputs": [{"name": "", "type": "string"}],
		"type": "function"
	}
]`

// Edition (lazy payable claim) extension ABI
const editionABIJSON = `[
	{
		"inputs": [
			{"name": "creatorContractAddress", "type": "address"},
			{"name": "instanceId", "type": "uint256"}
		],
		"name": "getClaim",
		"outputs": [{
			"name": "claim",
			"type": "tuple",
			"components": [
				{"name": "total", "type": "uint32"},
				{"name": "totalMax", "type": "uint32"},
				{"name": "walletMax", "type": "uint32"},
				{"name": "startDate", "type": "uint48"},
				{"name": "endDate", "type": "uint48"},
				{"name": "storageProtocol", "type": "uint8"},
				{"name": "merkleRoot", "type": "bytes32"},
				{"name": "location", "type": "string"},
				{"name": "tokenId", "type": "uint256"},
				{"name": "cost", "type": "uint256"},
				{"name": "paymentReceiver", "type": "address"},
				{"name": "erc20", "type": "address"}
			]
		}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "minter", "type": "address"},
			{"name": "creatorContractAddress", "type": "address"},
			{"name": "instanceId", "type": "uint256"}
		],
		"name": "getTotalMints",
		"outputs": [{"name": "", "type": "uint32"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "creatorContractAddress", "type": "address"},
			{"name": "instanceId", "type": "uint256"},
			{"name": "mintIndices", "type": "uint32[]"}
		],
		"name": "checkMintIndices",
		"outputs": [{"name": "minted", "type": "bool[]"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "MINT_FEE",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "MINT_FEE_MERKLE",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "creatorContractAddress", "type": "address"},
			{"name": "instanceId", "type": "uint256"},
			{"name": "mintCount", "type": "uint16"},
			{"name": "mintIndices", "type": "uint32[]"},
			{"name": "merkleProofs", "type": "bytes32[][]"},
			{"name": "mintFor", "type": "address"}
		],
		"name": "mintProxy",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	}
]`

// Burn-redeem extension ABI. The burn set is not decoded.
const burnRedeemABIJSON = `[
	{
		"inputs": [
			{"name": "creatorContractAddress", "type": "address"},
			{"name": "instanceId", "type": "uint256"}
		],
		"name": "getBurnRedeem",
		"outputs": [{
			"name": "burnRedeem",
			"type": "tuple",
			"components": [
				{"name": "paymentReceiver", "type": "address"},
				{"name": "storageProtocol", "type": "uint8"},
				{"name": "redeemedCount", "type": "uint32"},
				{"name": "redeemAmount", "type": "uint16"},
				{"name": "totalSupply", "type": "uint32"},
				{"name": "contractVersion", "type": "uint8"},
				{"name": "startDate", "type": "uint48"},
				{"name": "endDate", "type": "uint48"},
				{"name": "cost", "type": "uint160"},
				{"name": "location", "type": "string"}
			]
		}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "BURN_FEE",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "creatorContractAddress", "type": "address"},
			{"name": "instanceId", "type": "uint256"},
			{"name": "burnRedeemCount", "type": "uint32"},
			{
				"name": "burnTokens",
				"type": "tuple[]",
				"components": [
					{"name": "groupIndex", "type": "uint48"},
					{"name": "itemIndex", "type": "uint48"},
					{"name": "contractAddress", "type": "address"},
					{"name": "id", "type": "uint256"},
					{"name": "merkleProof", "type": "bytes32[]"}
				]
			}
		],
		"name": "burnRedeem",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	}
]`

// Blind mint (gacha) extension ABI
const blindMintABIJSON = `[
	{
		"inputs": [
			{"name": "creatorContractAddress", "type": "address"},
			{"name": "instanceId", "type": "uint256"}
		],
		"name": "getClaim",
		"outputs": [{
			"name": "claim",
			"type": "tuple",
			"components": [
				{"name": "storageProtocol", "type": "uint8"},
				{"name": "total", "type": "uint32"},
				{"name": "totalMax", "type": "uint32"},
				{"name": "startDate", "type": "uint48"},
				{"name": "endDate", "type": "uint48"},
				{"name": "startingTokenId", "type": "uint80"},
				{"name": "tokenVariations", "type": "uint8"},
				{"name": "location", "type": "string"},
				{"name": "paymentReceiver", "type": "address"},
				{"name": "cost", "type": "uint96"},
				{"name": "erc20", "type": "address"}
			]
		}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "minter", "type": "address"},
			{"name": "creatorContractAddress", "type": "address"},
			{"name": "instanceId", "type": "uint256"}
		],
		"name": "getUserMints",
		"outputs": [{
			"name": "",
			"type": "tuple",
			"components": [
				{"name": "reservedCount", "type": "uint32"},
				{"name": "deliveredCount", "type": "uint32"}
			]
		}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "MINT_FEE",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "creatorContractAddress", "type": "address"},
			{"name": "instanceId", "type": "uint256"},
			{"name": "mintCount", "type": "uint32"}
		],
		"name": "mintReserve",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	}
]`

var (
	erc20ABI      = mustParseABI("ERC20", erc20ABIJSON)
	editionABI    = mustParseABI("edition", editionABIJSON)
	burnRedeemABI = mustParseABI("burn-redeem", burnRedeemABIJSON)
	blindMintABI  = mustParseABI("blind-mint", blindMintABIJSON)
)

func mustParseABI(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("failed to parse " + name + " ABI: " + err.Error())
	}
	return parsed
}

// GetERC20ABI returns the parsed ERC20 ABI
func GetERC20ABI() abi.ABI { return erc20ABI }

// GetEditionABI returns the parsed edition extension ABI
func GetEditionABI() abi.ABI { return editionABI }

// GetBurnRedeemABI returns the parsed burn-redeem extension ABI
func GetBurnRedeemABI() abi.ABI { return burnRedeemABI }

// GetBlindMintABI returns the parsed blind mint extension ABI
func GetBlindMintABI() abi.ABI { return blindMintABI }
