package mintsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// AllowlistProvider looks up the allowlist proofs of a wallet
type AllowlistProvider interface {
	Proofs(ctx context.Context, treeID string, wallet common.Address) ([]MerkleProof, error)
}

// AllowlistClient fetches Merkle proofs from an allowlist HTTP service
type AllowlistClient struct {
	host   string
	client *http.Client
}

// NewAllowlistClient creates a new allowlist client
func NewAllowlistClient(host string, httpClient *http.Client) *AllowlistClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &AllowlistClient{
		host:   strings.TrimRight(host, "/"),
		client: httpClient,
	}
}

type merkleInfo struct {
	MerkleProof []string `json:"merkleProof"`
	Value       uint32   `json:"value"`
}

// Proofs fetches every mint index proof the tree holds for wallet
func (c *AllowlistClient) Proofs(ctx context.Context, treeID string, wallet common.Address) ([]MerkleProof, error) {
	if treeID == "" {
		return nil, invalidParam("merkle tree id is required")
	}
	endpoint := fmt.Sprintf("/merkleTree/%s/merkleInfo?address=%s", url.PathEscape(treeID), wallet.Hex())
	resp, err := c.doRequest(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var infos []merkleInfo
	if err := c.decodeJSONResponse(resp, &infos); err != nil {
		return nil, err
	}

	proofs := make([]MerkleProof, 0, len(infos))
	for _, info := range infos {
		proof := make([][32]byte, 0, len(info.MerkleProof))
		for _, node := range info.MerkleProof {
			raw, err := hexutil.Decode(node)
			if err != nil || len(raw) != 32 {
				return nil, &AllowlistError{Message: fmt.Sprintf("invalid proof node %q", node)}
			}
			proof = append(proof, [32]byte(raw))
		}
		proofs = append(proofs, MerkleProof{Index: info.Value, Proof: proof})
	}
	return proofs, nil
}

func (c *AllowlistClient) doRequest(ctx context.Context, method, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.host+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &AllowlistError{Message: fmt.Sprintf("request failed: %v", err)}
	}
	return resp, nil
}

// decodeJSONResponse reads the response body, checks HTTP status, and decodes JSON
func (c *AllowlistClient) decodeJSONResponse(resp *http.Response, result interface{}) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &AllowlistError{Message: fmt.Sprintf("failed to read response body: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		bodyStr := string(bodyBytes)
		if bodyStr == "" {
			bodyStr = resp.Status
		}
		return &AllowlistError{Message: bodyStr, Status: resp.StatusCode}
	}

	if err := json.Unmarshal(bodyBytes, result); err != nil {
		bodyStr := string(bodyBytes)
		if len(bodyStr) > 200 {
			bodyStr = bodyStr[:200] + "..."
		}
		return &AllowlistError{Message: fmt.Sprintf("failed to decode JSON response: %v (body: %s)", err, bodyStr)}
	}
	return nil
}
