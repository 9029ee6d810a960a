package mintsdk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestAllowlistClientProofs(t *testing.T) {
	node := common.HexToHash("0x0101010101010101010101010101010101010101010101010101010101010101")
	var gotPath, gotAddress string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAddress = r.URL.Query().Get("address")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"merkleProof":["` + node.Hex() + `"],"value":3},{"merkleProof":[],"value":7}]`))
	}))
	defer srv.Close()

	client := NewAllowlistClient(srv.URL+"/", srv.Client())
	proofs, err := client.Proofs(context.Background(), "tree-9", buyerAddr)
	require.NoError(t, err)
	require.Equal(t, "/merkleTree/tree-9/merkleInfo", gotPath)
	require.Equal(t, buyerAddr.Hex(), gotAddress)
	require.Len(t, proofs, 2)
	require.Equal(t, uint32(3), proofs[0].Index)
	require.Equal(t, [][32]byte{node}, proofs[0].Proof)
	require.Equal(t, uint32(7), proofs[1].Index)
	require.Empty(t, proofs[1].Proof)
}

func TestAllowlistClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   int
	}{
		{name: "http error", status: http.StatusNotFound, body: "no such tree", want: http.StatusNotFound},
		{name: "bad json", status: http.StatusOK, body: "{", want: 0},
		{name: "short node", status: http.StatusOK, body: `[{"merkleProof":["0x01"],"value":1}]`, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewAllowlistClient(srv.URL, srv.Client()).Proofs(context.Background(), "tree", buyerAddr)
			require.ErrorIs(t, err, ErrAllowlist)
			var allowErr *AllowlistError
			require.ErrorAs(t, err, &allowErr)
			require.Equal(t, tt.want, allowErr.Status)
		})
	}
}

func TestAllowlistClientRequiresTree(t *testing.T) {
	_, err := NewAllowlistClient("http://localhost", nil).Proofs(context.Background(), "", buyerAddr)
	require.ErrorIs(t, err, ErrInvalidParam)
}
