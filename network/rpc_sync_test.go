package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	genesisAddr = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
	keyOneAddr  = "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH"
	accountXPub = "xpub6BosfCnifzxcFwrSzQiqu2DBVTshkCXacvNsWGYJVVhhawA7d4R5WSWGFNbi8Aw6ZRc1brxMyWMzG3DSSSSoekkudhUd9yLb6qx39T9nMdj"
)

type rpcHandler func(params []interface{}) (interface{}, *rpcError)

// rpcTestServer answers JSON-RPC requests from handlers keyed by method.
func rpcTestServer(t *testing.T, handlers map[string]rpcHandler) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		handler, ok := handlers[req.Method]
		if !ok {
			t.Errorf("unexpected RPC method: %s", req.Method)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		result, rpcErr := handler(req.Params)
		resp := rpcResponse{ID: req.ID}
		if rpcErr != nil {
			resp.Error = rpcErr
			w.WriteHeader(http.StatusInternalServerError)
		} else {
			resp.Result, _ = json.Marshal(result)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestListUnspent(t *testing.T) {
	server := rpcTestServer(t, map[string]rpcHandler{
		"listunspent": func(params []interface{}) (interface{}, *rpcError) {
			require.Len(t, params, 3)
			assert.Equal(t, float64(0), params[0])
			assert.Equal(t, float64(9999999), params[1])
			assert.Equal(t, []interface{}{genesisAddr}, params[2])

			return []map[string]interface{}{
				{"txid": "aa", "vout": 0, "amount": 0.001, "address": genesisAddr, "confirmations": 6},
				{"txid": "bb", "vout": 1, "amount": 1.5, "address": genesisAddr, "confirmations": 0},
			}, nil
		},
	})
	defer server.Close()

	client := NewRPCClient(RPCConfig{URL: server.URL})
	utxos, err := client.ListUnspent(context.Background(), []string{genesisAddr})
	require.NoError(t, err)
	require.Len(t, utxos, 2)
	assert.Equal(t, uint64(100000), utxos[0].Amount)
	assert.Equal(t, int64(6), utxos[0].Confirmations)
	assert.Equal(t, uint64(150000000), utxos[1].Amount)
}

func TestGetBestBlockHeight(t *testing.T) {
	server := rpcTestServer(t, map[string]rpcHandler{
		"getblockcount": func([]interface{}) (interface{}, *rpcError) { return 850000, nil },
	})
	defer server.Close()

	h, err := NewRPCClient(RPCConfig{URL: server.URL}).GetBestBlockHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(850000), h)
}

func TestNodeSyncClient_FetchMultiAddress(t *testing.T) {
	server := rpcTestServer(t, map[string]rpcHandler{
		"listunspent": func(params []interface{}) (interface{}, *rpcError) {
			assert.Equal(t, []interface{}{genesisAddr, keyOneAddr}, params[2], "xpub must not reach the node")
			return []map[string]interface{}{
				{"txid": "t1", "vout": 0, "amount": 0.5, "address": genesisAddr, "confirmations": 10},
				{"txid": "t1", "vout": 1, "amount": 0.25, "address": keyOneAddr, "confirmations": 10},
				{"txid": "t2", "vout": 0, "amount": 1.0, "address": genesisAddr, "confirmations": 1},
				{"txid": "t3", "vout": 0, "amount": 0.1, "address": keyOneAddr, "confirmations": 0},
			}, nil
		},
		"getblockcount": func([]interface{}) (interface{}, *rpcError) { return 100, nil },
	})
	defer server.Close()

	sc := NewNodeSyncClient(NewRPCClient(RPCConfig{URL: server.URL}), nil, nil)
	state, err := sc.FetchMultiAddress(context.Background(), []string{accountXPub, genesisAddr, keyOneAddr}, 50, 0)
	require.NoError(t, err)

	assert.Equal(t, uint64(185000000), state.FinalBalance)
	assert.Equal(t, state.FinalBalance, state.TotalReceived)
	assert.Equal(t, uint64(3), state.NTx)
	require.Len(t, state.Addresses, 2)

	g := state.Summary(genesisAddr)
	require.NotNil(t, g)
	assert.Equal(t, uint64(150000000), g.FinalBalance)
	assert.Equal(t, uint64(2), g.NTx)

	require.Len(t, state.Txs, 3)
	assert.Equal(t, "t3", state.Txs[0].Hash, "unconfirmed first")
	assert.Equal(t, uint64(0), state.Txs[0].BlockHeight)
	assert.Equal(t, "t2", state.Txs[1].Hash)
	assert.Equal(t, uint64(100), state.Txs[1].BlockHeight)
	assert.Equal(t, "t1", state.Txs[2].Hash)
	assert.Equal(t, uint64(91), state.Txs[2].BlockHeight)
	assert.Equal(t, int64(75000000), state.Txs[2].Result)

	paged, err := sc.FetchMultiAddress(context.Background(), []string{genesisAddr, keyOneAddr}, 1, 1)
	require.NoError(t, err)
	require.Len(t, paged.Txs, 1)
	assert.Equal(t, "t2", paged.Txs[0].Hash)
	assert.Equal(t, 1, paged.Limit)
	assert.Equal(t, 1, paged.Offset)
}

func TestNodeSyncClient_DuplicateAddresses(t *testing.T) {
	server := rpcTestServer(t, map[string]rpcHandler{
		"listunspent": func(params []interface{}) (interface{}, *rpcError) {
			assert.Equal(t, []interface{}{genesisAddr}, params[2])
			return []map[string]interface{}{
				{"txid": "t1", "vout": 0, "amount": 0.5, "address": genesisAddr, "confirmations": 1},
			}, nil
		},
		"getblockcount": func([]interface{}) (interface{}, *rpcError) { return 100, nil },
	})
	defer server.Close()

	sc := NewNodeSyncClient(NewRPCClient(RPCConfig{URL: server.URL}), nil, nil)
	state, err := sc.FetchMultiAddress(context.Background(), []string{genesisAddr, genesisAddr}, 50, 0)
	require.NoError(t, err)

	require.Len(t, state.Addresses, 1)
	assert.Equal(t, uint64(50000000), state.FinalBalance)
	assert.Equal(t, uint64(1), state.NTx)
	require.Len(t, state.Txs, 1)
	assert.Equal(t, int64(50000000), state.Txs[0].Result)
}

func TestNodeSyncClient_OnlyXPubs(t *testing.T) {
	sc := NewNodeSyncClient(NewRPCClient(RPCConfig{URL: "http://localhost:1"}), nil, nil)
	state, err := sc.FetchMultiAddress(context.Background(), []string{accountXPub}, 50, 0)
	require.NoError(t, err)
	assert.Empty(t, state.Addresses)
	assert.Empty(t, state.Txs)
}

func TestNodeSyncClient_Errors(t *testing.T) {
	server := rpcTestServer(t, map[string]rpcHandler{
		"listunspent": func([]interface{}) (interface{}, *rpcError) {
			return nil, &rpcError{Code: -18, Message: "Requested wallet does not exist"}
		},
	})
	defer server.Close()

	sc := NewNodeSyncClient(NewRPCClient(RPCConfig{URL: server.URL}), nil, nil)
	_, err := sc.FetchMultiAddress(context.Background(), []string{genesisAddr}, 50, 0)
	assert.ErrorIs(t, err, ErrSyncUnavailable)
	assert.Contains(t, err.Error(), "Requested wallet does not exist")

	_, err = sc.FetchMultiAddress(context.Background(), []string{genesisAddr}, 0, 0)
	assert.ErrorIs(t, err, ErrSyncUnavailable)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
