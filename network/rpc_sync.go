package network

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/bitfsorg/libwallet-go/wallet"
)

// btcToSat converts a node BTC amount to satoshis, rounding to the nearest unit.
func btcToSat(btc float64) uint64 {
	return uint64(math.Round(btc * 1e8))
}

type listUnspentResult struct {
	TxID          string  `json:"txid"`
	Vout          uint32  `json:"vout"`
	Amount        float64 `json:"amount"`
	ScriptPubKey  string  `json:"scriptPubKey"`
	Address       string  `json:"address"`
	Confirmations int64   `json:"confirmations"`
}

// ListUnspent calls `listunspent 0 9999999 [addrs]`.
func (c *RPCClient) ListUnspent(ctx context.Context, addrs []string) ([]*UTXO, error) {
	params := []interface{}{0, 9999999, addrs}
	var results []listUnspentResult
	if err := c.Call(ctx, "listunspent", params, &results); err != nil {
		return nil, err
	}

	utxos := make([]*UTXO, len(results))
	for i, r := range results {
		utxos[i] = &UTXO{
			TxID:          r.TxID,
			Vout:          r.Vout,
			Amount:        btcToSat(r.Amount),
			ScriptPubKey:  r.ScriptPubKey,
			Address:       r.Address,
			Confirmations: r.Confirmations,
		}
	}
	return utxos, nil
}

// GetBestBlockHeight returns the chain tip height from `getblockcount`.
func (c *RPCClient) GetBestBlockHeight(ctx context.Context) (uint64, error) {
	var raw json.RawMessage
	if err := c.Call(ctx, "getblockcount", nil, &raw); err != nil {
		return 0, err
	}
	var height float64
	if err := json.Unmarshal(raw, &height); err != nil {
		return 0, fmt.Errorf("%w: invalid block height: %v", ErrInvalidResponse, err)
	}
	return uint64(height), nil
}

// NodeSyncClient builds multi-address state from a node's unspent outputs.
// The node only knows its unspent set, so TotalSent is always zero and
// TotalReceived equals FinalBalance. Account xpubs cannot be expanded by the
// node and are skipped.
type NodeSyncClient struct {
	rpc *RPCClient
	net *wallet.NetworkConfig
	log log.FieldLogger
}

var _ SyncClient = (*NodeSyncClient)(nil)

// NewNodeSyncClient wraps rpc. net selects which addresses are accepted.
func NewNodeSyncClient(rpc *RPCClient, net *wallet.NetworkConfig, logger log.FieldLogger) *NodeSyncClient {
	if net == nil {
		net = &wallet.MainNet
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &NodeSyncClient{rpc: rpc, net: net, log: logger.WithField("component", "nodesync")}
}

// FetchMultiAddress implements SyncClient. Every error wraps
// ErrSyncUnavailable.
func (n *NodeSyncClient) FetchMultiAddress(ctx context.Context, addrs []string, limit, offset int) (*wallet.MultiAddressState, error) {
	if err := checkPage(limit, offset); err != nil {
		return nil, syncError(err)
	}

	var query []string
	seen := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		if seen[a] {
			continue
		}
		if err := wallet.ValidateAddress(a, n.net); err != nil {
			n.log.WithField("address", a).Debug("skipping entry the node cannot resolve")
			continue
		}
		seen[a] = true
		query = append(query, a)
	}

	state := &wallet.MultiAddressState{
		Addresses: []wallet.AddressSummary{},
		Txs:       []wallet.TxSummary{},
		Limit:     limit,
		Offset:    offset,
	}
	if len(query) == 0 {
		state.FetchedAt = time.Now().UTC()
		return state, nil
	}

	utxos, err := n.rpc.ListUnspent(ctx, query)
	if err != nil {
		return nil, syncError(err)
	}
	tip, err := n.rpc.GetBestBlockHeight(ctx)
	if err != nil {
		return nil, syncError(err)
	}

	summaries := make(map[string]*wallet.AddressSummary, len(query))
	for _, a := range query {
		summaries[a] = &wallet.AddressSummary{Address: a}
	}
	txs := make(map[string]*wallet.TxSummary)
	txAddrs := make(map[string]map[string]bool)
	for _, u := range utxos {
		s, ok := summaries[u.Address]
		if !ok {
			continue
		}
		s.FinalBalance += u.Amount
		s.TotalReceived += u.Amount
		if txAddrs[u.TxID] == nil {
			txAddrs[u.TxID] = make(map[string]bool)
		}
		if !txAddrs[u.TxID][u.Address] {
			txAddrs[u.TxID][u.Address] = true
			s.NTx++
		}

		tx, ok := txs[u.TxID]
		if !ok {
			tx = &wallet.TxSummary{Hash: u.TxID}
			if u.Confirmations > 0 && uint64(u.Confirmations) <= tip+1 {
				tx.BlockHeight = tip - uint64(u.Confirmations) + 1
			}
			txs[u.TxID] = tx
		}
		tx.Result += int64(u.Amount)
	}

	for _, a := range query {
		s := summaries[a]
		state.Addresses = append(state.Addresses, *s)
		state.FinalBalance += s.FinalBalance
		state.TotalReceived += s.TotalReceived
	}

	all := make([]wallet.TxSummary, 0, len(txs))
	for _, tx := range txs {
		all = append(all, *tx)
	}
	// Unconfirmed first, then newest block first.
	sort.Slice(all, func(i, j int) bool {
		hi, hj := all[i].BlockHeight, all[j].BlockHeight
		if (hi == 0) != (hj == 0) {
			return hi == 0
		}
		if hi != hj {
			return hi > hj
		}
		return all[i].Hash < all[j].Hash
	})
	state.NTx = uint64(len(all))
	state.Txs = page(all, limit, offset)
	state.FetchedAt = time.Now().UTC()
	return state, nil
}
