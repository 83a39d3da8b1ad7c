package test

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// EthNode is an in-process JSON-RPC node speaking the eth_* subset the
// wallet uses. State is mutable under a lock so tests can script node
// behavior (missing methods, rejected broadcasts, delayed receipts).
type EthNode struct {
	ChainID int64

	mu     sync.Mutex
	server *httptest.Server

	nonces      map[common.Address]uint64
	balances    map[common.Address]*big.Int
	baseFee     *big.Int
	tip         *big.Int
	gasPrice    *big.Int
	feeRewards  [][]*big.Int
	estimateGas uint64
	receipts    map[common.Hash]*types.Receipt
	sent        []*types.Transaction
	sendHash    *common.Hash

	// MineOnSend controls whether a successful receipt appears
	// immediately after eth_sendRawTransaction.
	MineOnSend bool

	failMethods map[string]string
}

// StartEthNode starts a fake node with sensible defaults: base fee
// 1 gwei, tip suggestion 2 gwei, gas price 3 gwei, plain-transfer gas
// estimates. The server is torn down with the test.
func StartEthNode(t *testing.T, chainID int64) *EthNode {
	t.Helper()

	n := &EthNode{
		ChainID:     chainID,
		nonces:      make(map[common.Address]uint64),
		balances:    make(map[common.Address]*big.Int),
		baseFee:     big.NewInt(1_000_000_000),
		tip:         big.NewInt(2_000_000_000),
		gasPrice:    big.NewInt(3_000_000_000),
		estimateGas: 21000,
		receipts:    make(map[common.Hash]*types.Receipt),
		MineOnSend:  true,
		failMethods: make(map[string]string),
	}
	n.server = httptest.NewServer(http.HandlerFunc(n.handle))
	t.Cleanup(n.server.Close)
	return n
}

// URL returns the node's HTTP endpoint.
func (n *EthNode) URL() string { return n.server.URL }

// SetBalance sets the balance returned by eth_getBalance.
func (n *EthNode) SetBalance(addr common.Address, wei *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.balances[addr] = new(big.Int).Set(wei)
}

// SetNonce sets the pending nonce for an address.
func (n *EthNode) SetNonce(addr common.Address, nonce uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nonces[addr] = nonce
}

// SetBaseFee sets the latest header's base fee; nil makes the chain
// report no base fee (pre-1559).
func (n *EthNode) SetBaseFee(fee *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.baseFee = fee
}

// SetTip sets the eth_maxPriorityFeePerGas suggestion.
func (n *EthNode) SetTip(tip *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tip = tip
}

// SetGasPrice sets the eth_gasPrice suggestion.
func (n *EthNode) SetGasPrice(price *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.gasPrice = price
}

// SetFeeRewards sets the per-block reward rows served by eth_feeHistory.
func (n *EthNode) SetFeeRewards(rewards [][]*big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.feeRewards = rewards
}

// SetEstimateGas sets the raw eth_estimateGas result.
func (n *EthNode) SetEstimateGas(gas uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.estimateGas = gas
}

// FailMethod makes the given RPC method return an error.
func (n *EthNode) FailMethod(method, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failMethods[method] = message
}

// RestoreMethod removes a scripted method failure.
func (n *EthNode) RestoreMethod(method string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.failMethods, method)
}

// OverrideSendHash makes eth_sendRawTransaction report the given hash
// instead of the transaction's canonical one.
func (n *EthNode) OverrideSendHash(hash common.Hash) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sendHash = &hash
}

// SetReceipt installs a receipt for a hash.
func (n *EthNode) SetReceipt(hash common.Hash, status uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receipts[hash] = newReceipt(hash, status)
}

// SentTransactions returns every transaction accepted so far.
func (n *EthNode) SentTransactions() []*types.Transaction {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*types.Transaction(nil), n.sent...)
}

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (n *EthNode) handle(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, rpcErr := n.dispatch(&req)

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *EthNode) dispatch(req *rpcRequest) (any, *rpcError) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if msg, ok := n.failMethods[req.Method]; ok {
		return nil, &rpcError{Code: -32000, Message: msg}
	}

	switch req.Method {
	case "eth_chainId":
		return hexutil.EncodeUint64(uint64(n.ChainID)), nil

	case "eth_getTransactionCount":
		var addr common.Address
		if err := json.Unmarshal(req.Params[0], &addr); err != nil {
			return nil, &rpcError{Code: -32602, Message: err.Error()}
		}
		return hexutil.EncodeUint64(n.nonces[addr]), nil

	case "eth_getBalance":
		var addr common.Address
		if err := json.Unmarshal(req.Params[0], &addr); err != nil {
			return nil, &rpcError{Code: -32602, Message: err.Error()}
		}
		bal := n.balances[addr]
		if bal == nil {
			bal = new(big.Int)
		}
		return hexutil.EncodeBig(bal), nil

	case "eth_maxPriorityFeePerGas":
		return hexutil.EncodeBig(n.tip), nil

	case "eth_gasPrice":
		return hexutil.EncodeBig(n.gasPrice), nil

	case "eth_feeHistory":
		return n.feeHistoryResult(), nil

	case "eth_getBlockByNumber":
		return json.RawMessage(n.latestHeaderJSON()), nil

	case "eth_estimateGas":
		return hexutil.EncodeUint64(n.estimateGas), nil

	case "eth_sendRawTransaction":
		var raw hexutil.Bytes
		if err := json.Unmarshal(req.Params[0], &raw); err != nil {
			return nil, &rpcError{Code: -32602, Message: err.Error()}
		}
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(raw); err != nil {
			return nil, &rpcError{Code: -32000, Message: fmt.Sprintf("invalid raw transaction: %v", err)}
		}
		n.sent = append(n.sent, tx)
		// emulate the pending pool's view of the sender's nonce
		if from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(n.ChainID)), tx); err == nil {
			if tx.Nonce()+1 > n.nonces[from] {
				n.nonces[from] = tx.Nonce() + 1
			}
		}
		hash := tx.Hash()
		if n.sendHash != nil {
			hash = *n.sendHash
		}
		if n.MineOnSend {
			n.receipts[hash] = newReceipt(hash, types.ReceiptStatusSuccessful)
		}
		return hash, nil

	case "eth_getTransactionReceipt":
		var hash common.Hash
		if err := json.Unmarshal(req.Params[0], &hash); err != nil {
			return nil, &rpcError{Code: -32602, Message: err.Error()}
		}
		receipt, ok := n.receipts[hash]
		if !ok {
			return nil, nil // null result -> ethereum.NotFound on the client
		}
		return receipt, nil

	default:
		return nil, &rpcError{Code: -32601, Message: fmt.Sprintf("the method %s does not exist", req.Method)}
	}
}

func (n *EthNode) feeHistoryResult() map[string]any {
	rewards := n.feeRewards
	result := map[string]any{
		"oldestBlock":  (*hexutil.Big)(big.NewInt(100)),
		"gasUsedRatio": make([]float64, len(rewards)),
	}
	rows := make([][]*hexutil.Big, 0, len(rewards))
	baseFees := make([]*hexutil.Big, 0, len(rewards)+1)
	for _, row := range rewards {
		hexRow := make([]*hexutil.Big, 0, len(row))
		for _, tip := range row {
			hexRow = append(hexRow, (*hexutil.Big)(tip))
		}
		rows = append(rows, hexRow)
		baseFees = append(baseFees, (*hexutil.Big)(n.baseFee))
	}
	result["reward"] = rows
	result["baseFeePerGas"] = baseFees
	return result
}

func (n *EthNode) latestHeaderJSON() []byte {
	header := &types.Header{
		ParentHash: common.HexToHash("0x01"),
		Difficulty: big.NewInt(0),
		Number:     big.NewInt(100),
		GasLimit:   30_000_000,
		GasUsed:    15_000_000,
		Time:       uint64(time.Now().Unix()),
		Extra:      []byte{},
	}
	if n.baseFee != nil {
		header.BaseFee = new(big.Int).Set(n.baseFee)
	}
	out, err := json.Marshal(header)
	if err != nil {
		panic(err)
	}
	return out
}

func newReceipt(hash common.Hash, status uint64) *types.Receipt {
	return &types.Receipt{
		Type:              types.DynamicFeeTxType,
		Status:            status,
		CumulativeGasUsed: 21000,
		Logs:              []*types.Log{},
		TxHash:            hash,
		GasUsed:           21000,
		EffectiveGasPrice: big.NewInt(1_500_000_000),
		BlockHash:         common.HexToHash("0x02"),
		BlockNumber:       big.NewInt(101),
	}
}
