package tronscan

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Order is the sort order of a transaction history query.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

const (
	// DefaultEnd is the upper bound of the query time window used when none is given.
	DefaultEnd int64 = 99999999

	// DefaultLimit is the page size used when none is given.
	DefaultLimit = 100
)

// Query identifies one page of an address's transaction history.
// It is comparable and doubles as the memoization key.
type Query struct {
	Address string
	Start   int64
	End     int64
	Page    int
	Limit   int
	Order   Order
}

// DefaultQuery returns the query for the first ascending page of address.
func DefaultQuery(address string) Query {
	return Query{
		Address: address,
		Start:   0,
		End:     DefaultEnd,
		Page:    1,
		Limit:   DefaultLimit,
		Order:   OrderAsc,
	}
}

func (q Query) key() string {
	return fmt.Sprintf("%s|%d|%d|%d|%d|%s", q.Address, q.Start, q.End, q.Page, q.Limit, q.Order)
}

// Transaction represents a TRON transaction as reported by the explorer.
// This is our domain model, independent of the API response format.
type Transaction struct {
	Hash         string
	OwnerAddress string    // origin
	ToAddress    string    // destination, empty for some contract calls
	Amount       string    // raw amount in the smallest unit, as reported
	Timestamp    time.Time // zero if the explorer omitted it

	// Raw is the transaction object exactly as decoded from the response.
	// Follow filters are evaluated against it.
	Raw map[string]any
}

// transactionResponse is the API response envelope.
// A missing "data" field means the explorer rejected the query.
type transactionResponse struct {
	Data  *[]json.RawMessage `json:"data"`
	Total int64              `json:"total"`
	Error json.RawMessage    `json:"error"`
}

// wireTransaction is the subset of a transaction object we read.
type wireTransaction struct {
	Hash         string          `json:"hash"`
	OwnerAddress string          `json:"ownerAddress"`
	ToAddress    string          `json:"toAddress"`
	Amount       json.RawMessage `json:"amount"`
	Timestamp    int64           `json:"timestamp"`
}

// parseTransaction converts one raw transaction object to the domain model.
func parseTransaction(raw json.RawMessage) (Transaction, error) {
	var wire wireTransaction
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Transaction{}, fmt.Errorf("failed to decode transaction: %w", err)
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Transaction{}, fmt.Errorf("failed to decode transaction object: %w", err)
	}

	txn := Transaction{
		Hash:         wire.Hash,
		OwnerAddress: wire.OwnerAddress,
		ToAddress:    wire.ToAddress,
		Amount:       amountString(wire.Amount),
		Raw:          obj,
	}
	if wire.Timestamp > 0 {
		txn.Timestamp = time.UnixMilli(wire.Timestamp).UTC()
	}
	return txn, nil
}

// amountString accepts the amount either as a JSON number or a quoted string.
func amountString(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	return strings.Trim(s, `"`)
}

// errorMessage renders the explorer's "error" field, which is usually a
// string but occasionally an object.
func errorMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "response has no data field"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
