package search

import (
	"fmt"

	"github.com/brojonat/tronlink/service/tronscan"
	"github.com/itchyny/gojq"
)

// Filter decides which transactions the search follows into their
// destination. It is a jq expression evaluated against the raw transaction
// object; a transaction is followed when the first result is truthy.
type Filter struct {
	expr string
	code *gojq.Code
}

// NewFilter compiles expr. An empty expression yields a nil Filter, which
// follows every transaction.
func NewFilter(expr string) (*Filter, error) {
	if expr == "" {
		return nil, nil
	}

	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
	}

	return &Filter{expr: expr, code: code}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Follows reports whether txn passes the filter. A nil Filter follows everything.
func (f *Filter) Follows(txn tronscan.Transaction) (bool, error) {
	if f == nil {
		return true, nil
	}

	input := txn.Raw
	if input == nil {
		input = map[string]any{
			"hash":         txn.Hash,
			"ownerAddress": txn.OwnerAddress,
			"toAddress":    txn.ToAddress,
			"amount":       txn.Amount,
		}
	}

	iter := f.code.Run(input)
	v, ok := iter.Next()
	if !ok {
		return false, nil
	}
	if err, isErr := v.(error); isErr {
		return false, fmt.Errorf("jq filter %q: %w", f.expr, err)
	}
	return isTruthy(v), nil
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}
