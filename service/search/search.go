package search

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/brojonat/tronlink/service/metrics"
	"github.com/brojonat/tronlink/service/tronscan"
)

// DefaultMaxDepth is the hop bound used when a request leaves it unset.
const DefaultMaxDepth = 3

// TransactionSource returns the outgoing transactions of an address.
// On failure it returns an empty slice together with a non-nil error.
// *tronscan.Client implements it.
type TransactionSource interface {
	Transactions(ctx context.Context, address string) ([]tronscan.Transaction, error)
}

// Searcher runs bounded depth-first connection searches over a
// TransactionSource. One Searcher may be shared by concurrent workers; it
// accumulates the addresses whose fetch failed across all of them.
type Searcher struct {
	source  TransactionSource
	log     *Log
	filter  *Filter
	metrics *metrics.Metrics

	mu     sync.Mutex
	failed map[string]struct{}
}

// NewSearcher creates a Searcher writing progress to log.
// filter and m may be nil.
func NewSearcher(source TransactionSource, log *Log, filter *Filter, m *metrics.Metrics) *Searcher {
	return &Searcher{
		source:  source,
		log:     log,
		filter:  filter,
		metrics: m,
		failed:  make(map[string]struct{}),
	}
}

// Search reports whether target is reachable from source by following
// destination addresses through at most maxDepth transactions.
func (s *Searcher) Search(ctx context.Context, source, target string, maxDepth int) bool {
	return s.Find(ctx, source, target, maxDepth, 1)
}

// Find is one step of the search at the given depth. It returns false
// without fetching anything once depth exceeds maxDepth or ctx is done.
//
// Transactions are examined in the order the source returns them and the
// first match wins, at every level. There is no visited set: depth
// strictly increases on each recursive call, which bounds the work.
func (s *Searcher) Find(ctx context.Context, source, target string, maxDepth, depth int) bool {
	if depth > maxDepth {
		return false
	}
	if ctx.Err() != nil {
		return false
	}

	if s.metrics != nil {
		s.metrics.RecordAddressVisited(strconv.Itoa(depth))
	}

	s.log.Printf("Depth %d: Checking transactions for %s", depth, source)
	txns, err := s.source.Transactions(ctx, source)
	if err != nil && ctx.Err() == nil {
		s.recordFailure(source)
	}
	s.log.Printf("Depth %d: %d transactions found for %s", depth, len(txns), source)

	want := strings.ToLower(target)
	for _, txn := range txns {
		from := strings.ToLower(txn.OwnerAddress)
		to := strings.ToLower(txn.ToAddress)

		s.log.Printf("Depth %d: Checking tx %s from %s to %s", depth, txn.Hash, from, to)

		if to == want {
			s.log.Printf("Depth %d: Direct connection found in tx %s", depth, txn.Hash)
			return true
		}

		if depth < maxDepth && txn.ToAddress != "" && s.follows(depth, txn) &&
			s.Find(ctx, txn.ToAddress, target, maxDepth, depth+1) {
			s.log.Printf("Depth %d: Indirect connection found via %s", depth, to)
			return true
		}
	}

	return false
}

// FailedAddresses returns the sorted addresses whose fetch failed.
// A non-empty result means a negative answer is inconclusive.
func (s *Searcher) FailedAddresses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.failed))
	for addr := range s.failed {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

func (s *Searcher) follows(depth int, txn tronscan.Transaction) bool {
	ok, err := s.filter.Follows(txn)
	if err != nil {
		s.log.Printf("Depth %d: Follow filter failed for tx %s: %v", depth, txn.Hash, err)
		return false
	}
	if !ok {
		s.log.Printf("Depth %d: Not following tx %s (filter %s)", depth, txn.Hash, s.filter)
	}
	return ok
}

func (s *Searcher) recordFailure(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[address] = struct{}{}
}
