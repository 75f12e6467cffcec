package http

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/PriyanKishoreMS/transmyaction-dash/internal/cache"
	"github.com/PriyanKishoreMS/transmyaction-dash/internal/core"
	"github.com/PriyanKishoreMS/transmyaction-dash/internal/log"
)

// TransactionSource fetches transaction lists from the ledger service.
type TransactionSource interface {
	TransactionsByMonth(ctx context.Context, email string, year int, month time.Month) ([]core.Transaction, error)
	TransactionsLastWeek(ctx context.Context, email string) ([]core.Transaction, error)
	TransactionsByRange(ctx context.Context, email string, from, to time.Time) ([]core.Transaction, error)
}

// Loader serves transaction lists through an LRU cache. Identical
// in-flight fetches are collapsed, and a generation counter keeps
// fetches that started before an invalidation from repopulating the
// cache with stale data.
type Loader struct {
	source TransactionSource
	cache  *cache.LRUCache[[]core.Transaction]
	logger *log.Logger

	group      singleflight.Group
	generation atomic.Uint64
}

func NewLoader(source TransactionSource, maxEntries int, ttl time.Duration, logger *log.Logger) *Loader {
	return &Loader{
		source: source,
		cache:  cache.NewLRUCache[[]core.Transaction](maxEntries, ttl),
		logger: logger.WithComponent(log.ComponentLoader),
	}
}

// Transactions returns the records selected by the filter, from cache
// when possible.
func (l *Loader) Transactions(ctx context.Context, email string, f Filter) ([]core.Transaction, error) {
	key := f.Key(email)

	if txns, found := l.cache.Get(key); found {
		l.logger.DebugContext(ctx, "Transaction cache hit",
			log.FieldCacheKey, key,
			log.FieldTxnCount, len(txns))
		return copyTxns(txns), nil
	}

	gen := l.generation.Load()
	v, err, shared := l.group.Do(key, func() (interface{}, error) {
		txns, err := l.fetch(ctx, email, f)
		if err != nil {
			return nil, err
		}

		// A submission may have invalidated the cache while this fetch
		// was in flight; its result is served but not cached.
		if l.generation.Load() == gen {
			l.cache.Set(key, txns)
		} else {
			l.logger.DebugContext(ctx, "Discarding stale fetch result",
				log.FieldCacheKey, key,
				log.FieldGeneration, gen)
		}
		return txns, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		l.logger.DebugContext(ctx, "Fetch shared with concurrent caller",
			log.FieldCacheKey, key)
	}

	return copyTxns(v.([]core.Transaction)), nil
}

func (l *Loader) fetch(ctx context.Context, email string, f Filter) ([]core.Transaction, error) {
	switch f.Period {
	case PeriodWeek:
		return l.source.TransactionsLastWeek(ctx, email)
	case PeriodCustom:
		return l.source.TransactionsByRange(ctx, email, f.From, f.To)
	case PeriodMonthly:
		return l.source.TransactionsByMonth(ctx, email, f.Year, f.Month)
	default:
		return nil, fmt.Errorf("unknown period %q", f.Period)
	}
}

// Invalidate drops every cached list and bumps the generation so
// in-flight fetches cannot write stale data back.
func (l *Loader) Invalidate() {
	l.generation.Add(1)
	l.cache.Clear()
}

// CleanExpired removes expired cache entries.
func (l *Loader) CleanExpired() int {
	return l.cache.CleanExpired()
}

// CacheStats reports cache entry count and hit/miss totals.
func (l *Loader) CacheStats() cache.Stats {
	return l.cache.Stats()
}

// Cached lists are shared between callers; hand out copies so one
// request cannot mutate another's view.
func copyTxns(txns []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, len(txns))
	copy(out, txns)
	return out
}
