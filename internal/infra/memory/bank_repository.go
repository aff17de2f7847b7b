package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"trivia-session-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// BankLoader fetches question-bank content from a backing store.
type BankLoader interface {
	LoadBank(ctx context.Context, bankID string) (domain.Bank, error)
}

// BankRepository keeps loaded banks in memory until they go stale, so
// the backing store is only hit on a cold or expired entry. Concurrent
// misses for the same bank collapse into a single load.
type BankRepository struct {
	loader BankLoader
	ttl    time.Duration
	clock  func() time.Time
	rnd    *rand.Rand
	sf     singleflight.Group

	mu    sync.RWMutex
	banks map[string]cacheEntry
}

type cacheEntry struct {
	bank    domain.Bank
	staleAt time.Time
}

func NewBankRepository(loader BankLoader, ttl time.Duration) *BankRepository {
	return &BankRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		banks:  make(map[string]cacheEntry),
	}
}

func (r *BankRepository) GetBank(ctx context.Context, bankID string) (domain.Bank, error) {
	if bank, ok := r.fresh(bankID); ok {
		return bank, nil
	}

	result, err, _ := r.sf.Do(bankID, func() (interface{}, error) {
		// another goroutine may have filled the entry while this one
		// waited on the flight
		if bank, ok := r.fresh(bankID); ok {
			return bank, nil
		}
		bank, err := r.loader.LoadBank(ctx, bankID)
		if err != nil {
			return domain.Bank{}, err
		}
		r.store(bankID, bank)
		return bank, nil
	})
	if err != nil {
		return domain.Bank{}, err
	}
	return result.(domain.Bank), nil
}

func (r *BankRepository) fresh(bankID string) (domain.Bank, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.banks[bankID]
	if !ok || r.clock().After(entry.staleAt) {
		return domain.Bank{}, false
	}
	return entry.bank, true
}

func (r *BankRepository) store(bankID string, bank domain.Bank) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.banks[bankID] = cacheEntry{bank: bank, staleAt: r.clock().Add(r.ttlWithJitter())}
}

// ttlWithJitter spreads expirations by up to 10% so entries loaded
// together do not all go stale together.
func (r *BankRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	return r.ttl + time.Duration(r.rnd.Int63n(int64(r.ttl)/10+1))
}

// StaticBankLoader serves banks from a fixed in-memory set; the
// compiled-in default bank ships through one.
type StaticBankLoader map[string]domain.Bank

func NewStaticBankLoader(banks map[string]domain.Bank) StaticBankLoader {
	return StaticBankLoader(banks)
}

func (l StaticBankLoader) LoadBank(_ context.Context, bankID string) (domain.Bank, error) {
	bank, ok := l[bankID]
	if !ok {
		return domain.Bank{}, domain.ErrBankNotFound
	}
	return bank, nil
}
