package deposit

import (
	"sync"
	"time"
)

// MemoryStore implements Store with an in-memory, mutex-guarded map.
// It is the default store when no durable driver is configured and
// the one used by unit tests across internal/ingest and internal/confirm.
type MemoryStore struct {
	mu       sync.RWMutex
	byTxHash map[string]*Deposit
	nextID   int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byTxHash: make(map[string]*Deposit),
	}
}

// FindByTxHash implements Store.
func (s *MemoryStore) FindByTxHash(txHash string) (*Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.byTxHash[txHash]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

// Save implements Store. Uniqueness on TxHash is the dedup point
// (spec.md §9 "at-least-once to effectively-once"): the first writer
// for a given hash wins, every later Save for the same new row returns
// ErrDuplicateTxHash instead of clobbering it.
func (s *MemoryStore) Save(d *Deposit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byTxHash[d.TxHash]
	if !ok {
		if d.ID == 0 {
			s.nextID++
			d.ID = s.nextID
		}
		d.UpdatedAt = time.Now()
		cp := *d
		s.byTxHash[d.TxHash] = &cp
		return nil
	}

	if d.ID == 0 {
		// Caller is trying to insert a row that already exists.
		return ErrDuplicateTxHash
	}

	// C5 writes are restricted to status and confirmation fields
	// (spec.md §4.2); carry the rest forward from the existing row.
	d.ID = existing.ID
	d.TxHash = existing.TxHash
	d.MonitoredAddress = existing.MonitoredAddress
	d.UserAddress = existing.UserAddress
	d.Chain = existing.Chain
	d.TokenAddress = existing.TokenAddress
	d.Asset = existing.Asset
	d.Amount = existing.Amount
	d.Decimals = existing.Decimals
	d.BlockNumber = existing.BlockNumber
	d.CreatedAt = existing.CreatedAt
	d.UpdatedAt = time.Now()

	cp := *d
	s.byTxHash[d.TxHash] = &cp
	return nil
}

// FindPending implements Store.
func (s *MemoryStore) FindPending() ([]*Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Deposit, 0)
	for _, d := range s.byTxHash {
		if d.Status == StatusUnconfirmed || d.Status == StatusConfirming {
			cp := *d
			result = append(result, &cp)
		}
	}
	return result, nil
}
