package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory AccountStore and AssetStore. Increments are
// atomic under the store mutex.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	assets   map[string]*Asset
}

var (
	_ AccountStore = (*MemoryStore)(nil)
	_ AssetStore   = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*Account),
		assets:   make(map[string]*Asset),
	}
}

func (s *MemoryStore) GetAccount(_ context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *acct
	return &cp, nil
}

func (s *MemoryStore) GetAccountByOpenID(_ context.Context, openID string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, acct := range s.accounts {
		if acct.OpenID == openID {
			cp := *acct
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListAccounts(_ context.Context) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		cp := *acct
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (s *MemoryStore) CreateAccount(_ context.Context, acct *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = time.Now().UTC()
	}
	cp := *acct
	s.accounts[acct.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateAccount(_ context.Context, acct *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[acct.ID]; !ok {
		return ErrNotFound
	}
	cp := *acct
	s.accounts[acct.ID] = &cp
	return nil
}

func (s *MemoryStore) IncrementUsage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	acct.Consumed++
	return nil
}

func (s *MemoryStore) CreateAsset(_ context.Context, a *Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	cp := *a
	s.assets[a.ID] = &cp
	return nil
}

func (s *MemoryStore) GetAsset(_ context.Context, id string) (*Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) ListAssets(_ context.Context, opts ListOptions) ([]*Asset, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*Asset
	for _, a := range s.assets {
		if opts.AccountID != "" && a.AccountID != opts.AccountID {
			continue
		}
		cp := *a
		all = append(all, &cp)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	return paginate(all, opts)
}

func (s *MemoryStore) DeleteAsset(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assets[id]; !ok {
		return ErrNotFound
	}
	delete(s.assets, id)
	return nil
}

// paginate slices a newest-first asset list into the requested page.
func paginate(all []*Asset, opts ListOptions) ([]*Asset, int, error) {
	total := len(all)
	page, size := normalizePage(opts)

	start := (page - 1) * size
	if start >= total {
		return nil, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}
