// Package store defines the persistence contracts for accounts and generated
// assets, with in-memory and YAML-file implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/everstacklabs/inkgen/internal/content"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// Account is a usage-entitled user of the generator.
type Account struct {
	ID        string    `yaml:"id"`
	OpenID    string    `yaml:"open_id"`
	Nickname  string    `yaml:"nickname,omitempty"`
	Consumed  int       `yaml:"consumed"`
	Capacity  int       `yaml:"capacity"`
	Unlimited bool      `yaml:"unlimited"`
	CreatedAt time.Time `yaml:"created_at"`
}

// Asset is a persisted generation result.
type Asset struct {
	ID          string       `yaml:"id"`
	AccountID   string       `yaml:"account_id,omitempty"`
	Description string       `yaml:"description"`
	Markup      string       `yaml:"markup"`
	Kind        content.Kind `yaml:"kind"`
	Provider    string       `yaml:"provider"`
	Model       string       `yaml:"model"`
	CreatedAt   time.Time    `yaml:"created_at"`
}

// AccountStore persists accounts. IncrementUsage must be atomic per account;
// the quota ledger depends on that guarantee.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*Account, error)
	GetAccountByOpenID(ctx context.Context, openID string) (*Account, error)
	// ListAccounts returns all accounts newest-first.
	ListAccounts(ctx context.Context) ([]*Account, error)
	CreateAccount(ctx context.Context, acct *Account) error
	UpdateAccount(ctx context.Context, acct *Account) error
	IncrementUsage(ctx context.Context, id string) error
}

// ListOptions controls asset listing. Page is 1-based.
type ListOptions struct {
	AccountID string
	Page      int
	PageSize  int
}

// AssetStore persists generated artifacts.
type AssetStore interface {
	CreateAsset(ctx context.Context, a *Asset) error
	GetAsset(ctx context.Context, id string) (*Asset, error)
	// ListAssets returns a page of assets newest-first plus the total count.
	ListAssets(ctx context.Context, opts ListOptions) ([]*Asset, int, error)
	DeleteAsset(ctx context.Context, id string) error
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func normalizePage(opts ListOptions) (page, size int) {
	page = opts.Page
	if page < 1 {
		page = 1
	}
	size = opts.PageSize
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}
