// Package quota tracks per-account usage against a capacity.
package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/everstacklabs/inkgen/internal/store"
)

// Unlimited is the remaining-quota encoding for exempt accounts.
const Unlimited = -1

// ErrAccountNotFound is returned by Consume when the account no longer
// exists.
var ErrAccountNotFound = errors.New("quota: account not found")

// Status is the result of a quota check.
type Status struct {
	Allowed   bool
	Remaining int
}

// Ledger reads and advances usage counters through an AccountStore. It holds
// no locks of its own: atomicity of the increment is the store's contract,
// and two concurrent checks may both pass, so a capacity-bound account can
// transiently exceed its nominal capacity. The limit is best-effort.
type Ledger struct {
	accounts store.AccountStore
}

// NewLedger creates a ledger over the given account store.
func NewLedger(accounts store.AccountStore) *Ledger {
	return &Ledger{accounts: accounts}
}

// Check reports whether the account may generate and how much quota remains.
// Remaining is Unlimited (-1) for exempt accounts. An unknown account is not
// allowed and has zero remaining.
func (l *Ledger) Check(ctx context.Context, accountID string) (Status, error) {
	acct, err := l.accounts.GetAccount(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return Status{Allowed: false, Remaining: 0}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("loading account %s: %w", accountID, err)
	}

	if acct.Unlimited {
		return Status{Allowed: true, Remaining: Unlimited}, nil
	}

	remaining := acct.Capacity - acct.Consumed
	return Status{Allowed: remaining > 0, Remaining: remaining}, nil
}

// Consume advances the usage counter by one. It is a no-op for unlimited
// accounts.
func (l *Ledger) Consume(ctx context.Context, accountID string) error {
	acct, err := l.accounts.GetAccount(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return fmt.Errorf("loading account %s: %w", accountID, err)
	}

	if acct.Unlimited {
		return nil
	}

	if err := l.accounts.IncrementUsage(ctx, accountID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
		}
		return fmt.Errorf("incrementing usage for %s: %w", accountID, err)
	}
	return nil
}
