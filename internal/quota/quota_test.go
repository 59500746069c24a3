package quota

import (
	"context"
	"errors"
	"testing"

	"github.com/everstacklabs/inkgen/internal/store"
)

func newLedgerWith(t *testing.T, accounts ...*store.Account) (*Ledger, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	for _, a := range accounts {
		if err := mem.CreateAccount(context.Background(), a); err != nil {
			t.Fatalf("seeding account: %v", err)
		}
	}
	return NewLedger(mem), mem
}

func TestCheckCapacityBound(t *testing.T) {
	ledger, _ := newLedgerWith(t, &store.Account{ID: "u1", Capacity: 3, Consumed: 0})

	st, err := ledger.Check(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !st.Allowed || st.Remaining != 3 {
		t.Errorf("got %+v, want allowed with remaining 3", st)
	}
}

func TestConsumeExhaustsCapacity(t *testing.T) {
	ledger, _ := newLedgerWith(t, &store.Account{ID: "u1", Capacity: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := ledger.Consume(ctx, "u1"); err != nil {
			t.Fatalf("Consume %d: %v", i+1, err)
		}
	}

	st, err := ledger.Check(ctx, "u1")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if st.Allowed || st.Remaining != 0 {
		t.Errorf("got %+v, want blocked with remaining 0", st)
	}
}

func TestUnlimitedAccount(t *testing.T) {
	ledger, mem := newLedgerWith(t, &store.Account{ID: "vip", Capacity: 3, Unlimited: true})
	ctx := context.Background()

	st, err := ledger.Check(ctx, "vip")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !st.Allowed || st.Remaining != Unlimited {
		t.Errorf("got %+v, want allowed with remaining -1", st)
	}

	for i := 0; i < 5; i++ {
		if err := ledger.Consume(ctx, "vip"); err != nil {
			t.Fatalf("Consume: %v", err)
		}
	}

	acct, err := mem.GetAccount(ctx, "vip")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acct.Consumed != 0 {
		t.Errorf("unlimited account consumed %d, want 0", acct.Consumed)
	}
}

func TestCheckUnknownAccount(t *testing.T) {
	ledger, _ := newLedgerWith(t)

	st, err := ledger.Check(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if st.Allowed || st.Remaining != 0 {
		t.Errorf("got %+v, want blocked with remaining 0", st)
	}
}

func TestConsumeUnknownAccount(t *testing.T) {
	ledger, _ := newLedgerWith(t)

	err := ledger.Consume(context.Background(), "ghost")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("got %v, want ErrAccountNotFound", err)
	}
}
