package memory

import (
	"context"
	"testing"

	"budgetwise/internal/core"
)

func TestExporter(t *testing.T) {
	ctx := context.Background()
	e := New()
	a := core.Transaction{ID: "a"}
	b := core.Transaction{ID: "b"}

	_ = e.AppendTransaction(ctx, "alice", a)
	_ = e.AppendTransaction(ctx, "alice", a)
	_ = e.AppendTransaction(ctx, "alice", b)
	if got := e.Rows("alice"); len(got) != 2 {
		t.Fatalf("rows = %v, want duplicates ignored", got)
	}

	_ = e.DeleteTransaction(ctx, "alice", a)
	if got := e.Rows("alice"); len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("rows after delete = %v", got)
	}

	_ = e.ReplaceLedger(ctx, "alice", core.Ledger{a})
	if got := e.Rows("alice"); len(got) != 1 || got[0].ID != "a" {
		t.Errorf("rows after replace = %v", got)
	}
	if got := e.Rows("bob"); len(got) != 0 {
		t.Errorf("bob rows = %v", got)
	}
}
