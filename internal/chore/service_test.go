package chore

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/chorechart/internal/database"
	"github.com/dukerupert/chorechart/internal/model"
	"github.com/dukerupert/chorechart/internal/store"
	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2026, 3, 14, 16, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *Service
	users  *store.UserStore
	chores *store.ChoreStore
	child  *model.User
	parent *model.User
	chore  *model.Chore
}

func setupService(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		users:  store.NewUserStore(db),
		chores: store.NewChoreStore(db),
	}
	f.svc = NewService(f.users, f.chores, store.NewCompletionStore(db), slog.Default(),
		WithClock(func() time.Time { return fixedNow }))

	f.child, _ = f.users.Create("Sarah", model.UserTypeChild, "")
	f.parent, _ = f.users.Create("Parent", model.UserTypeParent, "1234")
	f.chore, err = f.chores.Create("Wash Dishes", decimal.RequireFromString("3.00"), true)
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	return f
}

// submitted starts and completes the fixture chore.
func (f *fixture) submitted(t *testing.T) *model.Completion {
	t.Helper()
	c, err := f.svc.Start(f.child.ID, f.chore.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	c, err = f.svc.Complete(c.ID, "proofs/dishes.jpg")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	return c
}

func TestStart(t *testing.T) {
	f := setupService(t)

	c, err := f.svc.Start(f.child.ID, f.chore.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if c.Status != model.StatusInProgress {
		t.Errorf("status = %q, want %q", c.Status, model.StatusInProgress)
	}
	if !c.AmountEarned.Equal(decimal.NewFromInt(3)) {
		t.Errorf("amount = %s, want 3", c.AmountEarned)
	}
	if !c.StartedAt.Equal(fixedNow) {
		t.Errorf("started_at = %v, want %v", c.StartedAt, fixedNow)
	}
}

func TestStartFailures(t *testing.T) {
	f := setupService(t)
	inactive, _ := f.chores.Create("Mow Lawn", decimal.NewFromInt(10), false)

	tests := []struct {
		name    string
		childID int64
		choreID int64
		want    error
	}{
		{"missing chore", f.child.ID, 9999, ErrChoreNotFound},
		{"inactive chore", f.child.ID, inactive.ID, ErrChoreInactive},
		{"missing user", 9999, f.chore.ID, ErrUserNotFound},
		{"parent", f.parent.ID, f.chore.ID, ErrNotChild},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := f.svc.Start(tt.childID, tt.choreID)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if c != nil {
				t.Errorf("expected no completion, got %+v", c)
			}
		})
	}
}

func TestAmountFrozenAtStart(t *testing.T) {
	f := setupService(t)

	c, _ := f.svc.Start(f.child.ID, f.chore.ID)
	f.chores.Update(f.chore.ID, f.chore.Name, decimal.NewFromInt(7), true)
	c, _ = f.svc.Complete(c.ID, "")
	approved, err := f.svc.Approve(c.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !approved.AmountEarned.Equal(decimal.NewFromInt(3)) {
		t.Errorf("amount = %s, want 3", approved.AmountEarned)
	}

	bal, _ := f.svc.Balance(f.child.ID)
	if !bal.Equal(decimal.NewFromInt(3)) {
		t.Errorf("balance = %s, want 3", bal)
	}
}

func TestApprove(t *testing.T) {
	f := setupService(t)
	c := f.submitted(t)

	approved, err := f.svc.Approve(c.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != model.StatusApproved {
		t.Errorf("status = %q, want %q", approved.Status, model.StatusApproved)
	}
	if approved.ApprovedAt == nil || !approved.ApprovedAt.Equal(fixedNow) {
		t.Errorf("approved_at = %v, want %v", approved.ApprovedAt, fixedNow)
	}

	if _, err := f.svc.Approve(c.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second approve err = %v, want ErrInvalidTransition", err)
	}
	bal, _ := f.svc.Balance(f.child.ID)
	if !bal.Equal(decimal.NewFromInt(3)) {
		t.Errorf("balance = %s, want 3", bal)
	}
}

func TestApproveNotFound(t *testing.T) {
	f := setupService(t)

	if _, err := f.svc.Approve(9999); !errors.Is(err, ErrCompletionNotFound) {
		t.Errorf("err = %v, want ErrCompletionNotFound", err)
	}
	if _, err := f.svc.Complete(9999, ""); !errors.Is(err, ErrCompletionNotFound) {
		t.Errorf("complete err = %v, want ErrCompletionNotFound", err)
	}
}

func TestApproveBeforeComplete(t *testing.T) {
	f := setupService(t)
	c, _ := f.svc.Start(f.child.ID, f.chore.ID)

	if _, err := f.svc.Approve(c.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestReject(t *testing.T) {
	f := setupService(t)
	c := f.submitted(t)

	rejected, err := f.svc.Reject(c.ID)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != model.StatusRejected {
		t.Errorf("status = %q, want %q", rejected.Status, model.StatusRejected)
	}
	bal, _ := f.svc.Balance(f.child.ID)
	if !bal.IsZero() {
		t.Errorf("balance = %s, want 0", bal)
	}
}

func TestPayout(t *testing.T) {
	f := setupService(t)
	for i := 0; i < 3; i++ {
		c := f.submitted(t)
		if _, err := f.svc.Approve(c.ID); err != nil {
			t.Fatalf("approve: %v", err)
		}
	}
	pending := f.submitted(t)

	paid, err := f.svc.Payout(f.child.ID)
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	if !paid.Equal(decimal.NewFromInt(9)) {
		t.Errorf("paid = %s, want 9", paid)
	}
	bal, _ := f.svc.Balance(f.child.ID)
	if !bal.IsZero() {
		t.Errorf("balance = %s, want 0", bal)
	}

	d, err := f.svc.Detail(pending.ID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if d.Status != model.StatusCompleted || d.ChoreName != "Wash Dishes" {
		t.Errorf("pending completion = %+v", d)
	}
}

func TestPayoutAndBalanceRequireChild(t *testing.T) {
	f := setupService(t)

	if _, err := f.svc.Payout(f.parent.ID); !errors.Is(err, ErrNotChild) {
		t.Errorf("payout parent err = %v, want ErrNotChild", err)
	}
	if _, err := f.svc.Payout(9999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("payout missing err = %v, want ErrUserNotFound", err)
	}
	if _, err := f.svc.Balance(9999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("balance missing err = %v, want ErrUserNotFound", err)
	}
}

func TestDetailNotFound(t *testing.T) {
	f := setupService(t)

	if _, err := f.svc.Detail(9999); !errors.Is(err, ErrCompletionNotFound) {
		t.Errorf("err = %v, want ErrCompletionNotFound", err)
	}
}
