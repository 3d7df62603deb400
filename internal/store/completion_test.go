package store

import (
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/chorechart/internal/model"
	"github.com/shopspring/decimal"
)

type ledgerFixture struct {
	users       *UserStore
	chores      *ChoreStore
	completions *CompletionStore
	child       *model.User
	chore       *model.Chore
}

func setupLedger(t *testing.T) *ledgerFixture {
	t.Helper()
	db := openTestDB(t)
	f := &ledgerFixture{
		users:       NewUserStore(db),
		chores:      NewChoreStore(db),
		completions: NewCompletionStore(db),
	}

	var err error
	f.child, err = f.users.Create("Sarah", model.UserTypeChild, "")
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	f.chore, err = f.chores.Create("Clean Bedroom", decimal.RequireFromString("5.00"), true)
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	return f
}

// completed creates a completion and moves it to COMPLETED.
func (f *ledgerFixture) completed(t *testing.T) *model.Completion {
	t.Helper()
	c, err := f.completions.Create(f.child.ID, f.chore.ID, f.chore.Reward, time.Now())
	if err != nil {
		t.Fatalf("create completion: %v", err)
	}
	c, err = f.completions.Complete(c.ID, "/proofs/photo.jpg")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	return c
}

func (f *ledgerFixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	u, err := f.users.GetByID(f.child.ID)
	if err != nil || u == nil {
		t.Fatalf("get child: %v", err)
	}
	return u.Balance
}

func TestCompletionCreate(t *testing.T) {
	f := setupLedger(t)
	started := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	c, err := f.completions.Create(f.child.ID, f.chore.ID, f.chore.Reward, started)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Status != model.StatusInProgress {
		t.Errorf("status = %q, want %q", c.Status, model.StatusInProgress)
	}
	if !c.AmountEarned.Equal(decimal.NewFromInt(5)) {
		t.Errorf("amount = %s, want 5", c.AmountEarned)
	}
	if !c.StartedAt.Equal(started) {
		t.Errorf("started_at = %v, want %v", c.StartedAt, started)
	}
	if c.PicturePath != nil {
		t.Errorf("picture_path = %q, want nil", *c.PicturePath)
	}
	if c.ApprovedAt != nil {
		t.Errorf("approved_at = %v, want nil", *c.ApprovedAt)
	}
}

func TestCompletionAmountSurvivesRewardEdit(t *testing.T) {
	f := setupLedger(t)

	c, _ := f.completions.Create(f.child.ID, f.chore.ID, f.chore.Reward, time.Now())
	if _, err := f.chores.Update(f.chore.ID, f.chore.Name, decimal.RequireFromString("9.99"), true); err != nil {
		t.Fatalf("update chore: %v", err)
	}

	got, _ := f.completions.GetByID(c.ID)
	if !got.AmountEarned.Equal(decimal.NewFromInt(5)) {
		t.Errorf("amount = %s after reward edit, want 5", got.AmountEarned)
	}
}

func TestCompletionComplete(t *testing.T) {
	f := setupLedger(t)

	c := f.completed(t)
	if c.Status != model.StatusCompleted {
		t.Errorf("status = %q, want %q", c.Status, model.StatusCompleted)
	}
	if c.PicturePath == nil || *c.PicturePath != "/proofs/photo.jpg" {
		t.Errorf("picture_path = %v, want /proofs/photo.jpg", c.PicturePath)
	}
}

func TestCompletionCompleteAcceptsEmptyPath(t *testing.T) {
	f := setupLedger(t)

	c, _ := f.completions.Create(f.child.ID, f.chore.ID, f.chore.Reward, time.Now())
	got, err := f.completions.Complete(c.ID, "")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Status != model.StatusCompleted {
		t.Errorf("status = %q, want %q", got.Status, model.StatusCompleted)
	}
}

func TestCompletionCompleteTwice(t *testing.T) {
	f := setupLedger(t)

	c := f.completed(t)
	if _, err := f.completions.Complete(c.ID, "/other.jpg"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestCompletionCompleteNotFound(t *testing.T) {
	f := setupLedger(t)

	if _, err := f.completions.Complete(9999, "/x.jpg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestApproveCreditsBalance(t *testing.T) {
	f := setupLedger(t)
	c := f.completed(t)
	at := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

	got, err := f.completions.Approve(c.ID, at)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got.Status != model.StatusApproved {
		t.Errorf("status = %q, want %q", got.Status, model.StatusApproved)
	}
	if got.ApprovedAt == nil || !got.ApprovedAt.Equal(at) {
		t.Errorf("approved_at = %v, want %v", got.ApprovedAt, at)
	}
	if b := f.balance(t); !b.Equal(decimal.NewFromInt(5)) {
		t.Errorf("balance = %s, want 5", b)
	}
}

func TestApproveTwiceDoesNotDoubleCredit(t *testing.T) {
	f := setupLedger(t)
	c := f.completed(t)

	if _, err := f.completions.Approve(c.ID, time.Now()); err != nil {
		t.Fatalf("first approve: %v", err)
	}
	if _, err := f.completions.Approve(c.ID, time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second approve err = %v, want ErrInvalidTransition", err)
	}
	if b := f.balance(t); !b.Equal(decimal.NewFromInt(5)) {
		t.Errorf("balance = %s, want 5", b)
	}
}

func TestApproveInProgressRejected(t *testing.T) {
	f := setupLedger(t)
	c, _ := f.completions.Create(f.child.ID, f.chore.ID, f.chore.Reward, time.Now())

	if _, err := f.completions.Approve(c.ID, time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
	if b := f.balance(t); !b.IsZero() {
		t.Errorf("balance = %s, want 0", b)
	}
}

func TestApproveNotFound(t *testing.T) {
	f := setupLedger(t)

	if _, err := f.completions.Approve(9999, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestApproveRollsBackWhenCreditFails(t *testing.T) {
	f := setupLedger(t)
	c := f.completed(t)

	// Make the balance write fail after the status write has succeeded.
	if _, err := f.users.db.Exec(`
		CREATE TRIGGER block_balance BEFORE UPDATE OF allowance_balance ON users
		BEGIN SELECT RAISE(ABORT, 'balance locked'); END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	if _, err := f.completions.Approve(c.ID, time.Now()); err == nil {
		t.Fatal("expected approve to fail")
	}

	got, _ := f.completions.GetByID(c.ID)
	if got.Status != model.StatusCompleted {
		t.Errorf("status = %q after failed approve, want %q", got.Status, model.StatusCompleted)
	}
	if got.ApprovedAt != nil {
		t.Errorf("approved_at = %v after failed approve, want nil", *got.ApprovedAt)
	}
}

func TestRejectLeavesBalance(t *testing.T) {
	f := setupLedger(t)
	c := f.completed(t)

	got, err := f.completions.Reject(c.ID)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.Status != model.StatusRejected {
		t.Errorf("status = %q, want %q", got.Status, model.StatusRejected)
	}
	if got.ApprovedAt != nil {
		t.Error("rejected completion should have no approval time")
	}
	if b := f.balance(t); !b.IsZero() {
		t.Errorf("balance = %s, want 0", b)
	}

	if _, err := f.completions.Approve(c.ID, time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("approve after reject err = %v, want ErrInvalidTransition", err)
	}
}

func TestPayout(t *testing.T) {
	f := setupLedger(t)

	a1 := f.completed(t)
	a2 := f.completed(t)
	f.completions.Approve(a1.ID, time.Now())
	f.completions.Approve(a2.ID, time.Now())

	pending := f.completed(t)
	rejected := f.completed(t)
	f.completions.Reject(rejected.ID)
	inProgress, _ := f.completions.Create(f.child.ID, f.chore.ID, f.chore.Reward, time.Now())

	paid, err := f.completions.Payout(f.child.ID)
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	if !paid.Equal(decimal.NewFromInt(10)) {
		t.Errorf("paid = %s, want 10", paid)
	}
	if b := f.balance(t); !b.Equal(decimal.Zero) {
		t.Errorf("balance = %s, want 0", b)
	}

	for _, id := range []int64{a1.ID, a2.ID} {
		if got, _ := f.completions.GetByID(id); got != nil {
			t.Errorf("approved completion %d should be purged", id)
		}
	}
	for _, id := range []int64{pending.ID, rejected.ID, inProgress.ID} {
		if got, _ := f.completions.GetByID(id); got == nil {
			t.Errorf("completion %d should survive payout", id)
		}
	}
}

func TestPayoutOnlyTouchesOneChild(t *testing.T) {
	f := setupLedger(t)
	other, _ := f.users.Create("Michael", model.UserTypeChild, "")

	c := f.completed(t)
	f.completions.Approve(c.ID, time.Now())

	oc, _ := f.completions.Create(other.ID, f.chore.ID, f.chore.Reward, time.Now())
	f.completions.Complete(oc.ID, "")
	f.completions.Approve(oc.ID, time.Now())

	if _, err := f.completions.Payout(f.child.ID); err != nil {
		t.Fatalf("payout: %v", err)
	}

	u, _ := f.users.GetByID(other.ID)
	if !u.Balance.Equal(decimal.NewFromInt(5)) {
		t.Errorf("other balance = %s, want 5", u.Balance)
	}
	if got, _ := f.completions.GetByID(oc.ID); got == nil {
		t.Error("other child's approved completion should survive")
	}
}

func TestPayoutNotFound(t *testing.T) {
	f := setupLedger(t)
	parent, _ := f.users.Create("Parent", model.UserTypeParent, "1234")

	if _, err := f.completions.Payout(9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing child err = %v, want ErrNotFound", err)
	}
	if _, err := f.completions.Payout(parent.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("parent payout err = %v, want ErrNotFound", err)
	}
}

func TestListPendingAndByChild(t *testing.T) {
	f := setupLedger(t)

	f.completions.Create(f.child.ID, f.chore.ID, f.chore.Reward, time.Now().Add(-time.Hour))
	pending := f.completed(t)

	list, err := f.completions.ListPending()
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 pending, got %d", len(list))
	}
	if list[0].ID != pending.ID {
		t.Errorf("pending id = %d, want %d", list[0].ID, pending.ID)
	}
	if list[0].ChoreName != "Clean Bedroom" || list[0].ChildName != "Sarah" {
		t.Errorf("detail = %q/%q, want Clean Bedroom/Sarah", list[0].ChoreName, list[0].ChildName)
	}

	all, err := f.completions.ListByChild(f.child.ID)
	if err != nil {
		t.Fatalf("list by child: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 completions, got %d", len(all))
	}
	if all[0].ID != pending.ID {
		t.Errorf("newest first: got id %d, want %d", all[0].ID, pending.ID)
	}

	inProgress, err := f.completions.ListInProgressByChild(f.child.ID)
	if err != nil {
		t.Fatalf("list in progress: %v", err)
	}
	if len(inProgress) != 1 {
		t.Errorf("expected 1 in progress, got %d", len(inProgress))
	}
}

func TestChildBalancesAndTotalEarned(t *testing.T) {
	f := setupLedger(t)
	f.users.Create("Parent", model.UserTypeParent, "1234")
	f.users.Create("Michael", model.UserTypeChild, "")

	c := f.completed(t)
	f.completions.Approve(c.ID, time.Now())
	f.completed(t)

	total, err := f.users.TotalEarned(f.child.ID)
	if err != nil {
		t.Fatalf("total earned: %v", err)
	}
	if !total.Equal(decimal.NewFromInt(5)) {
		t.Errorf("total = %s, want 5", total)
	}

	balances, err := f.users.ListChildBalances()
	if err != nil {
		t.Fatalf("list balances: %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("expected 2 children, got %d", len(balances))
	}
	// Ordered by name: Michael, Sarah.
	sarah := balances[1]
	if sarah.Name != "Sarah" {
		t.Fatalf("balances[1] = %q, want Sarah", sarah.Name)
	}
	if !sarah.Balance.Equal(decimal.NewFromInt(5)) {
		t.Errorf("balance = %s, want 5", sarah.Balance)
	}
	if !sarah.ApprovedTotal.Equal(decimal.NewFromInt(5)) {
		t.Errorf("approved total = %s, want 5", sarah.ApprovedTotal)
	}
	if sarah.PendingCount != 1 {
		t.Errorf("pending = %d, want 1", sarah.PendingCount)
	}
	if !balances[0].Balance.IsZero() || balances[0].PendingCount != 0 {
		t.Errorf("Michael = %+v, want zero balance and nothing pending", balances[0])
	}
}
