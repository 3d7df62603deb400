package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/chorechart/internal/model"
	"github.com/shopspring/decimal"
)

type CompletionStore struct {
	db *sql.DB
}

func NewCompletionStore(db *sql.DB) *CompletionStore {
	return &CompletionStore{db: db}
}

func scanCompletion(scanner interface{ Scan(...any) error }, extra ...any) (*model.Completion, error) {
	var c model.Completion
	var picturePath sql.NullString
	var amount int64
	var approvedAt sql.NullTime

	dest := []any{
		&c.ID, &c.ChildID, &c.ChoreID, &picturePath, &amount,
		&c.Status, &c.StartedAt, &approvedAt,
	}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if picturePath.Valid {
		c.PicturePath = &picturePath.String
	}
	c.AmountEarned = fromCents(amount)
	if approvedAt.Valid {
		c.ApprovedAt = &approvedAt.Time
	}
	return &c, nil
}

func scanDetail(scanner interface{ Scan(...any) error }) (*model.CompletionDetail, error) {
	var d model.CompletionDetail
	c, err := scanCompletion(scanner, &d.ChoreName, &d.ChildName)
	if err != nil {
		return nil, err
	}
	d.Completion = *c
	return &d, nil
}

const completionCols = `id, child_id, chore_id, picture_path, amount_earned, status, started_at, approved_at`

const detailQuery = `SELECT c.id, c.child_id, c.chore_id, c.picture_path, c.amount_earned, c.status, c.started_at, c.approved_at,
       ch.name, u.user_name
FROM chore_completions c
JOIN chores ch ON ch.id = c.chore_id
JOIN users u ON u.id = c.child_id`

// Create starts a completion in IN_PROGRESS with amount as its frozen reward.
func (s *CompletionStore) Create(childID, choreID int64, amount decimal.Decimal, startedAt time.Time) (*model.Completion, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`INSERT INTO chore_completions (child_id, chore_id, amount_earned, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		childID, choreID, toCents(amount), model.StatusInProgress, startedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert completion: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *CompletionStore) GetByID(id int64) (*model.Completion, error) {
	row := s.db.QueryRow(`SELECT `+completionCols+` FROM chore_completions WHERE id = ?`, id)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

func (s *CompletionStore) GetDetail(id int64) (*model.CompletionDetail, error) {
	row := s.db.QueryRow(detailQuery+` WHERE c.id = ?`, id)
	d, err := scanDetail(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion detail: %w", err)
	}
	return d, nil
}

func (s *CompletionStore) listDetails(where string, args ...any) ([]model.CompletionDetail, error) {
	rows, err := s.db.Query(detailQuery+` WHERE `+where+` ORDER BY c.started_at DESC, c.id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var details []model.CompletionDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		details = append(details, *d)
	}
	return details, rows.Err()
}

// ListByChild returns a child's completions, newest first.
func (s *CompletionStore) ListByChild(childID int64) ([]model.CompletionDetail, error) {
	return s.listDetails(`c.child_id = ?`, childID)
}

func (s *CompletionStore) ListByStatus(status model.CompletionStatus) ([]model.CompletionDetail, error) {
	return s.listDetails(`c.status = ?`, status)
}

// ListPending returns completions waiting for a parent's review.
func (s *CompletionStore) ListPending() ([]model.CompletionDetail, error) {
	return s.ListByStatus(model.StatusCompleted)
}

func (s *CompletionStore) ListInProgressByChild(childID int64) ([]model.CompletionDetail, error) {
	return s.listDetails(`c.child_id = ? AND c.status = ?`, childID, model.StatusInProgress)
}

// transitionErr explains why a conditional status update matched no row.
func transitionErr(q interface {
	QueryRow(string, ...any) *sql.Row
}, id int64) error {
	var status string
	err := q.QueryRow(`SELECT status FROM chore_completions WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get completion status: %w", err)
	}
	return fmt.Errorf("completion %d is %s: %w", id, status, ErrInvalidTransition)
}

// Complete attaches the proof photo path and moves an IN_PROGRESS
// completion to COMPLETED. The path is not checked.
func (s *CompletionStore) Complete(id int64, picturePath string) (*model.Completion, error) {
	result, err := s.db.Exec(
		`UPDATE chore_completions SET picture_path = ?, status = ? WHERE id = ? AND status = ?`,
		picturePath, model.StatusCompleted, id, model.StatusInProgress,
	)
	if err != nil {
		return nil, fmt.Errorf("complete completion: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, transitionErr(s.db, id)
	}
	return s.GetByID(id)
}

// Approve moves a COMPLETED completion to APPROVED, stamps approvedAt and
// credits the child's balance with the completion's amount. Both writes
// happen in one transaction. A completion in any other status is left
// untouched and ErrInvalidTransition is returned, so approving twice never
// credits twice.
func (s *CompletionStore) Approve(id int64, approvedAt time.Time) (*model.Completion, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE chore_completions SET status = ?, approved_at = ? WHERE id = ? AND status = ?`,
		model.StatusApproved, approvedAt.UTC(), id, model.StatusCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("approve completion: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, transitionErr(tx, id)
	}

	var childID, amount int64
	if err := tx.QueryRow(
		`SELECT child_id, amount_earned FROM chore_completions WHERE id = ?`, id,
	).Scan(&childID, &amount); err != nil {
		return nil, fmt.Errorf("read completion amount: %w", err)
	}

	result, err = tx.Exec(
		`UPDATE users SET allowance_balance = allowance_balance + ? WHERE id = ?`,
		amount, childID,
	)
	if err != nil {
		return nil, fmt.Errorf("credit balance: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("credit balance for user %d: %w", childID, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approve: %w", err)
	}
	return s.GetByID(id)
}

// Reject moves a COMPLETED completion to REJECTED. Balances are untouched.
func (s *CompletionStore) Reject(id int64) (*model.Completion, error) {
	result, err := s.db.Exec(
		`UPDATE chore_completions SET status = ? WHERE id = ? AND status = ?`,
		model.StatusRejected, id, model.StatusCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("reject completion: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, transitionErr(s.db, id)
	}
	return s.GetByID(id)
}

// Payout zeroes a child's balance and deletes their APPROVED completions
// in one transaction, returning the balance that was paid out.
func (s *CompletionStore) Payout(childID int64) (decimal.Decimal, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return decimal.Zero, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var balance int64
	err = tx.QueryRow(
		`SELECT allowance_balance FROM users WHERE id = ? AND user_type = ?`,
		childID, model.UserTypeChild,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return decimal.Zero, ErrNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("read balance: %w", err)
	}

	if _, err := tx.Exec(`UPDATE users SET allowance_balance = 0 WHERE id = ?`, childID); err != nil {
		return decimal.Zero, fmt.Errorf("reset balance: %w", err)
	}
	if _, err := tx.Exec(
		`DELETE FROM chore_completions WHERE child_id = ? AND status = ?`,
		childID, model.StatusApproved,
	); err != nil {
		return decimal.Zero, fmt.Errorf("clear approved completions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("commit payout: %w", err)
	}
	return fromCents(balance), nil
}

func (s *CompletionStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM chore_completions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete completion: %w", err)
	}
	return nil
}
