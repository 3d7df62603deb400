package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/chorechart/internal/auth"
	"github.com/dukerupert/chorechart/internal/model"
	"github.com/shopspring/decimal"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var balance int64
	err := scanner.Scan(&u.ID, &u.Name, &u.Type, &balance, &u.HasPIN, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.Balance = fromCents(balance)
	return &u, nil
}

const userCols = `id, user_name, user_type, allowance_balance, pin IS NOT NULL, created_at`

// Create inserts a user. An empty pin leaves the PIN unset; otherwise it
// must be a valid PIN and is stored hashed.
func (s *UserStore) Create(name string, userType model.UserType, pin string) (*model.User, error) {
	var hashed sql.NullString
	if pin != "" {
		h, err := auth.HashPIN(pin)
		if err != nil {
			return nil, fmt.Errorf("hash pin: %w", err)
		}
		hashed = sql.NullString{String: h, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO users (user_name, user_type, pin) VALUES (?, ?, ?)`,
		name, userType, hashed,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) List() ([]model.User, error) {
	rows, err := s.db.Query(`SELECT ` + userCols + ` FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (s *UserStore) ListByType(userType model.UserType) ([]model.User, error) {
	rows, err := s.db.Query(
		`SELECT `+userCols+` FROM users WHERE user_type = ? ORDER BY id ASC`,
		userType,
	)
	if err != nil {
		return nil, fmt.Errorf("list users by type: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func scanUsers(rows *sql.Rows) ([]model.User, error) {
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// ValidateParentPIN returns the parent named name whose PIN matches pin,
// or nil when none does.
func (s *UserStore) ValidateParentPIN(name, pin string) (*model.User, error) {
	rows, err := s.db.Query(
		`SELECT id, pin FROM users WHERE user_type = ? AND user_name = ? AND pin IS NOT NULL ORDER BY id ASC`,
		model.UserTypeParent, name,
	)
	if err != nil {
		return nil, fmt.Errorf("query parent pins: %w", err)
	}

	type candidate struct {
		id   int64
		hash string
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.hash); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan parent pin: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate parent pins: %w", err)
	}
	rows.Close()

	for _, c := range candidates {
		if auth.ComparePIN(c.hash, pin) {
			return s.GetByID(c.id)
		}
	}
	return nil, nil
}

func (s *UserStore) SetPIN(id int64, pin string) error {
	hash, err := auth.HashPIN(pin)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}
	result, err := s.db.Exec(`UPDATE users SET pin = ? WHERE id = ?`, hash, id)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UserStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// TotalEarned sums a child's approved completions that have not been paid out.
func (s *UserStore) TotalEarned(childID int64) (decimal.Decimal, error) {
	var cents int64
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(amount_earned), 0) FROM chore_completions WHERE child_id = ? AND status = ?`,
		childID, model.StatusApproved,
	).Scan(&cents)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum earned: %w", err)
	}
	return fromCents(cents), nil
}

// ListChildBalances returns every child with their running balance, the
// approved total awaiting payout, and the number of completions awaiting review.
func (s *UserStore) ListChildBalances() ([]model.ChildBalance, error) {
	rows, err := s.db.Query(`
		SELECT u.id, u.user_name, u.allowance_balance,
		       COALESCE(SUM(CASE WHEN c.status = 'APPROVED' THEN c.amount_earned END), 0),
		       COUNT(CASE WHEN c.status = 'COMPLETED' THEN 1 END)
		FROM users u
		LEFT JOIN chore_completions c ON c.child_id = u.id
		WHERE u.user_type = ?
		GROUP BY u.id, u.user_name, u.allowance_balance
		ORDER BY u.user_name ASC`,
		model.UserTypeChild,
	)
	if err != nil {
		return nil, fmt.Errorf("list child balances: %w", err)
	}
	defer rows.Close()

	var balances []model.ChildBalance
	for rows.Next() {
		var b model.ChildBalance
		var balance, approved int64
		if err := rows.Scan(&b.ChildID, &b.Name, &balance, &approved, &b.PendingCount); err != nil {
			return nil, fmt.Errorf("scan child balance: %w", err)
		}
		b.Balance = fromCents(balance)
		b.ApprovedTotal = fromCents(approved)
		balances = append(balances, b)
	}
	return balances, rows.Err()
}
