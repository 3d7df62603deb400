package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/chorechart/internal/model"
	"github.com/shopspring/decimal"
)

type ChoreStore struct {
	db *sql.DB
}

func NewChoreStore(db *sql.DB) *ChoreStore {
	return &ChoreStore{db: db}
}

func scanChore(scanner interface{ Scan(...any) error }) (*model.Chore, error) {
	var c model.Chore
	var reward int64
	var active int

	err := scanner.Scan(&c.ID, &c.Name, &reward, &active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	c.Reward = fromCents(reward)
	c.Active = active != 0
	return &c, nil
}

const choreCols = `id, name, reward, is_active, created_at, updated_at`

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *ChoreStore) Create(name string, reward decimal.Decimal, active bool) (*model.Chore, error) {
	if err := checkAmount(reward); err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`INSERT INTO chores (name, reward, is_active) VALUES (?, ?, ?)`,
		name, toCents(reward), boolInt(active),
	)
	if err != nil {
		return nil, fmt.Errorf("insert chore: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ChoreStore) GetByID(id int64) (*model.Chore, error) {
	row := s.db.QueryRow(`SELECT `+choreCols+` FROM chores WHERE id = ?`, id)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return c, nil
}

// List returns every chore, including disabled ones, ordered by name.
func (s *ChoreStore) List() ([]model.Chore, error) {
	rows, err := s.db.Query(`SELECT ` + choreCols + ` FROM chores ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()
	return scanChores(rows)
}

// ListActive returns the chores children can pick from, ordered by name.
func (s *ChoreStore) ListActive() ([]model.Chore, error) {
	rows, err := s.db.Query(`SELECT ` + choreCols + ` FROM chores WHERE is_active = 1 ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active chores: %w", err)
	}
	defer rows.Close()
	return scanChores(rows)
}

func scanChores(rows *sql.Rows) ([]model.Chore, error) {
	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

// Update edits a chore. Completions already started keep the reward they
// were created with.
func (s *ChoreStore) Update(id int64, name string, reward decimal.Decimal, active bool) (*model.Chore, error) {
	if err := checkAmount(reward); err != nil {
		return nil, err
	}

	_, err := s.db.Exec(
		`UPDATE chores SET name = ?, reward = ?, is_active = ? WHERE id = ?`,
		name, toCents(reward), boolInt(active), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update chore: %w", err)
	}
	return s.GetByID(id)
}

// SetActive soft-enables or soft-disables a chore.
func (s *ChoreStore) SetActive(id int64, active bool) error {
	result, err := s.db.Exec(`UPDATE chores SET is_active = ? WHERE id = ?`, boolInt(active), id)
	if err != nil {
		return fmt.Errorf("set chore active: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a chore and, through the foreign key, all its completions.
func (s *ChoreStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM chores WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chore: %w", err)
	}
	return nil
}
