package database

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/chorechart/internal/auth"
)

// DefaultParentPIN is the PIN given to the seeded parent account.
const DefaultParentPIN = "1234"

type seedChore struct {
	name  string
	cents int64
}

var seedChores = []seedChore{
	{"Clean Bedroom", 500},
	{"Take Out Trash", 200},
	{"Wash Dishes", 300},
	{"Vacuum Living Room", 400},
	{"Feed Pets", 150},
	{"Set Table", 100},
	{"Clear Table", 100},
	{"Water Plants", 200},
}

// Seed fills a fresh database with a parent, two children and a starter
// set of chores. It does nothing once any user exists.
func Seed(db *sql.DB) (bool, error) {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	hash, err := auth.HashPIN(DefaultParentPIN)
	if err != nil {
		return false, fmt.Errorf("hash parent pin: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO users (user_name, user_type, pin) VALUES (?, 'PARENT', ?)`,
		"Parent", hash,
	); err != nil {
		return false, fmt.Errorf("insert parent: %w", err)
	}
	for _, name := range []string{"Sarah", "Michael"} {
		if _, err := tx.Exec(`INSERT INTO users (user_name, user_type) VALUES (?, 'CHILD')`, name); err != nil {
			return false, fmt.Errorf("insert child %s: %w", name, err)
		}
	}

	stmt, err := tx.Prepare(`INSERT INTO chores (name, reward) VALUES (?, ?)`)
	if err != nil {
		return false, fmt.Errorf("prepare stmt: %w", err)
	}
	defer stmt.Close()

	for _, c := range seedChores {
		if _, err := stmt.Exec(c.name, c.cents); err != nil {
			return false, fmt.Errorf("insert chore %s: %w", c.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit seed: %w", err)
	}
	return true, nil
}
