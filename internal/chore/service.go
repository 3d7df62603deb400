package chore

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/chorechart/internal/model"
	"github.com/dukerupert/chorechart/internal/store"
	"github.com/shopspring/decimal"
)

var (
	ErrChoreNotFound      = errors.New("chore not found")
	ErrChoreInactive      = errors.New("chore is not active")
	ErrUserNotFound       = errors.New("user not found")
	ErrNotChild           = errors.New("user is not a child")
	ErrCompletionNotFound = errors.New("completion not found")
	ErrInvalidTransition  = store.ErrInvalidTransition
)

// Service runs the completion lifecycle: start, complete, review, payout.
type Service struct {
	users       *store.UserStore
	chores      *store.ChoreStore
	completions *store.CompletionStore
	logger      *slog.Logger
	now         func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now for stamping start and approval times.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(users *store.UserStore, chores *store.ChoreStore, completions *store.CompletionStore, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		users:       users,
		chores:      chores,
		completions: completions,
		logger:      logger.With("component", "chore"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) child(id int64) (*model.User, error) {
	u, err := s.users.GetByID(id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	if !u.IsChild() {
		return nil, ErrNotChild
	}
	return u, nil
}

// Start creates an IN_PROGRESS completion for a child, freezing the chore's
// current reward as the amount earned.
func (s *Service) Start(childID, choreID int64) (*model.Completion, error) {
	if _, err := s.child(childID); err != nil {
		return nil, err
	}

	c, err := s.chores.GetByID(choreID)
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	if c == nil {
		return nil, ErrChoreNotFound
	}
	if !c.Active {
		return nil, ErrChoreInactive
	}

	completion, err := s.completions.Create(childID, choreID, c.Reward, s.now())
	if err != nil {
		return nil, fmt.Errorf("start chore: %w", err)
	}
	s.logger.Info("chore started", "completion_id", completion.ID, "child_id", childID, "chore_id", choreID)
	return completion, nil
}

// Complete attaches proof and submits the completion for review. The proof
// path is stored as given.
func (s *Service) Complete(completionID int64, picturePath string) (*model.Completion, error) {
	c, err := s.completions.Complete(completionID, picturePath)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	s.logger.Info("chore completed", "completion_id", completionID)
	return c, nil
}

// Approve marks a submitted completion approved and credits the child.
func (s *Service) Approve(completionID int64) (*model.Completion, error) {
	c, err := s.completions.Approve(completionID, s.now())
	if err != nil {
		return nil, mapStoreErr(err)
	}
	s.logger.Info("chore approved", "completion_id", completionID, "child_id", c.ChildID, "amount", c.AmountEarned.StringFixed(2))
	return c, nil
}

func (s *Service) Reject(completionID int64) (*model.Completion, error) {
	c, err := s.completions.Reject(completionID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	s.logger.Info("chore rejected", "completion_id", completionID)
	return c, nil
}

// Payout zeroes a child's balance, discards their approved completions and
// returns the amount paid.
func (s *Service) Payout(childID int64) (decimal.Decimal, error) {
	if _, err := s.child(childID); err != nil {
		return decimal.Zero, err
	}
	paid, err := s.completions.Payout(childID)
	if errors.Is(err, store.ErrNotFound) {
		return decimal.Zero, ErrUserNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	s.logger.Info("balance paid out", "child_id", childID, "amount", paid.StringFixed(2))
	return paid, nil
}

func (s *Service) Balance(childID int64) (decimal.Decimal, error) {
	u, err := s.child(childID)
	if err != nil {
		return decimal.Zero, err
	}
	return u.Balance, nil
}

// Detail returns a completion with its chore and child names, or
// ErrCompletionNotFound.
func (s *Service) Detail(completionID int64) (*model.CompletionDetail, error) {
	d, err := s.completions.GetDetail(completionID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrCompletionNotFound
	}
	return d, nil
}

func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrCompletionNotFound
	}
	return err
}
