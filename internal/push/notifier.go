package push

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/chorechart/internal/model"
)

const (
	queueSize   = 64
	sendTimeout = 15 * time.Second
)

// Sender delivers one payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error
}

// Subscriptions is the part of the push store the notifier reads and prunes.
type Subscriptions interface {
	ListByUser(userID int64) ([]model.PushSubscription, error)
	ListByUserType(userType model.UserType) ([]model.PushSubscription, error)
	DeleteByEndpoint(endpoint string) error
}

type job struct {
	userID   int64
	userType model.UserType
	payload  Payload
}

// Notifier fans chore events out to devices on a background worker so HTTP
// handlers never wait on a push service. A nil *Notifier ignores every call.
type Notifier struct {
	sender Sender
	subs   Subscriptions
	logger *slog.Logger

	mu     sync.Mutex
	queue  chan job
	closed bool
	done   chan struct{}
}

func NewNotifier(sender Sender, subs Subscriptions, logger *slog.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		subs:   subs,
		logger: logger.With("component", "push"),
		queue:  make(chan job, queueSize),
		done:   make(chan struct{}),
	}
}

// Start runs the delivery worker until Stop.
func (n *Notifier) Start() {
	if n == nil {
		return
	}
	go func() {
		defer close(n.done)
		for j := range n.queue {
			n.deliver(j)
		}
	}()
}

// Stop refuses new notifications, delivers the queued ones and waits.
func (n *Notifier) Stop() {
	if n == nil {
		return
	}
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()
	<-n.done
}

// NotifyParents queues payload for every parent device.
func (n *Notifier) NotifyParents(payload Payload) {
	n.enqueue(job{userType: model.UserTypeParent, payload: payload})
}

// NotifyUser queues payload for one user's devices.
func (n *Notifier) NotifyUser(userID int64, payload Payload) {
	n.enqueue(job{userID: userID, payload: payload})
}

func (n *Notifier) enqueue(j job) {
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- j:
	default:
		n.logger.Warn("push queue full, dropping notification", "tag", j.payload.Tag)
	}
}

func (n *Notifier) deliver(j job) {
	var subs []model.PushSubscription
	var err error
	if j.userType != "" {
		subs, err = n.subs.ListByUserType(j.userType)
	} else {
		subs, err = n.subs.ListByUser(j.userID)
	}
	if err != nil {
		n.logger.Error("list push subscriptions", "error", err)
		return
	}

	for i := range subs {
		sub := &subs[i]
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := n.sender.Send(ctx, sub, j.payload)
		cancel()

		switch {
		case errors.Is(err, ErrExpired):
			n.logger.Info("removing expired push subscription", "subscription_id", sub.ID, "user_id", sub.UserID)
			if err := n.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
				n.logger.Error("delete expired subscription", "error", err)
			}
		case err != nil:
			n.logger.Error("send push", "subscription_id", sub.ID, "error", err)
		}
	}
}
