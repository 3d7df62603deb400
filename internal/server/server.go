package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/chorechart/internal/chore"
	"github.com/dukerupert/chorechart/internal/handler"
	"github.com/dukerupert/chorechart/internal/middleware"
	"github.com/dukerupert/chorechart/internal/proof"
	"github.com/dukerupert/chorechart/internal/push"
	"github.com/dukerupert/chorechart/internal/store"
	ws "github.com/dukerupert/chorechart/internal/websocket"
)

// Options carries the collaborators built in main.
type Options struct {
	Proofs    proof.Storage
	Push      *push.Service
	WSOrigins []string
	Clock     func() time.Time
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	userStore   *store.UserStore
	pushStore   *store.PushStore
	userH       *handler.UserHandler
	choreH      *handler.ChoreHandler
	completionH *handler.CompletionHandler
	proofH      *handler.ProofHandler
	pushH       *handler.PushHandler
	notifier    *push.Notifier
	rateLimiter *middleware.RateLimiter
	wsOrigins   []string
	logger      *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger)

	userStore := store.NewUserStore(db)
	choreStore := store.NewChoreStore(db)
	completionStore := store.NewCompletionStore(db)
	pushStore := store.NewPushStore(db)

	var svcOpts []chore.Option
	if opts.Clock != nil {
		svcOpts = append(svcOpts, chore.WithClock(opts.Clock))
	}
	svc := chore.NewService(userStore, choreStore, completionStore, logger, svcOpts...)

	var notifier *push.Notifier
	if opts.Push.Enabled() {
		notifier = push.NewNotifier(opts.Push, pushStore, logger)
	}

	return &Server{
		db:          db,
		hub:         hub,
		userStore:   userStore,
		pushStore:   pushStore,
		userH:       handler.NewUserHandler(userStore, svc, hub, logger.With("component", "user")),
		choreH:      handler.NewChoreHandler(choreStore, hub, logger.With("component", "chore")),
		completionH: handler.NewCompletionHandler(svc, completionStore, opts.Proofs, notifier, hub, logger.With("component", "completion")),
		proofH:      handler.NewProofHandler(opts.Proofs, logger.With("component", "proof")),
		pushH:       handler.NewPushHandler(pushStore, userStore, opts.Push, logger.With("component", "push_handler")),
		notifier:    notifier,
		rateLimiter: middleware.NewRateLimiter(),
		wsOrigins:   opts.WSOrigins,
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Notifier returns the push notifier, nil when push is disabled.
func (s *Server) Notifier() *push.Notifier {
	return s.notifier
}

func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.wsOrigins...))

	// Household members and balances
	mux.HandleFunc("GET /api/users", s.userH.List)
	mux.HandleFunc("GET /api/users/{id}", s.userH.Get)
	mux.HandleFunc("GET /api/users/{id}/balance", s.userH.Balance)
	mux.HandleFunc("GET /api/children", s.userH.Children)
	mux.HandleFunc("GET /api/children/balances", s.userH.Balances)
	mux.HandleFunc("POST /api/parents/verify-pin", s.rateLimited("pin", 10, s.userH.VerifyPIN))

	// Child flow
	mux.HandleFunc("GET /api/chores", s.choreH.ListActive)
	mux.HandleFunc("POST /api/chores/{id}/start", s.completionH.Start)
	mux.HandleFunc("POST /api/proofs", s.proofH.Upload)
	mux.HandleFunc("POST /api/completions/{id}/complete", s.completionH.Complete)
	mux.HandleFunc("GET /api/children/{id}/completions", s.completionH.ListByChild)
	mux.HandleFunc("GET /api/children/{id}/in-progress", s.completionH.InProgress)

	// Push
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)

	// Parent only, behind the PIN
	parent := middleware.RequireParent(s.userStore)
	guarded := func(h http.HandlerFunc) http.Handler {
		return s.rateLimited("parent", 120, parent(h).ServeHTTP)
	}
	mux.Handle("GET /api/chores/all", guarded(s.choreH.List))
	mux.Handle("POST /api/chores", guarded(s.choreH.Create))
	mux.Handle("PUT /api/chores/{id}", guarded(s.choreH.Update))
	mux.Handle("DELETE /api/chores/{id}", guarded(s.choreH.Delete))
	mux.Handle("PUT /api/chores/{id}/active", guarded(s.choreH.SetActive))
	mux.Handle("GET /api/completions/pending", guarded(s.completionH.Pending))
	mux.Handle("GET /api/completions/{id}/proof", guarded(s.completionH.Proof))
	mux.Handle("POST /api/completions/{id}/approve", guarded(s.completionH.Approve))
	mux.Handle("POST /api/completions/{id}/reject", guarded(s.completionH.Reject))
	mux.Handle("POST /api/children/{id}/payout", guarded(s.completionH.Payout))
	mux.Handle("POST /api/users", guarded(s.userH.Create))
	mux.Handle("PUT /api/users/{id}/pin", guarded(s.userH.SetPIN))
	mux.Handle("DELETE /api/users/{id}", guarded(s.userH.Delete))
	mux.Handle("GET /api/users/{id}/push-subscriptions", guarded(s.pushH.ListSubscriptions))

	return middleware.RequestLogger(s.logger)(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// rateLimited caps requests per client address and minute. Routes sharing
// a bucket name share the count.
func (s *Server) rateLimited(bucket string, perMinute int, h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return bucket + ":" + middleware.RealIP(r)
	}
	return middleware.RateLimit(s.rateLimiter, keyFunc, perMinute, time.Minute)(h).ServeHTTP
}
