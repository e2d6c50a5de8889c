package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/julianstephens/habitline/internal/auth"
	"github.com/julianstephens/habitline/internal/config"
	"github.com/julianstephens/habitline/internal/events"
	"github.com/julianstephens/habitline/internal/logger"
	"github.com/julianstephens/habitline/internal/storage"
	"github.com/julianstephens/habitline/internal/streak"
	"github.com/julianstephens/habitline/internal/utils"
)

// Server is the habitline REST API
type Server struct {
	cfg      config.Server
	store    storage.Provider
	engine   *streak.Engine
	issuer   *auth.Issuer
	bus      *events.Bus
	hub      *Hub
	limiter  *ipLimiter
	throttle *slowDown

	handler http.Handler
	unsub   func()
}

// New wires the API over store. Events are published on bus, which the
// caller owns and closes after the server stops.
func New(cfg config.Server, store storage.Provider, bus *events.Bus) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		store:  store,
		issuer: issuer,
		bus:    bus,
		hub:    NewHub(cfg.CORSOrigins),
		engine: streak.New(store, bus, streak.Options{
			Window:      cfg.StreakWindow,
			MaxLookback: cfg.StreakMaxLookback,
			MaxRetries:  cfg.ToggleRetries,
		}),
	}
	if cfg.RateLimit > 0 {
		s.limiter = newIPLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	if cfg.SlowDownAfter > 0 {
		s.throttle = newSlowDown(cfg.SlowDownAfter, cfg.SlowDownWindow, cfg.SlowDownDelay, cfg.SlowDownMax)
	}
	if s.handler, err = s.routes(); err != nil {
		return nil, err
	}
	s.unsub = bus.Subscribe(s.hub.Publish)
	return s, nil
}

// Handler returns the root handler with the middleware chain applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() (http.Handler, error) {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(s.notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.methodNotAllowed)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/token/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/users", s.handleCreateUser).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(s.authenticate)

	protected.HandleFunc("/ws", s.handleWebsocket).Methods(http.MethodGet)

	protected.HandleFunc("/users/count", s.handleCountUsers).Methods(http.MethodGet)
	protected.HandleFunc("/users/{id}", s.handleGetUser).Methods(http.MethodGet)
	protected.HandleFunc("/users/{id}", s.handleUpdateUser).Methods(http.MethodPut)
	protected.HandleFunc("/users/{id}", s.handleDeleteUser).Methods(http.MethodDelete)

	// literal paths are registered before /habits/{id} so they win
	protected.HandleFunc("/habits", s.handleListHabits).Methods(http.MethodGet)
	protected.HandleFunc("/habits", s.handleCreateHabit).Methods(http.MethodPost)
	protected.HandleFunc("/habits/count", s.handleCountHabits).Methods(http.MethodGet)
	protected.HandleFunc("/habits/streaks", s.handleListStreaks).Methods(http.MethodGet)
	protected.HandleFunc("/habits/{id}", s.handleGetHabit).Methods(http.MethodGet)
	protected.HandleFunc("/habits/{id}", s.handleUpdateHabit).Methods(http.MethodPut)
	protected.HandleFunc("/habits/{id}", s.handleDeleteHabit).Methods(http.MethodDelete)
	protected.HandleFunc("/habits/{id}/archive", s.handleArchiveHabit).Methods(http.MethodPatch)
	protected.HandleFunc("/habits/{id}/complete", s.handleCompleteHabit).Methods(http.MethodPost)
	protected.HandleFunc("/habits/{id}/streak", s.handleGetStreak).Methods(http.MethodGet)
	protected.HandleFunc("/habits/{id}/completions", s.handleCompletionHistory).Methods(http.MethodGet)

	var h http.Handler = r
	h = s.rateLimit(h)
	h = s.slowDown(h)
	h = s.corsHandler()(h)
	h = s.requestLogger(h)
	h, err := s.compress(h)
	if err != nil {
		return nil, err
	}
	h = s.secureHeaders(h)
	h = s.recoverer(h)
	return h, nil
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", ln.Addr().String(), "env", s.cfg.Env)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.shutdownHub()
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server", "timeout", s.cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.shutdownHub()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) shutdownHub() {
	if s.unsub != nil {
		s.unsub()
	}
	s.hub.Close()
}

// today returns the current calendar day in the user's timezone
func (s *Server) today(ctx context.Context, userID string) (string, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	day, err := utils.GetTodayInTimezone(u.Timezone)
	if err != nil {
		logger.Warn("Invalid user timezone, using UTC", "user", userID, "timezone", u.Timezone)
		return utils.GetTodayInTimezone("UTC")
	}
	return day, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.fail(w, r, fmt.Errorf("database unavailable: %w", err))
		return
	}
	s.respond(w, http.StatusOK, "OK", map[string]string{"status": "ok"})
}
