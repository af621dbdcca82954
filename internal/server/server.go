package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/healixhq/healix/internal/config"
	"github.com/healixhq/healix/internal/email"
	"github.com/healixhq/healix/internal/family"
	"github.com/healixhq/healix/internal/handler"
	"github.com/healixhq/healix/internal/middleware"
	"github.com/healixhq/healix/internal/plangen"
	"github.com/healixhq/healix/internal/push"
	"github.com/healixhq/healix/internal/storage"
	"github.com/healixhq/healix/internal/store"
	"github.com/healixhq/healix/internal/subscription"
	ws "github.com/healixhq/healix/internal/websocket"
)

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	authH        *handler.AuthHandler
	familyH      *handler.FamilyHandler
	subH         *handler.SubscriptionHandler
	adminH       *handler.AdminHandler
	planH        *handler.PlanHandler
	habitH       *handler.HabitHandler
	pushH        *handler.PushHandler
	sessionStore *store.SessionStore
	userStore    *store.UserStore
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, cfg config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	profileStore := store.NewProfileStore(db)
	requestStore := store.NewPaymentRequestStore(db)
	planStore := store.NewPlanStore(db)
	habitStore := store.NewHabitStore(db)
	pushStore := store.NewPushStore(db)

	resolver := family.NewResolver(profileStore, logger.With("component", "family"))

	objects := storage.New(storage.Config{
		Endpoint:      cfg.S3Endpoint,
		Bucket:        cfg.S3Bucket,
		Region:        cfg.S3Region,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		PublicBaseURL: cfg.S3PublicBaseURL,
	})

	emailClient := email.NewClient(cfg.PostmarkToken, cfg.EmailFrom)

	planClient := plangen.NewClient(plangen.Config{
		BaseURL: cfg.PlanBaseURL,
		APIKey:  cfg.PlanAPIKey,
		Model:   cfg.PlanModel,
		Timeout: cfg.PlanTimeout,
	})
	planSvc := plangen.NewService(planClient, cfg.PlanModel, planStore, logger.With("component", "plangen"))

	var pushSvc *push.Service
	var pushH *handler.PushHandler
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)
		pushH = handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push"))
	}

	approver := subscription.NewApprover(requestStore, userStore, pushStore, hub, emailClient, pushSvc, logger.With("component", "approval"))

	return &Server{
		db:           db,
		hub:          hub,
		authH:        handler.NewAuthHandler(userStore, profileStore, sessionStore, logger.With("component", "auth")),
		familyH:      handler.NewFamilyHandler(resolver, profileStore, requestStore, objects, hub, logger.With("component", "family")),
		subH:         handler.NewSubscriptionHandler(resolver, requestStore, objects, hub, logger.With("component", "subscription")),
		adminH:       handler.NewAdminHandler(requestStore, approver, logger.With("component", "admin")),
		planH:        handler.NewPlanHandler(resolver, planSvc, logger.With("component", "plan")),
		habitH:       handler.NewHabitHandler(resolver, habitStore, logger.With("component", "habit")),
		pushH:        pushH,
		sessionStore: sessionStore,
		userStore:    userStore,
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.authH.Me)

	// Family API routes
	mux.HandleFunc("GET /api/family", s.familyH.Get)
	mux.HandleFunc("POST /api/family/members", s.familyH.CreateDependent)
	mux.HandleFunc("PUT /api/family/members/{id}", s.familyH.Update)
	mux.HandleFunc("DELETE /api/family/members/{id}", s.familyH.Delete)
	mux.HandleFunc("POST /api/family/members/{id}/avatar", s.familyH.UploadAvatar)

	// Subscription API routes
	mux.HandleFunc("GET /api/subscription/quote", s.subH.Quote)
	mux.HandleFunc("GET /api/subscription/requests", s.subH.List)
	mux.HandleFunc("POST /api/subscription/requests", s.subH.Submit)

	// Daily plan and habit API routes
	mux.HandleFunc("GET /api/family/members/{id}/plan/today", s.planH.Today)
	mux.HandleFunc("GET /api/family/members/{id}/habits/today", s.habitH.Today)
	mux.HandleFunc("PUT /api/family/members/{id}/habits", s.habitH.Record)

	// Push notification API routes
	if s.pushH != nil {
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.List)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	}

	// Admin API routes
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET /api/admin/requests", s.adminH.ListRequests)
	adminMux.HandleFunc("POST /api/admin/requests/{id}/approve", s.adminH.Approve)
	adminMux.HandleFunc("POST /api/admin/requests/{id}/reject", s.adminH.Reject)
	mux.Handle("/api/admin/", middleware.RequireAdmin(adminMux))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}
