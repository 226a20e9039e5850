package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dimitrije/listshub-api/internal/config"
	"github.com/dimitrije/listshub-api/internal/database"
	"github.com/dimitrije/listshub-api/internal/entitlement"
	"github.com/dimitrije/listshub-api/internal/handlers"
	authmw "github.com/dimitrije/listshub-api/internal/middleware"
	"github.com/dimitrije/listshub-api/internal/metrics"
	"github.com/dimitrije/listshub-api/internal/oauth"
	"github.com/dimitrije/listshub-api/internal/services"
	"github.com/dimitrije/listshub-api/internal/sse"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/middleware"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	configureLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	m := metrics.New()
	if pool, ok := db.Pool.(*pgxpool.Pool); ok {
		m.RegisterDBPoolCollector(func() (int32, int32, int32) {
			stat := pool.Stat()
			return stat.TotalConns(), stat.IdleConns(), stat.AcquiredConns()
		})
	}

	planService := services.NewPlanService(db)
	catalog, err := loadCatalog(ctx, cfg, planService)
	if err != nil {
		log.Fatalf("Failed to load plan catalog: %v", err)
	}
	evaluator := entitlement.NewEvaluator(catalog)

	emailService, err := services.NewEmailService(ctx, cfg.SES)
	if err != nil {
		log.Fatalf("Failed to initialize email service: %v", err)
	}

	hub := sse.NewHub()
	go hub.Run(ctx)

	jwtService := services.NewJWTService(cfg.JWTSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
	tokenService := services.NewTokenService(db)
	userService := services.NewUserService(db)
	familyService := services.NewFamilyService(db, evaluator, hub, m)
	inviteService := services.NewInviteService(db, hub, m, cfg.InviteExpiry())
	listService := services.NewListService(db, evaluator, hub, m)
	sessionService := services.NewSessionService(db, userService, evaluator)
	accountService := services.NewAccountService(db, userService, inviteService, emailService, m, cfg.PasswordResetURL)

	var providers []oauth.Provider
	if cfg.Google.ClientID != "" {
		providers = append(providers, oauth.NewGoogleProvider(cfg.Google))
	}

	registry := oauth.NewRegistry(providers...)
	log.WithField("providers", registry.Names()).Info("oauth providers configured")
	authHandler := handlers.NewAuthHandler(cfg, registry, accountService, userService, tokenService, jwtService)
	go authHandler.RunCleanup(ctx)

	userHandler := handlers.NewUserHandler(userService, sessionService, familyService)
	familyHandler := handlers.NewFamilyHandler(familyService, hub)
	inviteHandler := handlers.NewInviteHandler(inviteService, familyService, userService, emailService, cfg.BaseURL)
	listHandler := handlers.NewListHandler(listService, familyService)
	sseHandler := handlers.NewSSEHandler(hub, familyService)
	planHandler := handlers.NewPlanHandler(planService)
	adminHandler := handlers.NewAdminHandler(userService, familyService)
	healthHandler := handlers.NewHealthHandler(db.Pool)

	app := drift.New()

	if cfg.IsProduction() {
		app.SetMode(drift.ReleaseMode)
	} else {
		app.SetMode(drift.DebugMode)
	}

	app.Use(middleware.Recovery())
	app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       86400,
	}))
	app.Use(middleware.BodyParser())
	app.Use(authmw.RequestLogger())

	api := app.Group("/api/v1")

	auth := api.Group("/auth")
	auth.Post("/signup", authHandler.SignUp)
	auth.Post("/signup/invite", authHandler.SignUpWithInvite)
	auth.Post("/signin", authHandler.SignIn)
	auth.Post("/password/forgot", authHandler.ForgotPassword)
	auth.Post("/password/reset", authHandler.ResetPassword)
	auth.Get("/:provider/consent", authHandler.GetConsentURL)
	auth.Get("/:provider/callback", authHandler.Callback)
	auth.Post("/exchange", authHandler.ExchangeCode)
	auth.Post("/refresh", authHandler.RefreshToken)
	auth.Post("/logout", authHandler.Logout)

	api.Get("/plans", planHandler.List)
	api.Get("/health", healthHandler.Check)

	protected := api.Group("")
	protected.Use(authmw.Auth(jwtService))

	protected.Post("/auth/logout-all", authHandler.LogoutAll)

	protected.Get("/users/me", userHandler.GetMe)
	protected.Patch("/users/me", userHandler.UpdateMe)
	protected.Get("/users/me/session", userHandler.GetSession)
	protected.Patch("/users/me/primary-family", userHandler.SwitchPrimaryFamily)

	protected.Get("/families", familyHandler.List)
	protected.Post("/families", familyHandler.Create)
	protected.Get("/families/:familyId", familyHandler.Get)
	protected.Post("/families/:familyId/members", familyHandler.AddMember)
	protected.Delete("/families/:familyId/members/:userId", familyHandler.RemoveMember)

	protected.Get("/families/:familyId/invites", inviteHandler.ListPending)
	protected.Post("/families/:familyId/invites", inviteHandler.Create)
	protected.Delete("/families/:familyId/invites/:inviteId", inviteHandler.Revoke)
	protected.Post("/families/:familyId/invites/:inviteId/redeem", inviteHandler.RedeemByID)
	protected.Post("/invites/redeem", inviteHandler.RedeemByToken)
	protected.Post("/invites/redeem-code", inviteHandler.RedeemByCode)

	protected.Get("/families/:familyId/lists", listHandler.ListByFamily)
	protected.Post("/families/:familyId/lists", listHandler.Create)
	protected.Get("/lists/:listId", listHandler.Get)
	protected.Delete("/lists/:listId", listHandler.Delete)
	protected.Post("/lists/:listId/items", listHandler.AddItem)
	protected.Patch("/lists/:listId/items/:itemId", listHandler.ToggleItem)
	protected.Delete("/lists/:listId/items/:itemId", listHandler.DeleteItem)

	protected.Get("/events", sseHandler.Connect)
	protected.Post("/sse/:clientId/subscribe/:familyId", sseHandler.Subscribe)
	protected.Post("/sse/:clientId/unsubscribe/:familyId", sseHandler.Unsubscribe)

	admin := protected.Group("/admin")
	admin.Use(authmw.RequireMaster())
	admin.Post("/masters", adminHandler.PromoteMaster)
	admin.Post("/recount-seats", adminHandler.RecountSeats)

	// Public invite landing page (no auth required)
	app.Get("/invite/:token", inviteHandler.ViewInvite)

	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats, err := tokenService.CleanupExpired(ctx)
				if err != nil {
					log.WithError(err).Warn("token cleanup failed")
					continue
				}
				log.WithFields(log.Fields{
					"refresh_tokens":  stats.RefreshTokens,
					"password_resets": stats.PasswordResets,
				}).Debug("expired tokens removed")
			}
		}
	}()

	metricsServer := startMetricsServer(cfg.MetricsAddr, m)

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		log.WithField("addr", addr).Info("Server starting")
		if err := app.Run(addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down server...")
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
}

func configureLogging(cfg *config.Config) {
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// loadCatalog prefers a plan file when one is configured, then the plans
// table, then the built-in defaults.
func loadCatalog(ctx context.Context, cfg *config.Config, planService *services.PlanService) (*entitlement.Catalog, error) {
	if cfg.PlansFile != "" {
		plans, err := entitlement.LoadCatalogFile(cfg.PlansFile)
		if err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{"file": cfg.PlansFile, "plans": len(plans)}).Info("plan catalog loaded from file")
		return entitlement.NewCatalog(plans...), nil
	}
	return planService.Catalog(ctx)
}

func startMetricsServer(addr string, m *metrics.Metrics) *http.Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.WithField("addr", addr).Info("Metrics server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server failed")
		}
	}()
	return srv
}
