// Package server is the composition root: it opens the database, wires the
// services and handlers together, defines every route and runs the HTTP
// server with graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/expense-tracker/internal/auth"
	"github.com/sakif/expense-tracker/internal/handler"
	"github.com/sakif/expense-tracker/internal/marketdata"
	"github.com/sakif/expense-tracker/internal/middleware"
	sqliteRepo "github.com/sakif/expense-tracker/internal/repository/sqlite"
	"github.com/sakif/expense-tracker/internal/service"
)

// Config holds everything the server needs from the environment.
type Config struct {
	Port          int
	DBPath        string
	JWTSecret     string // empty disables JWT issuance and /api/me
	MarketDataURL string // empty uses the NSE default
	RedisAddr     string // empty disables the market-data cache
}

// Server owns the router and the resources that must be closed on shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	redis  *redis.Client
}

// New opens the database and assembles the full dependency chain. Handlers
// see only services; services see only repository interfaces.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if cfg.RedisAddr != "" {
		s.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	var tokens *auth.TokenService
	if s.config.JWTSecret != "" {
		var err error
		tokens, err = auth.NewTokenService(s.config.JWTSecret)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
	}

	passwords := auth.NewPasswordService()
	accounts := service.NewAccountService(s.db, passwords, tokens, s.logger)
	ledger := service.NewLedgerService(s.db, s.db, s.logger)
	portfolio := service.NewPortfolioService(s.db, s.db, s.logger)
	market := marketdata.NewClient(s.config.MarketDataURL, s.redis, s.logger)

	accountH := handler.NewAccountHandler(accounts, s.logger)
	ledgerH := handler.NewLedgerHandler(ledger, s.logger)
	portfolioH := handler.NewPortfolioHandler(portfolio, s.logger)
	marketH := handler.NewMarketHandler(market)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", handler.HandleHealth)

		r.Post("/register/", accountH.HandleRegister)
		r.Post("/login/", accountH.HandleLogin)

		// /api/me is the only token-protected route; everything else
		// identifies the caller by rider_id.
		if tokens != nil {
			r.With(auth.RequireAuth(tokens)).Get("/me", accountH.HandleMe)
		}

		r.Get("/user-info/", accountH.HandleUserInfo)
		r.Post("/personal-info/", accountH.HandlePersonalInfo)
		r.Post("/personal-info/update/", accountH.HandlePersonalInfoUpdate)

		r.Get("/profile/", accountH.HandleProfileGet)
		r.Post("/profile/", accountH.HandleProfileUpdate)
		r.Post("/profile/change-email/", accountH.HandleChangeEmail)
		r.Put("/profile/change-password/", accountH.HandleChangePassword)
		r.Delete("/profile/delete-account/", accountH.HandleDeleteAccount)

		r.Post("/income/add/", ledgerH.HandleAddIncome)
		r.Post("/expense/add/", ledgerH.HandleAddExpense)
		r.Get("/dashboard/", ledgerH.HandleDashboard)
		r.Get("/transactions/recent/", ledgerH.HandleRecentTransactions)

		r.Post("/funds/add/", portfolioH.HandleAddFund)
		r.Get("/funds/", portfolioH.HandleListFunds)
		r.Post("/funds/update/{fundID}/", portfolioH.HandleUpdateFund)
		r.Delete("/funds/delete/", portfolioH.HandleDeleteFund)
		r.Get("/portfolio/summary/", portfolioH.HandleSummary)

		r.Get("/riders/all/", accountH.HandleRiders)
		r.Get("/riders/by-email/", accountH.HandleRiderByEmail)
		r.Post("/riders/verify/", accountH.HandleVerifyRider)

		r.Get("/market-data/", marketH.HandleMarketData)
	})

	return nil
}

// Start runs the server until SIGINT/SIGTERM, then drains in-flight
// requests and closes the database (and Redis, when configured).
func (s *Server) Start() error {
	defer s.db.Close()
	if s.redis != nil {
		defer s.redis.Close()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		s.logger.Info("server stopped")
		return nil
	}
}
