package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/cors"

	"ausschreibungen/db"
	"ausschreibungen/db/migrations"
	"ausschreibungen/internal/attach"
	"ausschreibungen/internal/audit"
	"ausschreibungen/internal/auth"
	"ausschreibungen/internal/config"
	"ausschreibungen/internal/folders"
	"ausschreibungen/internal/handlers"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	if cfg.PostgresConn == "" {
		logger.Error("POSTGRES_CONN env variable is not set")
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET env variable is not set")
		os.Exit(1)
	}

	dbConn, err := sqlx.Connect("postgres", cfg.PostgresConn)
	if err != nil {
		logger.Error("cannot connect to DB", "err", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	if err := migrations.Run(context.Background(), dbConn.DB); err != nil {
		logger.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		logger.Error("cannot create base directory", "dir", cfg.BaseDir, "err", err)
		os.Exit(1)
	}

	store := db.NewStorage(dbConn)
	locks := attach.NewPathLock()
	files := attach.NewStore(locks)
	binder := folders.NewBinder(cfg.BaseDir, locks, logger)
	recorder := audit.NewRecorder(store, logger)
	authSvc := auth.NewService(cfg.JWTSecret, 0)
	h := handlers.NewHandler(store, files, binder, recorder, authSvc, cfg.AuditExportMax, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler)
	r.Use(authSvc.Middleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)
		r.Post("/login", h.LoginHandler)

		// Ausschreibungen
		r.Get("/ausschreibungen", h.ListAusschreibungenHandler)
		r.Get("/ausschreibungen/columns", h.ColumnsHandler)
		r.With(h.RequireWriter).Post("/ausschreibungen", h.CreateAusschreibungHandler)
		r.With(h.RequireWriter).Patch("/ausschreibungen/{id}", h.UpdateAusschreibungHandler)
		r.With(h.RequireWriter).Delete("/ausschreibungen/{id}", h.DeleteAusschreibungHandler)

		// Verzeichnis (attachment folders)
		r.Get("/verzeichnis/{id}", h.VerzeichnisHandler)
		r.With(h.RequireWriter).Post("/verzeichnis/{id}", h.UploadHandler)
		r.With(h.RequireAuth).Delete("/verzeichnis/{id}", h.DeleteFileHandler)

		// Audit (admins only)
		r.With(h.RequireAdmin).Get("/audit", h.AuditQueryHandler)
		r.With(h.RequireAdmin).Get("/audit/export", h.AuditExportHandler)

		// Dashboard
		r.Get("/kpis", h.KPIsHandler)
		r.Get("/by_month", h.ByMonthHandler)
	})

	logger.Info("starting server", "addr", cfg.ServerAddress, "baseDir", cfg.BaseDir)
	if err := http.ListenAndServe(cfg.ServerAddress, r); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
