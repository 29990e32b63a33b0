package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Adhamjon1112/Kirim-Chiqim/internal/auth"
	"github.com/Adhamjon1112/Kirim-Chiqim/internal/config"
	"github.com/Adhamjon1112/Kirim-Chiqim/internal/handlers"
	"github.com/Adhamjon1112/Kirim-Chiqim/internal/models"
	"github.com/Adhamjon1112/Kirim-Chiqim/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		logger.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := bootstrapAdmin(db, cfg, logger); err != nil {
		logger.Fatalf("Failed to bootstrap admin user: %v", err)
	}

	h := handlers.NewHandlers(db, cfg.TemplateDir, cfg.SecureCookie, logger)
	router := setupRouter(h, cfg.StaticDir)

	// Purge expired sessions in the background.
	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@hourly", func() {
		if err := db.CleanExpiredSessions(); err != nil {
			logger.WithError(err).Error("session cleanup failed")
		}
	}); err != nil {
		logger.Fatalf("Failed to schedule session cleanup: %v", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Infof("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}

// setupRouter wires all routes. Transaction routes sit behind the auth
// middleware; everything is behind the request logger.
func setupRouter(h *handlers.Handlers, staticDir string) *mux.Router {
	r := mux.NewRouter()
	r.Use(h.RequestLogger)

	r.PathPrefix("/static/").Handler(
		http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))

	r.HandleFunc("/", h.LoginForm).Methods("GET")
	r.HandleFunc("/login", h.LoginForm).Methods("GET")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/register", h.RegisterForm).Methods("GET")
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/logout", h.Logout).Methods("GET")

	authed := r.PathPrefix("/").Subrouter()
	authed.Use(h.AuthMiddleware)
	authed.HandleFunc("/home", h.Home).Methods("GET")
	authed.HandleFunc("/create", h.CreateTransactionForm).Methods("GET")
	authed.HandleFunc("/create", h.CreateTransaction).Methods("POST")
	authed.HandleFunc("/update/{id:[0-9]+}", h.UpdateTransactionForm).Methods("GET")
	authed.HandleFunc("/update/{id:[0-9]+}", h.UpdateTransaction).Methods("POST")
	authed.HandleFunc("/delete/{id:[0-9]+}", h.DeleteTransactionForm).Methods("GET")
	authed.HandleFunc("/delete/{id:[0-9]+}", h.DeleteTransaction).Methods("POST")

	return r
}

// bootstrapAdmin seeds the first superuser account from ADMIN_USER and
// ADMIN_PASSWORD when the user table is empty.
func bootstrapAdmin(db *storage.DB, cfg *config.Config, logger *logrus.Logger) error {
	if cfg.AdminUser == "" {
		return nil
	}

	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	admin := &models.User{
		FirstName:    "Admin",
		LastName:     "User",
		Username:     cfg.AdminUser,
		PasswordHash: hash,
		IsStaff:      true,
		IsSuperuser:  true,
		IsActive:     true,
	}
	if err := db.CreateUser(admin); err != nil {
		return err
	}

	logger.WithField("username", admin.Username).Info("bootstrapped admin user")
	return nil
}
