package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"gatehouse/api"
	"gatehouse/config"
	"gatehouse/internal/token"
	"gatehouse/store"
	bboltstore "gatehouse/store/bbolt"
	memorystore "gatehouse/store/memory"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the credential store server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.ValidateServer(); err != nil {
			return err
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

		var repo store.Repository
		if cfg.DBPath == "" {
			repo = memorystore.NewRepository()
			logger.Warn("no db_path configured, using in-memory store")
		} else {
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
				return fmt.Errorf("creating data directory: %w", err)
			}
			bs, err := bboltstore.NewRepositoryFromFile(cfg.DBPath, nil)
			if err != nil {
				return fmt.Errorf("opening user store: %w", err)
			}
			defer bs.Close()
			repo = bs
		}

		if err := bootstrapAdmin(cmd.Context(), repo, cfg, logger); err != nil {
			return err
		}

		issuer, err := token.NewIssuer([]byte(cfg.TokenSecret), token.WithTTL(cfg.TokenTTL))
		if err != nil {
			return err
		}

		a := api.New(repo, issuer, api.WithLogger(logger))

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})
		if cfg.MetricsEnabled {
			r.Method(http.MethodGet, "/metrics", a.MetricsHandler())
		}

		r.Mount("/api", a.Router())

		server := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		logger.Info("server started", "addr", cfg.ListenAddr, "db", cfg.DBPath)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

// bootstrapAdmin seeds the initial admin account on an empty store.
func bootstrapAdmin(ctx context.Context, repo store.Repository, cfg *config.AppConfig, logger *slog.Logger) error {
	users, err := repo.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("checking for existing users: %w", err)
	}
	if len(users) > 0 {
		return nil
	}
	if cfg.Bootstrap.AdminPassword == "" {
		logger.Warn("store is empty and no bootstrap admin password configured; no accounts exist")
		return nil
	}

	username, err := store.NormalizeUsername(cfg.Bootstrap.AdminUsername)
	if err != nil {
		return fmt.Errorf("bootstrap admin username: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Bootstrap.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := &store.User{
		Username:     username,
		PasswordHash: hash,
		IsAdmin:      true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("creating bootstrap admin: %w", err)
	}
	logger.Info("bootstrap admin created", "username", username)
	return nil
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
