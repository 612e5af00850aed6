package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/calvinwijaya/minigames-be/internal/api"
	"github.com/calvinwijaya/minigames-be/internal/auth"
	"github.com/calvinwijaya/minigames-be/internal/clock"
	"github.com/calvinwijaya/minigames-be/internal/config"
	"github.com/calvinwijaya/minigames-be/internal/db"
	"github.com/calvinwijaya/minigames-be/internal/remote"
	"github.com/calvinwijaya/minigames-be/internal/score"
	"github.com/calvinwijaya/minigames-be/internal/store"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	log, err := newLogger(cfg.LogDev)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize the database
	var database *db.Database
	if cfg.DBDriver != config.NoDatabase {
		if cfg.DBDriver == db.SQLite {
			if err := os.MkdirAll(filepath.Dir(cfg.DBDSN), 0755); err != nil {
				return err
			}
		}
		d, err := db.NewDatabase(cfg.DBDriver, cfg.DBDSN, log.Named("db"))
		if err != nil {
			return err
		}
		defer d.Close()
		database = d
		log.Info("database initialized", zap.String("driver", cfg.DBDriver))
	}

	opts := api.Options{
		Guard:  auth.NonEmpty(),
		Clock:  clock.Real(),
		Logger: log.Named("session"),
	}
	if database != nil {
		opts.Recorder = database
	}
	if cfg.Standalone() {
		opts.Scores = database
		log.Info("standalone mode: scores kept in the local database")
	} else {
		opts.Scores = score.NewClient(remote.Config{BaseURL: cfg.ScoreServiceURL, MaxRetries: retries(cfg)})
		log.Info("using external score service", zap.String("url", cfg.ScoreServiceURL))
	}
	if cfg.AuthServiceURL != "" {
		opts.Guard = auth.NewClient(remote.Config{BaseURL: cfg.AuthServiceURL, MaxRetries: retries(cfg)})
		log.Info("using external token validator", zap.String("url", cfg.AuthServiceURL))
	}

	sessions := store.NewMemoryStore()
	hub := api.NewHub(log.Named("ws"))
	handlers := api.NewHandlers(sessions, database, hub, opts)

	// Set up router
	r := mux.NewRouter()
	handlers.RegisterRoutes(r)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("uri", r.RequestURI),
				zap.Duration("took", time.Since(start)),
			)
		})
	})

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      c.Handler(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				handlers.ReapIdle(cfg.IdleTimeout)
			}
		}
	})
	g.Go(func() error {
		log.Info("starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		closeSessions(sessions)
		return err
	})

	return g.Wait()
}

// closeSessions stops every live session and waits for pending score writes
func closeSessions(st store.Store) {
	all, _ := st.GetAllSessions()
	for _, s := range all {
		s.Close()
	}
	for _, s := range all {
		s.Wait()
	}
}

func retries(cfg *config.Config) int {
	if cfg.ServiceRetries == 0 {
		return -1
	}
	return cfg.ServiceRetries
}
