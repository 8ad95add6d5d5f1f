package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/module-mind/internal/authstate"
	"github.com/pribylovaa/module-mind/internal/browser"
	"github.com/pribylovaa/module-mind/internal/config"
	mmhttp "github.com/pribylovaa/module-mind/internal/http"
	"github.com/pribylovaa/module-mind/internal/http/handlers"
	"github.com/pribylovaa/module-mind/internal/http/middleware"
	"github.com/pribylovaa/module-mind/internal/identity"
	"github.com/pribylovaa/module-mind/internal/identity/gotrue"
	"github.com/pribylovaa/module-mind/internal/identity/local"
	"github.com/pribylovaa/module-mind/internal/media"
	"github.com/pribylovaa/module-mind/internal/metrics"
	"github.com/pribylovaa/module-mind/internal/progress"
	"github.com/pribylovaa/module-mind/internal/storage"
	"github.com/pribylovaa/module-mind/internal/storage/memory"
	"github.com/pribylovaa/module-mind/internal/storage/minio"
	"github.com/pribylovaa/module-mind/internal/storage/mongo"
	"github.com/pribylovaa/module-mind/internal/storage/postgres"
	"github.com/pribylovaa/module-mind/internal/storage/redis"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// pinger — зависимость, проверяемая /healthz.
type pinger func(ctx context.Context) error

func main() {
	var configPath, confirmEmail string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.StringVar(&confirmEmail, "confirm-email", "", "mark a local account as confirmed and exit (driver=local)")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting module-mind", "env", cfg.Env, "provider", cfg.Provider.Driver)

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	if confirmEmail != "" {
		if err := confirmLocalAccount(rootCtx, cfg, confirmEmail); err != nil {
			log.Error("account_confirm_failed", slog.String("err", err.Error()))
			rootCancel()
			os.Exit(1)
		}
		return
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	var checks []pinger

	// Хранилище браузерных контекстов: Redis или память процесса.
	var ctxStore storage.ContextStorage
	if cfg.Redis.URL != "" {
		rs, err := redis.New(rootCtx, cfg.Redis.URL, cfg.Redis.Prefix, cfg.Browser.StateTTL)
		if err != nil {
			log.Error("redis_init_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
		ctxStore = rs
		checks = append(checks, rs.Ping)
		log.Info("context_store", slog.String("driver", "redis"))
	} else {
		ctxStore = memory.NewContextStore(memory.WithStateTTL(cfg.Browser.StateTTL))
		log.Info("context_store", slog.String("driver", "memory"))
	}
	defer func() {
		if err := ctxStore.Close(); err != nil {
			log.Warn("context_store_close_failed", slog.String("err", err.Error()))
		}
	}()

	// Прогресс: MongoDB или память процесса.
	var progressStore storage.ProgressStorage
	if cfg.Mongo.URL != "" {
		mg, err := mongo.New(rootCtx, cfg.Mongo.URL)
		if err != nil {
			log.Error("mongo_init_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mg.Close(ctx); err != nil {
				log.Warn("mongo_close_failed", slog.String("err", err.Error()))
			}
		}()
		progressStore = mg
		checks = append(checks, mg.Ping)
		log.Info("progress_store", slog.String("driver", "mongo"))
	} else {
		progressStore = memory.NewProgressStore()
		log.Info("progress_store", slog.String("driver", "memory"))
	}

	signer, err := minio.New(rootCtx, cfg.S3, cfg.Media.Bucket)
	if err != nil {
		log.Error("minio_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	// Провайдер идентичности.
	var provider identity.Provider
	switch cfg.Provider.Driver {
	case config.DriverLocal:
		pg, err := postgres.New(rootCtx, cfg.DB.DatabaseURL)
		if err != nil {
			log.Error("postgres_init_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
		defer pg.Close()
		checks = append(checks, pg.Ping)

		lp := local.New(pg, local.Config{
			JWTSecret:           cfg.LocalAuth.JWTSecret,
			Issuer:              cfg.Provider.BaseURL,
			Audience:            cfg.Provider.PublicKey,
			AccessTokenTTL:      cfg.LocalAuth.AccessTokenTTL,
			RefreshTokenTTL:     cfg.LocalAuth.RefreshTokenTTL,
			RequireConfirmation: cfg.LocalAuth.RequireConfirmation,
		})
		lp.StartJanitor(rootCtx, cfg.LocalAuth.JanitorInterval)
		provider = lp
	default:
		provider = gotrue.New(gotrue.Config{
			BaseURL:   cfg.Provider.BaseURL,
			PublicKey: cfg.Provider.PublicKey,
			Timeout:   cfg.Provider.RequestTimeout,
		}, nil)
	}

	reg := browser.NewRegistry(browser.Deps{
		Provider: provider,
		Store:    ctxStore,
		Signer:   signer,
		Metrics:  m,
	}, browser.Config{
		SessionTTL:      cfg.LocalAuth.RefreshTokenTTL,
		IdleTTL:         cfg.Browser.IdleTTL,
		JanitorInterval: cfg.Browser.JanitorInterval,
		MaxContexts:     cfg.Browser.MaxContexts,
		Auth: authstate.Config{
			RefreshInterval: cfg.Session.RefreshInterval,
			SafetyWindow:    cfg.Session.SafetyWindow,
			DefaultPath:     cfg.Session.DefaultPath,
			SignedOutPath:   cfg.Session.SignedOutPath,
			RecoveryPath:    cfg.Session.RecoveryPath,
		},
		Media: media.Config{
			Validity:        cfg.Media.Validity,
			RefreshInterval: cfg.Media.RefreshInterval,
			Margin:          cfg.Media.Margin,
			MaxPlayers:      cfg.Media.MaxPlayers,
		},
	})
	reg.StartJanitor(rootCtx)
	defer reg.Close()

	var ready int32 // 0 — not ready; 1 — ready

	handler := mmhttp.NewRouter(reg, handlers.New(progress.New(progressStore)), mmhttp.Options{
		Logger:  log,
		Timeout: cfg.Timeouts.Service,
		Cookie: middleware.CookieOptions{
			Name:   cfg.Browser.CookieName,
			Secure: cfg.Browser.CookieSecure,
			MaxAge: int(cfg.LocalAuth.RefreshTokenTTL / time.Second),
		},
		Metrics: promhttp.Handler(),
		Ready: func(ctx context.Context) error {
			if atomic.LoadInt32(&ready) != 1 {
				return errors.New("starting")
			}
			for _, check := range checks {
				if err := check(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	})

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", httpAddr)
	if err != nil {
		log.Error("http_listen_failed", slog.String("addr", httpAddr), slog.String("err", err.Error()))
		os.Exit(1)
	}

	log.Info("http_listen_start", slog.String("addr", httpAddr))

	serveErrCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	atomic.StoreInt32(&ready, 1)
	log.Info("module_mind_ready")

	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			log.Error("http_serve_failed", slog.String("err", err.Error()))
		}
	}

	atomic.StoreInt32(&ready, 0)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_incomplete", slog.String("err", err.Error()))
	} else {
		log.Info("http_stopped")
	}

	log.Info("service_stopped")
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

// confirmLocalAccount подтверждает учётную запись локального провайдера
// вместо письма со ссылкой подтверждения.
func confirmLocalAccount(ctx context.Context, cfg *config.Config, email string) error {
	if cfg.Provider.Driver != config.DriverLocal {
		return fmt.Errorf("--confirm-email requires provider driver %q", config.DriverLocal)
	}

	pg, err := postgres.New(ctx, cfg.DB.DatabaseURL)
	if err != nil {
		return err
	}
	defer pg.Close()

	lp := local.New(pg, local.Config{JWTSecret: cfg.LocalAuth.JWTSecret})
	_, err = lp.ConfirmEmail(ctx, email)

	return err
}
