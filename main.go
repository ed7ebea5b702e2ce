package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	config "github.com/Keoroanthony/nuomi-store/configs"
	"github.com/Keoroanthony/nuomi-store/internal/analytics"
	"github.com/Keoroanthony/nuomi-store/internal/auth"
	"github.com/Keoroanthony/nuomi-store/internal/backup"
	"github.com/Keoroanthony/nuomi-store/internal/cache"
	"github.com/Keoroanthony/nuomi-store/internal/db"
	"github.com/Keoroanthony/nuomi-store/internal/handlers"
	"github.com/Keoroanthony/nuomi-store/internal/messaging"
	"github.com/Keoroanthony/nuomi-store/internal/notifier"
	"github.com/Keoroanthony/nuomi-store/internal/orders"
	"github.com/Keoroanthony/nuomi-store/internal/products"
	"github.com/Keoroanthony/nuomi-store/internal/report"
	"github.com/Keoroanthony/nuomi-store/internal/settings"
	"github.com/Keoroanthony/nuomi-store/internal/storage"
	"github.com/Keoroanthony/nuomi-store/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server stopped", "err", err)
		os.Exit(1)
	}
}

func setupLogger(cfg *config.Config) {
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
		gin.SetMode(gin.ReleaseMode)
	}
	slog.SetDefault(slog.New(handler))
}

func run(ctx context.Context, cfg *config.Config) error {
	gdb, err := db.Init(cfg.Database)
	if err != nil {
		return err
	}
	stores := store.New(gdb)

	// ── currency cache ──
	var currencyCache cache.Cache = cache.NewMemory()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		currencyCache = cache.NewRedis(rdb, time.Hour)
		slog.Info("Using Redis currency cache", "addr", cfg.Redis.Addr)
	}

	// ── object storage ──
	var bucket *storage.Bucket
	if cfg.Storage.Bucket != "" {
		if bucket, err = storage.Open(ctx, cfg.Storage); err != nil {
			return err
		}
	} else {
		slog.Warn("No storage bucket configured, uploads are disabled")
	}

	// ── notifications ──
	var channels notifier.Multi
	if email, err := notifier.NewEmailNotifier(ctx, cfg.Email); err != nil {
		slog.Warn("Email notifications disabled", "err", err)
	} else {
		channels = append(channels, email)
	}
	if cfg.SMS.APIKey != "" {
		channels = append(channels, notifier.NewSMSNotifier(cfg.SMS, &http.Client{Timeout: 10 * time.Second},
			func(ctx context.Context, userID string) (string, error) {
				u, err := stores.Users.Get(ctx, userID)
				if err != nil {
					return "", err
				}
				return u.Phone, nil
			}))
	}

	// ── order events ──
	var publisher messaging.Publisher = messaging.Nop{}
	var inline notifier.Notifier = channels
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = messaging.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		inline = notifier.Nop{}
		go messaging.Consume(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, "nuomi-notifier",
			orders.NotifyHandler(stores.Orders, channels))
	}
	defer publisher.Close()

	orderSvc := orders.NewService(stores.Orders, stores.Products, publisher, inline)
	defer orderSvc.Wait()

	var uploader settings.Uploader
	var images products.ImageStore
	var proofs handlers.ProofUploader
	if bucket != nil {
		uploader, images, proofs = bucket, bucket, bucket
	}
	settingsSvc := settings.NewService(stores.Settings, currencyCache, uploader)

	h := &handlers.Handler{
		Orders:   orderSvc,
		Products: products.NewService(stores.Products, images),
		Settings: settingsSvc,
		Backup:   backup.NewService(stores),
		Analytics: analytics.NewService(stores.Orders, stores.Users, func(ctx context.Context) (string, error) {
			cur, err := settingsSvc.Currency(ctx)
			return cur.Symbol, err
		}),
		Users:   stores.Users,
		Uploads: proofs,
		Reports: report.NewRenderer(),
	}

	var authn *auth.Authenticator
	if cfg.OIDC.Issuer != "" {
		if authn, err = auth.New(ctx, cfg.OIDC, stores.Users); err != nil {
			return err
		}
	} else {
		slog.Warn("No OIDC issuer configured, login is disabled")
	}

	r := gin.Default()

	// ── session store ──
	sessionStore := cookie.NewStore([]byte(cfg.App.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(auth.SessionName, sessionStore))

	h.Register(r, authn)

	srv := &http.Server{Addr: cfg.App.Addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.App.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	slog.Info("Shutting down")
	return srv.Shutdown(shutdownCtx)
}
