package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"pairchat/internal/app"
	"pairchat/internal/broadcast"
	"pairchat/internal/config"
	"pairchat/internal/ratelimit"
	"pairchat/internal/server"
	"pairchat/internal/util"
	"pairchat/pkg/storage"
	"pairchat/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	util.InitLogger(cfg.LogLevel)

	sessionTTL, _ := config.ParseSessionTTL(cfg.SessionTTL)
	var sessions store.SessionStore
	switch {
	case cfg.JWTSecret != "":
		sessions = store.NewJWTSessionStore(cfg.JWTSecret, sessionTTL)
	case cfg.RedisAddr != "":
		sessions = store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, sessionTTL)
	default:
		slog.Warn("no session store configured, login will not issue tokens")
	}

	var images storage.ImageStore
	var files *storage.FileImageStore
	switch {
	case cfg.Minio.Endpoint != "":
		images, err = storage.NewMinioImageStore(cfg.Minio.Endpoint, cfg.Minio.AccessKey,
			cfg.Minio.SecretKey, cfg.Minio.Bucket, cfg.Minio.UseSSL)
		if err != nil {
			util.Fatal("failed to init minio image store", "err", err)
		}
	case cfg.UploadDir != "":
		files, err = storage.NewFileImageStore(cfg.UploadDir)
		if err != nil {
			util.Fatal("failed to init file image store", "err", err)
		}
		images = files
	default:
		slog.Warn("no image storage configured, uploads are disabled")
	}

	var mirror broadcast.Sink
	var amqpPub *broadcast.AMQPPublisher
	if cfg.AMQPURL != "" {
		exchange := cfg.AMQPExchange
		if exchange == "" {
			exchange = "pairchat.messages"
		}
		amqpPub, err = broadcast.NewAMQPPublisher(cfg.AMQPURL, exchange)
		if err != nil {
			util.Fatal("failed to init amqp publisher", "err", err)
		}
		defer amqpPub.Close()
		mirror = amqpPub
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:          cfg.DatabaseURL,
		Sessions:             sessions,
		Images:               images,
		Mirror:               mirror,
		ValidateParticipants: cfg.ValidateParticipants,
	})
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		util.Fatal("invalid trustedProxies config", "err", err)
	}

	var authLimiter *ratelimit.FixedWindowLimiter
	if cfg.AuthRateLimit > 0 && cfg.RedisAddr != "" {
		window, _ := config.ParseAuthRateWindow(cfg.AuthRateWindow)
		authLimiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword,
			"", cfg.AuthRateLimit, window)
		if err != nil {
			util.Fatal("failed to init auth rate limiter", "err", err)
		}
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		Files:          files,
		AuthLimiter:    authLimiter,
		TrustedProxies: trustedProxies,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		util.Fatal("server error", "err", err)
	}
}
