package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/alonc7/chatapp-go/internal/config"
	"github.com/alonc7/chatapp-go/internal/docstore"
	"github.com/alonc7/chatapp-go/internal/docstore/gateway"
	"github.com/alonc7/chatapp-go/internal/docstore/memstore"
	"github.com/alonc7/chatapp-go/internal/docstore/redisstore"
	"github.com/alonc7/chatapp-go/internal/metrics"
	"github.com/alonc7/chatapp-go/internal/prefs"
	"github.com/alonc7/chatapp-go/internal/push"
	"github.com/alonc7/chatapp-go/internal/session"
	"github.com/alonc7/chatapp-go/internal/ui"
)

// Version is injected via -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	var cfgPaths string
	flag.StringVar(&cfgPaths, "c", "./config.yml", "config file path (supports: a.yml,b.yml)")
	flag.Parse()

	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg, err := config.Load(cfgPaths)
	if err != nil {
		log.Fatal("load config failed", zap.Error(err))
	}
	log.Info("chatapp starting", zap.String("version", Version), zap.String("backend", cfg.Backend))

	metrics.Register()
	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("store init failed", zap.Error(err))
	}
	defer closeStore()

	p, err := prefs.Open(cfg.Prefs.Path)
	if err != nil {
		log.Fatal("prefs init failed", zap.Error(err))
	}

	app := &ui.App{
		Store:    store,
		Sessions: session.NewManager(store, p, log),
		Tokens:   &push.DeviceTokens{Prefs: p},
		Log:      log,
		In:       os.Stdin,
		Out:      os.Stdout,
	}
	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("app error", zap.Error(err))
	}
	log.Info("chatapp exiting")
}

func openStore(ctx context.Context, cfg *config.Config) (docstore.Store, func() error, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		s, err := redisstore.New(redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
			Timeout:  cfg.Redis.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.BackendGateway:
		c, err := gateway.Dial(ctx, cfg.Gateway.URL, gateway.Options{
			OpTimeout:    cfg.Gateway.OpTimeout,
			WriteTimeout: cfg.Gateway.WriteTimeout,
			QueueSize:    cfg.Gateway.QueueSize,
		})
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	default:
		s := memstore.New()
		return s, s.Close, nil
	}
}

func serveMetrics(addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 2 * time.Second,
	}
	log.Info("metrics listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("metrics server error", zap.Error(err))
	}
}
