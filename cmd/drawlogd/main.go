// drawlogd serves the draw history API for the rule-picker widget.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/redlantern-games/drawlog/internal/config"
	"github.com/redlantern-games/drawlog/internal/history"
	"github.com/redlantern-games/drawlog/internal/httpapi"
	"github.com/redlantern-games/drawlog/internal/logging"
	"github.com/redlantern-games/drawlog/internal/metrics"
	"github.com/redlantern-games/drawlog/internal/middleware"
	"github.com/redlantern-games/drawlog/internal/server"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config overlay")
	flag.Parse()

	// A missing .env file is fine; explicit environment wins either way.
	_ = godotenv.Load()

	log := logging.New("drawlogd")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	log.SetLevelFromString(cfg.LogLevel)

	var store history.Store
	if cfg.UseRemote() {
		store, err = history.NewSupabaseStore(history.SupabaseConfig{
			URL:    cfg.SupabaseURL,
			APIKey: cfg.SupabaseAnonKey,
		})
		if err != nil {
			log.WithError(err).Fatal("failed to configure Supabase backend")
		}
		log.Info("using Supabase backend")
	} else {
		store = history.NewMemoryStore()
		log.Warn("Supabase credentials not set, using in-memory backend; history is lost on restart")
	}

	svc := history.NewService(store, log)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", httpapi.NewHandler(svc, log))

	var handler http.Handler = mux
	if cfg.RateLimit > 0 {
		handler = middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst, log).Handler(handler)
	}
	handler = middleware.NewTracingMiddleware(log).Handler(handler)
	handler = middleware.NewCORSMiddleware(cfg.AllowedOrigins).Handler(handler)
	handler = metrics.InstrumentHandler(handler)

	srv, err := server.Start(handler, cfg.Port, log)
	if err != nil {
		log.WithError(err).Fatal("failed to start server")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("shutdown did not complete cleanly")
	}
}
