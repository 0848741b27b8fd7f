package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"craftmarket/internal/config"
	"craftmarket/internal/db"
	"craftmarket/internal/fees"
	"craftmarket/internal/gateway"
	internalhttp "craftmarket/internal/http"
	"craftmarket/internal/metrics"
	"craftmarket/internal/services"
	"craftmarket/internal/store"

	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.WithError(err).Fatal("config load failed")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}
	defer pool.Close()

	orderSvc := &services.OrderService{
		Store:         store.New(pool),
		Catalog:       store.NewCatalog(pool),
		Identity:      store.NewIdentity(pool),
		Gateway:       gateway.NewPayPal(cfg.Gateway.Env, cfg.Gateway.ClientID, cfg.Gateway.ClientSecret),
		Fees:          fees.Calculator{Percent: cfg.Orders.FeePercent},
		Metrics:       metrics.New(),
		Currency:      cfg.Orders.Currency,
		TTL:           time.Duration(cfg.Orders.TTLMinutes) * time.Minute,
		PublicBaseURL: cfg.Orders.PublicBaseURL,
	}

	h := internalhttp.NewHandler(orderSvc)
	srv := internalhttp.NewServer(h)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router,
	}

	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("api listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}
