// README: Entry point; loads config, runs migrations, wires services and
// starts the HTTP server with graceful shutdown.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rewear/internal/config"
	httptransport "rewear/internal/http"
	"rewear/internal/infra"
	"rewear/internal/maps"
	"rewear/internal/modules/address"
	"rewear/internal/modules/delivery"
	"rewear/internal/modules/donation"
	"rewear/internal/modules/driver"
	"rewear/internal/modules/item"
	"rewear/internal/modules/order"
	"rewear/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := infra.Migrate(cfg.DB.DSN, cfg.DB.MigrationsDir); err != nil {
		log.Fatal(err)
	}
	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	var routeCache maps.Cache
	if cfg.Redis.Addr != "" {
		routeCache = maps.NewRedisCache(infra.NewRedis(cfg.Redis.Addr), cfg.Routing.CacheTTL)
	}
	router, err := maps.NewRouteService(cfg.Routing.MapsAPIKey, routeCache, cfg.Routing.Timeout)
	if err != nil {
		log.Fatal(err)
	}

	var notifier notify.Notifier = notify.LogNotifier{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := infra.NewKafkaProducer(cfg.Kafka.Brokers)
		if err != nil {
			log.Fatalf("kafka init: %v", err)
		}
		defer producer.Close()
		notifier = notify.NewKafkaNotifier(producer, cfg.Kafka.Topic)
	}

	driverStore := driver.NewStore(dbPool)
	itemStore := item.NewStore(dbPool)
	addressStore := address.NewStore(dbPool)

	deliverySvc := delivery.NewService(dbPool, delivery.NewStore(dbPool),
		driverStore, itemStore,
		delivery.FirstAvailableSelector{Drivers: driverStore},
		router, notifier)

	orderStore := order.NewStore(dbPool)
	orderSvc := order.NewService(dbPool, orderStore, itemStore, addressStore,
		deliverySvc, notifier)

	donationSvc := donation.NewService(dbPool, donation.NewStore(dbPool),
		itemStore, orderSvc, orderStore, notifier)

	verifier := infra.NewJWTVerifier(cfg.Auth.JWTSecret)
	handler := httptransport.NewRouter(verifier, orderSvc, deliverySvc, donationSvc)

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("listening on %s", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
