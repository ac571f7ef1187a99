package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"locumdesk.org/internal/httpapi"
	"locumdesk.org/internal/obs"
	"locumdesk.org/internal/store/mem"
	"locumdesk.org/internal/store/pg"
	"locumdesk.org/internal/tenancy"
)

var version = "0.3.0"

func main() {
	_ = godotenv.Load()
	obs.Init()

	var (
		store tenancy.Store
		probe httpapi.ReadyProbe
	)
	var pgStore *pg.Store
	if dsn := os.Getenv("LOCUMDESK_PG_DSN"); dsn != "" {
		var err error
		pgStore, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store = pgStore
		probe = httpapi.ReadyProbe{DB: pgStore.DB()}
	} else {
		// Ephemeral store for local development without Postgres.
		log.Println("LOCUMDESK_PG_DSN not set, using in-memory store")
		store = mem.New()
	}

	opts := []tenancy.ServiceOption{}
	if os.Getenv("LOCUMDESK_REQUIRE_VERIFIED_EMAIL") == "true" {
		opts = append(opts, tenancy.WithRequireVerifiedEmail(true))
	}
	svc, err := tenancy.NewService(store, opts...)
	if err != nil {
		log.Fatalf("tenancy service: %v", err)
	}

	api := httpapi.New(svc, probe, version)

	addr := os.Getenv("LOCUMDESK_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting locumdesk-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}
