package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"serviceflow/auth"
	"serviceflow/billing"
	"serviceflow/catalog"
	"serviceflow/db"
	"serviceflow/issue"
	"serviceflow/notify"
	"serviceflow/request"
	"serviceflow/sequence"
	"serviceflow/vendordir"
)

func main() {
	ctx := context.Background()

	connString := os.Getenv("DATABASE_URL")
	pool, err := db.NewPool(ctx, connString)
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	codes := sequence.NewAllocator(sequence.NewPGCounterStore(pool))

	vendorSvc := vendordir.NewService(vendordir.NewRepository(pool), codes)

	server := &Server{
		authService:    auth.NewService(auth.NewRepository(pool), codes, jwtSecret),
		requestService: request.NewService(pool, request.NewRepository(pool), vendorSvc, notify.NewPGOutboxDispatcher(pool), codes),
		vendorService:  vendorSvc,
		catalogService: catalog.NewService(catalog.NewRepository(pool)),
		issueService:   issue.NewService(issue.NewRepository(pool)),
		billingService: billing.NewService(billing.NewPGRepository(pool), codes),
	}

	log.Printf("api listening on %s", addr)
	if err := http.ListenAndServe(addr, server.Routes()); err != nil {
		log.Fatalf("http server: %v", err)
	}
}
