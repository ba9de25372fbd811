package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"ticketdesk/auth"
	"ticketdesk/db"
	"ticketdesk/mutation"
	"ticketdesk/query"
	"ticketdesk/ticket"
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

	// Registries are built once here and never change afterwards; a name
	// collision panics before the listener starts.
	queries := query.NewRegistry()
	ticket.RegisterQueries(queries)

	mutators := mutation.NewRegistry()
	ticket.RegisterMutators(mutators)

	server := &Server{
		auth:      auth.NewService(auth.NewRepository(pool), jwtSecret),
		queries:   query.NewExecutor(queries, pool),
		mutations: mutation.NewExecutor(mutators, pool),
	}

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	log.Printf("listening on %s (%d queries, %d mutators)", addr, len(queries.Names()), len(mutators.Names()))
	if err := http.ListenAndServe(addr, server.routes()); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
