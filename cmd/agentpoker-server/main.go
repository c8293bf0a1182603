package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"agentpoker/internal/analytics"
	"agentpoker/internal/archive"
	"agentpoker/internal/collusion"
	"agentpoker/internal/events"
	"agentpoker/internal/gateway"
	"agentpoker/internal/identity"
	"agentpoker/internal/table"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatalf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open postgres connection: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping postgres: %v", err)
	}

	identityStore := identity.NewPostgresStore(db)
	archiveStore := archive.NewPostgresStore(db)
	pairStore := collusion.NewPostgresStore(db)
	for name, create := range map[string]func(context.Context) error{
		"agents":       identityStore.CreateAgentsTable,
		"hand_history": archiveStore.CreateTables,
		"agent_pairs":  pairStore.CreatePairsTable,
	} {
		if err := create(ctx); err != nil {
			log.Fatalf("Failed to create %s tables: %v", name, err)
		}
	}

	sink := newAnalyticsSink(ctx)
	producer := newEventProducer()

	accumulator := collusion.New(gateway.NewPairUpdateHook(pairStore, sink, producer))
	if pairs, err := pairStore.LoadAll(ctx); err != nil {
		log.Printf("Failed to load persisted agent pairs: %v", err)
	} else {
		accumulator.Warm(pairs)
	}

	registry := table.NewRegistry(ctx, archiveStore, gateway.NewHandCommitHook(gateway.Fanout{
		Identity:  identityStore,
		Archive:   archiveStore,
		Collusion: accumulator,
		Analytics: sink,
		Events:    producer,
	}))
	registry.OnEvict(gateway.NewEvictHook(identityStore))

	server := gateway.NewServer(gateway.Config{
		AdminKey: os.Getenv("ADMIN_KEY"),
	}, identityStore, registry, archiveStore, accumulator)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      server.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP shutdown: %v", err)
		}
		server.Shutdown(shutdownCtx)
		if producer != nil {
			if err := producer.Close(); err != nil {
				log.Printf("Kafka producer close: %v", err)
			}
		}
		if sink != nil {
			if err := sink.Close(); err != nil {
				log.Printf("ClickHouse sink close: %v", err)
			}
		}
		cancel()
	}()

	log.Printf("Agent poker server starting on port %s", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// newAnalyticsSink connects the optional ClickHouse sink, or returns nil
// when CLICKHOUSE_HOST is unset. The core contract never depends on it.
func newAnalyticsSink(ctx context.Context) *analytics.Sink {
	host := os.Getenv("CLICKHOUSE_HOST")
	if host == "" {
		return nil
	}
	port := 9000
	if raw := os.Getenv("CLICKHOUSE_PORT"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			port = n
		}
	}
	sink, err := analytics.NewSink(ctx, analytics.Config{
		Host:     host,
		Port:     port,
		Database: envOr("CLICKHOUSE_DATABASE", "default"),
		Username: envOr("CLICKHOUSE_USERNAME", "default"),
		Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		Secure:   os.Getenv("CLICKHOUSE_SECURE") == "true",
	})
	if err != nil {
		log.Printf("ClickHouse unavailable, analytics disabled: %v", err)
		return nil
	}
	if err := sink.CreateTables(ctx); err != nil {
		log.Printf("ClickHouse table creation failed, analytics disabled: %v", err)
		return nil
	}
	log.Printf("Analytics sink connected to ClickHouse at %s:%d", host, port)
	return sink
}

// newEventProducer connects the optional Kafka event bus, or returns nil
// when KAFKA_BROKERS is unset.
func newEventProducer() *events.Producer {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		return nil
	}
	producer, err := events.NewProducer(events.ProducerConfig{
		Brokers:      strings.Split(brokers, ","),
		HandTopic:    envOr("KAFKA_HAND_TOPIC", "poker.hands.completed"),
		WatchTopic:   envOr("KAFKA_WATCHLIST_TOPIC", "poker.collusion.flagged"),
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
	})
	if err != nil {
		log.Printf("Kafka unavailable, event bus disabled: %v", err)
		return nil
	}
	log.Printf("Event bus connected to Kafka at %s", brokers)
	return producer
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
