package main

import (
	"context"
	"flag"
	"fmt"

	"go.uber.org/zap"

	"social-backend/backend/internal/account"
	"social-backend/backend/internal/docstore"
	"social-backend/backend/internal/graph"
	"social-backend/backend/internal/social"
	"social-backend/backend/pkg/config"
	"social-backend/backend/pkg/logger"
)

func main() {
	reset := flag.Bool("reset", false, "Delete every projected friendship before replaying")
	flag.Parse()

	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting friendship projection replay...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.StoreDriver != config.StoreDriverMongo {
		log.Fatal("Replay needs the mongo store", zap.String("store", cfg.StoreDriver))
	}

	ctx := context.Background()
	storeCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	store, err := docstore.NewMongoStore(storeCtx, cfg.MongoURI, cfg.MongoDatabase)
	cancel()
	if err != nil {
		log.Fatal("Failed to connect to document store", zap.Error(err))
	}
	defer store.Close(ctx)

	driver, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		log.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}
	repo := graph.NewRepository(driver)
	defer repo.Close(ctx)

	if err := repo.EnsureConstraints(ctx); err != nil {
		log.Warn("Failed to ensure constraints (may already exist)", zap.Error(err))
	}

	if *reset {
		log.Info("Clearing projected friendships...")
		if err := repo.ClearFriendships(ctx); err != nil {
			log.Fatal("Failed to clear friendships", zap.Error(err))
		}
	}

	manager := social.NewManager(store, account.NewDirectory(store))
	linked, err := manager.ReplayProjection(ctx, repo)
	if err != nil {
		log.Fatal("Replay failed", zap.Int("linked", linked), zap.Error(err))
	}

	log.Info("Replay completed successfully!", zap.Int("linked", linked))
}
