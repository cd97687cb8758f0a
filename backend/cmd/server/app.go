package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-backend/backend/internal/account"
	"social-backend/backend/internal/api"
	"social-backend/backend/internal/auth"
	"social-backend/backend/internal/docstore"
	"social-backend/backend/internal/graph"
	"social-backend/backend/internal/ledger"
	"social-backend/backend/internal/notification"
	"social-backend/backend/internal/publication"
	"social-backend/backend/internal/realtime"
	"social-backend/backend/internal/social"
	"social-backend/backend/pkg/config"
)

// app holds the wired services and everything that needs closing on shutdown
type app struct {
	router *gin.Engine
	store  docstore.Store
	hub    *realtime.Hub
	graph  *graph.Repository
}

func openStore(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		return docstore.NewMemoryStore(), nil
	default:
		ctx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
		defer cancel()
		store, err := docstore.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

func buildApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}
	a := &app{store: store}

	var indexes []docstore.Index
	indexes = append(indexes, account.Indexes()...)
	indexes = append(indexes, social.Indexes()...)
	indexes = append(indexes, ledger.Indexes()...)
	if err := docstore.EnsureIndexes(ctx, store, indexes...); err != nil {
		a.close(ctx, log)
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}

	accounts := account.NewDirectory(store)
	notifications := notification.NewService(store)
	manager := social.NewManager(store, accounts)
	manager.SetNotifier(notifications)
	conversations := ledger.NewLedger(store, accounts)
	publications := publication.NewService(store, accounts)

	a.hub = realtime.NewHub(cfg.CORSOrigin)
	conversations.SetPublisher(a.hub)
	notifications.SetPublisher(a.hub)

	var suggester api.Suggester
	if cfg.Neo4jEnabled {
		driver, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			a.close(ctx, log)
			return nil, err
		}
		a.graph = graph.NewRepository(driver)
		if err := a.graph.EnsureConstraints(ctx); err != nil {
			log.Warn("Failed to ensure graph constraints", zap.Error(err))
		}
		manager.SetProjection(a.graph)
		suggester = a.graph
		log.Info("Friendship graph projection enabled", zap.String("uri", cfg.Neo4jURI))
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	a.router = api.NewRouter(api.Deps{
		Store:          store,
		Accounts:       accounts,
		Social:         manager,
		Ledger:         conversations,
		Notifications:  notifications,
		Publications:   publications,
		Suggester:      suggester,
		Auth:           auth.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL),
		Hub:            a.hub,
		Logger:         log,
		CORSOrigin:     cfg.CORSOrigin,
		RequestTimeout: cfg.StoreTimeout,
	})
	return a, nil
}

func (a *app) close(ctx context.Context, log *zap.Logger) {
	if a.hub != nil {
		a.hub.Close()
	}
	if a.graph != nil {
		if err := a.graph.Close(ctx); err != nil {
			log.Warn("Failed to close neo4j driver", zap.Error(err))
		}
	}
	if err := a.store.Close(ctx); err != nil {
		log.Warn("Failed to close document store", zap.Error(err))
	}
}
