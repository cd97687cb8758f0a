package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"social-backend/backend/pkg/logger"
)

// Repository projects friendships into Neo4j and answers traversal queries over them
type Repository struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewRepository creates a new graph repository
func NewRepository(driver neo4j.DriverWithContext) *Repository {
	return &Repository{
		driver: driver,
		logger: logger.Named("graph"),
	}
}

// Connect opens a driver and verifies the server is reachable
func Connect(ctx context.Context, uri, user, password string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify neo4j connectivity: %w", err)
	}
	return driver, nil
}

// Close closes the Neo4j driver connection
func (r *Repository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

// EnsureConstraints creates the uniqueness constraint on account nodes
func (r *Repository) EnsureConstraints(ctx context.Context) error {
	return r.write(ctx, "ensure constraints", `
		CREATE CONSTRAINT account_id IF NOT EXISTS
		FOR (a:Account) REQUIRE a.id IS UNIQUE
	`, nil)
}

func (r *Repository) write(ctx context.Context, operation, query string, params map[string]interface{}) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", operation, err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return fmt.Errorf("failed to %s: %w", operation, err)
	}
	return nil
}
