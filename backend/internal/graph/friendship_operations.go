package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// DefaultSuggestionLimit caps SuggestFriends when the caller passes no limit
const DefaultSuggestionLimit = 10

// Suggestion is a friend-of-friend candidate ranked by shared friends
type Suggestion struct {
	AccountID     string
	MutualFriends int
}

// LinkFriends records an accepted friendship between a and b. Linking twice is a no-op.
func (r *Repository) LinkFriends(ctx context.Context, a, b string) error {
	query := `
		MERGE (x:Account {id: $a})
		MERGE (y:Account {id: $b})
		MERGE (x)-[f:FRIENDS_WITH]-(y)
		ON CREATE SET f.since = datetime($now)
	`
	err := r.write(ctx, "link friends", query, map[string]interface{}{
		"a":   a,
		"b":   b,
		"now": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	r.logger.Debug("Friendship projected", zap.String("a", a), zap.String("b", b))
	return nil
}

// UnlinkFriends removes the friendship between a and b if present
func (r *Repository) UnlinkFriends(ctx context.Context, a, b string) error {
	query := `
		MATCH (:Account {id: $a})-[f:FRIENDS_WITH]-(:Account {id: $b})
		DELETE f
	`
	return r.write(ctx, "unlink friends", query, map[string]interface{}{
		"a": a,
		"b": b,
	})
}

// ClearFriendships deletes every projected friendship
func (r *Repository) ClearFriendships(ctx context.Context) error {
	return r.write(ctx, "clear friendships", "MATCH (:Account)-[f:FRIENDS_WITH]-(:Account) DELETE f", nil)
}

// MutualFriends returns the ids of accounts befriended by both a and b
func (r *Repository) MutualFriends(ctx context.Context, a, b string) ([]string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (:Account {id: $a})-[:FRIENDS_WITH]-(m:Account)-[:FRIENDS_WITH]-(:Account {id: $b})
		RETURN DISTINCT m.id AS id
		ORDER BY id
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"a": a,
		"b": b,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query mutual friends: %w", err)
	}

	ids := []string{}
	for result.Next(ctx) {
		if id := getStringFromRecord(result.Record(), "id"); id != "" {
			ids = append(ids, id)
		}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read mutual friends: %w", err)
	}
	return ids, nil
}

// SuggestFriends ranks friends of userID's friends who are not yet connected to userID
func (r *Repository) SuggestFriends(ctx context.Context, userID string, limit int) ([]Suggestion, error) {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (u:Account {id: $userID})-[:FRIENDS_WITH]-(f:Account)-[:FRIENDS_WITH]-(s:Account)
		WHERE s <> u AND NOT (u)-[:FRIENDS_WITH]-(s)
		RETURN s.id AS id, count(DISTINCT f) AS mutual
		ORDER BY mutual DESC, id ASC
		LIMIT $limit
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"userID": userID,
		"limit":  int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query friend suggestions: %w", err)
	}

	suggestions := []Suggestion{}
	for result.Next(ctx) {
		suggestions = append(suggestions, suggestionFromRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read friend suggestions: %w", err)
	}
	return suggestions, nil
}

func suggestionFromRecord(record *neo4j.Record) Suggestion {
	return Suggestion{
		AccountID:     getStringFromRecord(record, "id"),
		MutualFriends: getIntFromRecord(record, "mutual"),
	}
}
