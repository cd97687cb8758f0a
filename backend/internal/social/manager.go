package social

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"social-backend/backend/internal/account"
	"social-backend/backend/internal/docstore"
	"social-backend/backend/internal/keylock"
	apperrors "social-backend/backend/pkg/errors"
	"social-backend/backend/pkg/logger"
)

// Accounts is the slice of the account directory the manager depends on
type Accounts interface {
	Exists(ctx context.Context, id string) (bool, error)
	Summaries(ctx context.Context, ids []string) (map[string]account.Summary, error)
}

// Projection mirrors accepted friendships into a secondary index such as the graph database
type Projection interface {
	LinkFriends(ctx context.Context, a, b string) error
	UnlinkFriends(ctx context.Context, a, b string) error
}

// Notifier delivers an activity notice to ownerID about actorID
type Notifier interface {
	Notify(ctx context.Context, ownerID, actorID, message string) error
}

const (
	msgFriendRequest  = "enviou uma solicitação de amizade"
	msgFriendAccepted = "aceitou sua solicitação de amizade"
)

// Manager owns friend relationships between accounts
type Manager struct {
	store      docstore.Store
	accounts   Accounts
	locks      *keylock.Locker
	projection Projection
	notifier   Notifier
	logger     *zap.Logger
	now        func() time.Time
}

// NewManager creates a Manager over store
func NewManager(store docstore.Store, accounts Accounts) *Manager {
	return &Manager{
		store:    store,
		accounts: accounts,
		locks:    keylock.New(),
		logger:   logger.Named("social"),
		now:      time.Now,
	}
}

// SetProjection attaches a best-effort friendship projection
func (m *Manager) SetProjection(p Projection) {
	m.projection = p
}

// SetNotifier attaches a best-effort notifier
func (m *Manager) SetNotifier(n Notifier) {
	m.notifier = n
}

// Indexes lists the unique indexes relationships rely on
func Indexes() []docstore.Index {
	return []docstore.Index{{Collection: Collection, Field: "pairKey"}}
}

// SendRequest creates a pending relationship initiated by fromID.
// Any existing relationship between the pair, in either direction and any status, is a duplicate.
func (m *Manager) SendRequest(ctx context.Context, fromID, toID string) (FriendEdge, error) {
	if err := validatePair(fromID, toID); err != nil {
		return FriendEdge{}, err
	}
	if err := m.requireAccounts(ctx, fromID, toID); err != nil {
		return FriendEdge{}, err
	}

	key := keylock.PairKey(fromID, toID)
	unlock := m.locks.Lock(key)
	defer unlock()

	_, err := m.find(ctx, fromID, toID)
	if err == nil {
		return FriendEdge{}, apperrors.NewDuplicateRelationship(fromID, toID)
	}
	if !apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound) {
		return FriendEdge{}, err
	}

	now := m.timestamp()
	rel := Relationship{
		ID:          uuid.NewString(),
		PairKey:     key,
		Members:     sortedPair(fromID, toID),
		InitiatorID: fromID,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.Insert(ctx, Collection, rel); err != nil {
		if errors.Is(err, docstore.ErrDuplicateKey) {
			return FriendEdge{}, apperrors.NewDuplicateRelationship(fromID, toID)
		}
		return FriendEdge{}, apperrors.NewStoreFailed("insert relationship", err)
	}

	m.logger.Info("Friend request sent",
		zap.String("from", fromID),
		zap.String("to", toID),
	)
	m.notify(ctx, toID, fromID, msgFriendRequest)
	return rel.EdgeFor(fromID), nil
}

// Respond sets the status of the relationship between userID and peerID.
// Either member may respond and an answered relationship may be answered again.
func (m *Manager) Respond(ctx context.Context, userID, peerID string, status Status) (FriendEdge, error) {
	if status != StatusAccepted && status != StatusRejected {
		return FriendEdge{}, apperrors.NewInvalidInput("status", "must be accepted or rejected")
	}
	if err := validatePair(userID, peerID); err != nil {
		return FriendEdge{}, err
	}

	key := keylock.PairKey(userID, peerID)
	unlock := m.locks.Lock(key)
	defer unlock()

	rel, err := m.find(ctx, userID, peerID)
	if err != nil {
		return FriendEdge{}, err
	}

	previous := rel.Status
	now := m.timestamp()
	err = m.store.UpdateByID(ctx, Collection, rel.ID, docstore.Patch{
		"status":    status,
		"updatedAt": now,
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return FriendEdge{}, apperrors.NewNotFound("relationship", key)
	}
	if err != nil {
		return FriendEdge{}, apperrors.NewStoreFailed("update relationship", err)
	}
	rel.Status = status
	rel.UpdatedAt = now

	m.logger.Info("Friend request answered",
		zap.String("user", userID),
		zap.String("peer", peerID),
		zap.String("status", string(status)),
	)

	switch {
	case status == StatusAccepted && previous != StatusAccepted:
		m.link(ctx, userID, peerID)
		if rel.InitiatorID != userID {
			m.notify(ctx, rel.InitiatorID, userID, msgFriendAccepted)
		}
	case status == StatusRejected && previous == StatusAccepted:
		m.unlink(ctx, userID, peerID)
	}

	return rel.EdgeFor(userID), nil
}

// Accept marks the relationship between userID and peerID accepted
func (m *Manager) Accept(ctx context.Context, userID, peerID string) (FriendEdge, error) {
	return m.Respond(ctx, userID, peerID, StatusAccepted)
}

// Reject marks the relationship between userID and peerID rejected
func (m *Manager) Reject(ctx context.Context, userID, peerID string) (FriendEdge, error) {
	return m.Respond(ctx, userID, peerID, StatusRejected)
}

// Remove deletes the relationship between userID and peerID from both sides.
// Removing a relationship that does not exist succeeds.
func (m *Manager) Remove(ctx context.Context, userID, peerID string) error {
	if err := validatePair(userID, peerID); err != nil {
		return err
	}
	if err := m.requireAccounts(ctx, userID, peerID); err != nil {
		return err
	}

	key := keylock.PairKey(userID, peerID)
	unlock := m.locks.Lock(key)
	defer unlock()

	deleted, err := m.store.DeleteMatching(ctx, Collection, docstore.Filter{"pairKey": key})
	if err != nil {
		return apperrors.NewStoreFailed("delete relationship", err)
	}
	if deleted == 0 {
		m.logger.Debug("No relationship to remove",
			zap.String("user", userID),
			zap.String("peer", peerID),
		)
		return nil
	}

	m.logger.Info("Relationship removed",
		zap.String("user", userID),
		zap.String("peer", peerID),
	)
	m.unlink(ctx, userID, peerID)
	return nil
}

// ListEdges returns every edge of userID, oldest first, with peer summaries attached
func (m *Manager) ListEdges(ctx context.Context, userID string) ([]FriendEdge, error) {
	return m.listEdges(ctx, userID, docstore.Filter{"members": userID})
}

// Friends returns userID's accepted edges
func (m *Manager) Friends(ctx context.Context, userID string) ([]FriendEdge, error) {
	return m.listEdges(ctx, userID, docstore.Filter{"members": userID, "status": StatusAccepted})
}

// IncomingRequests returns pending requests other accounts sent to userID
func (m *Manager) IncomingRequests(ctx context.Context, userID string) ([]FriendEdge, error) {
	pending, err := m.listEdges(ctx, userID, docstore.Filter{"members": userID, "status": StatusPending})
	if err != nil {
		return nil, err
	}

	incoming := make([]FriendEdge, 0, len(pending))
	for _, e := range pending {
		if e.Incoming(userID) {
			incoming = append(incoming, e)
		}
	}
	return incoming, nil
}

// Edge returns userID's edge towards peerID
func (m *Manager) Edge(ctx context.Context, userID, peerID string) (FriendEdge, error) {
	if err := validatePair(userID, peerID); err != nil {
		return FriendEdge{}, err
	}
	rel, err := m.find(ctx, userID, peerID)
	if err != nil {
		return FriendEdge{}, err
	}
	return rel.EdgeFor(userID), nil
}

// ReplayProjection links every accepted pair into p and returns how many were linked.
// It rebuilds a projection that missed updates while it was unreachable.
func (m *Manager) ReplayProjection(ctx context.Context, p Projection) (int, error) {
	var rels []Relationship
	err := m.store.Find(ctx, Collection, docstore.Filter{"status": StatusAccepted}, docstore.FindOptions{
		Sort: []docstore.SortField{{Field: "createdAt"}, {Field: "_id"}},
	}, &rels)
	if err != nil {
		return 0, apperrors.NewStoreFailed("list accepted relationships", err)
	}

	for i, rel := range rels {
		if len(rel.Members) != 2 {
			m.logger.Warn("Skipping malformed relationship", zap.String("relationship_id", rel.ID))
			continue
		}
		if err := p.LinkFriends(ctx, rel.Members[0], rel.Members[1]); err != nil {
			return i, fmt.Errorf("failed to project relationship %s: %w", rel.ID, err)
		}
	}

	m.logger.Info("Friendship projection replayed", zap.Int("relationships", len(rels)))
	return len(rels), nil
}

func (m *Manager) listEdges(ctx context.Context, userID string, filter docstore.Filter) ([]FriendEdge, error) {
	if err := account.ValidateID("userId", userID); err != nil {
		return nil, err
	}
	if err := m.requireAccounts(ctx, userID); err != nil {
		return nil, err
	}

	var rels []Relationship
	err := m.store.Find(ctx, Collection, filter, docstore.FindOptions{
		Sort: []docstore.SortField{{Field: "createdAt"}, {Field: "_id"}},
	}, &rels)
	if err != nil {
		return nil, apperrors.NewStoreFailed("list relationships", err)
	}

	edges := make([]FriendEdge, 0, len(rels))
	peers := make([]string, 0, len(rels))
	for _, rel := range rels {
		e := rel.EdgeFor(userID)
		edges = append(edges, e)
		peers = append(peers, e.PeerID)
	}

	summaries, err := m.accounts.Summaries(ctx, peers)
	if err != nil {
		return nil, err
	}
	for i := range edges {
		if s, ok := summaries[edges[i].PeerID]; ok {
			edges[i].Peer = &s
		}
	}
	return edges, nil
}

func (m *Manager) find(ctx context.Context, userID, peerID string) (*Relationship, error) {
	key := keylock.PairKey(userID, peerID)
	var rel Relationship
	err := m.store.FindOne(ctx, Collection, docstore.Filter{"pairKey": key}, &rel)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperrors.NewNotFound("relationship", key)
	}
	if err != nil {
		return nil, apperrors.NewStoreFailed("find relationship", err)
	}
	if !rel.Joins(userID, peerID) {
		m.logger.Warn("Relationship members do not match pair key",
			zap.String("relationship_id", rel.ID),
			zap.String("pair", key),
		)
		return nil, apperrors.NewNotFound("relationship", key)
	}
	return &rel, nil
}

func (m *Manager) requireAccounts(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		ok, err := m.accounts.Exists(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NewNotFound("account", id)
		}
	}
	return nil
}

func (m *Manager) link(ctx context.Context, a, b string) {
	if m.projection == nil {
		return
	}
	if err := m.projection.LinkFriends(ctx, a, b); err != nil {
		m.logger.Warn("Failed to project friendship",
			zap.String("a", a),
			zap.String("b", b),
			zap.Error(err),
		)
	}
}

func (m *Manager) unlink(ctx context.Context, a, b string) {
	if m.projection == nil {
		return
	}
	if err := m.projection.UnlinkFriends(ctx, a, b); err != nil {
		m.logger.Warn("Failed to remove projected friendship",
			zap.String("a", a),
			zap.String("b", b),
			zap.Error(err),
		)
	}
}

func (m *Manager) notify(ctx context.Context, ownerID, actorID, message string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, ownerID, actorID, message); err != nil {
		m.logger.Warn("Failed to deliver notification",
			zap.String("owner", ownerID),
			zap.String("actor", actorID),
			zap.Error(err),
		)
	}
}

func (m *Manager) timestamp() time.Time {
	return m.now().UTC().Truncate(time.Millisecond)
}

func validatePair(userID, peerID string) error {
	if err := account.ValidateID("userId", userID); err != nil {
		return err
	}
	if err := account.ValidateID("peerId", peerID); err != nil {
		return err
	}
	if userID == peerID {
		return apperrors.NewInvalidInput("peerId", "cannot reference yourself")
	}
	return nil
}

func sortedPair(a, b string) []string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair
}
