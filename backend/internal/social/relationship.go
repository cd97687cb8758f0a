package social

import (
	"slices"
	"time"

	"social-backend/backend/internal/account"
)

// Collection holds one relationship document per account pair
const Collection = "relationships"

// Status is the state of a friend relationship
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// Relationship is the stored record for a pair. Both accounts' edges are read from it,
// so the two sides always agree on status and initiator.
type Relationship struct {
	ID          string    `bson:"_id"`
	PairKey     string    `bson:"pairKey"`
	Members     []string  `bson:"members"`
	InitiatorID string    `bson:"initiatorId"`
	Status      Status    `bson:"status"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

// Joins reports whether the relationship is between exactly a and b
func (r Relationship) Joins(a, b string) bool {
	return len(r.Members) == 2 && slices.Contains(r.Members, a) && slices.Contains(r.Members, b)
}

// PeerOf returns the member that is not userID
func (r Relationship) PeerOf(userID string) string {
	for _, m := range r.Members {
		if m != userID {
			return m
		}
	}
	return ""
}

// EdgeFor projects the relationship onto userID's edge list
func (r Relationship) EdgeFor(userID string) FriendEdge {
	return FriendEdge{
		PeerID:      r.PeerOf(userID),
		Status:      r.Status,
		InitiatorID: r.InitiatorID,
		CreatedAt:   r.CreatedAt,
	}
}

// FriendEdge is one account's view of a relationship
type FriendEdge struct {
	PeerID      string           `json:"peerId"`
	Status      Status           `json:"status"`
	InitiatorID string           `json:"initiatorId"`
	CreatedAt   time.Time        `json:"createdAt"`
	Peer        *account.Summary `json:"peer,omitempty"`
}

// Incoming reports whether the edge is a request userID has yet to answer
func (e FriendEdge) Incoming(userID string) bool {
	return e.Status == StatusPending && e.InitiatorID != userID
}
