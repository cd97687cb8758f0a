package ledger

import "time"

const (
	// ConversationCollection holds one conversation per unordered account pair
	ConversationCollection = "conversations"
	// MessageCollection holds the append-only message log
	MessageCollection = "messages"
)

// LastMessage is a snapshot of the newest message in a conversation
type LastMessage struct {
	Content   string    `bson:"content" json:"content"`
	SenderID  string    `bson:"senderId" json:"senderId"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// Conversation is the single thread between two accounts
type Conversation struct {
	ID           string       `bson:"_id" json:"id"`
	PairKey      string       `bson:"pairKey" json:"-"`
	Participants []string     `bson:"participants" json:"participants"`
	LastMessage  *LastMessage `bson:"lastMessage,omitempty" json:"lastMessage,omitempty"`
	CreatedAt    time.Time    `bson:"createdAt" json:"createdAt"`
}

// HasParticipant reports whether accountID takes part in c
func (c Conversation) HasParticipant(accountID string) bool {
	for _, p := range c.Participants {
		if p == accountID {
			return true
		}
	}
	return false
}

// PeerOf returns the participant that is not accountID
func (c Conversation) PeerOf(accountID string) string {
	for _, p := range c.Participants {
		if p != accountID {
			return p
		}
	}
	return ""
}

// Message is one immutable entry in a conversation
type Message struct {
	ID             string    `bson:"_id" json:"id"`
	ConversationID string    `bson:"conversationId" json:"conversationId"`
	SenderID       string    `bson:"senderId" json:"senderId"`
	Content        string    `bson:"content" json:"content"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
}

// Snapshot returns m as a last-message snapshot
func (m Message) Snapshot() *LastMessage {
	return &LastMessage{Content: m.Content, SenderID: m.SenderID, Timestamp: m.CreatedAt}
}

// Thread is a conversation with its full history, oldest message first
type Thread struct {
	Conversation Conversation `json:"conversation"`
	Messages     []Message    `json:"messages"`
	Created      bool         `json:"created"`
}
