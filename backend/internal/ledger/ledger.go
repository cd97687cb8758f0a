package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"social-backend/backend/internal/account"
	"social-backend/backend/internal/docstore"
	"social-backend/backend/internal/keylock"
	apperrors "social-backend/backend/pkg/errors"
	"social-backend/backend/pkg/logger"
)

// Accounts answers whether an account exists
type Accounts interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Publisher fans a stored message out to connected participants
type Publisher interface {
	PublishMessage(ctx context.Context, conv Conversation, msg Message)
}

// Ledger owns conversations and their messages
type Ledger struct {
	store     docstore.Store
	accounts  Accounts
	pairs     *keylock.Locker
	threads   *keylock.Locker
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewLedger creates a Ledger over store
func NewLedger(store docstore.Store, accounts Accounts) *Ledger {
	return &Ledger{
		store:    store,
		accounts: accounts,
		pairs:    keylock.New(),
		threads:  keylock.New(),
		logger:   logger.Named("ledger"),
		now:      time.Now,
	}
}

// SetPublisher attaches a best-effort message publisher
func (l *Ledger) SetPublisher(p Publisher) {
	l.publisher = p
}

// Indexes lists the unique indexes conversations rely on
func Indexes() []docstore.Index {
	return []docstore.Index{{Collection: ConversationCollection, Field: "pairKey"}}
}

// GetOrCreateConversation returns the conversation between userID and peerID with its history,
// creating it on first contact. Argument order does not matter.
func (l *Ledger) GetOrCreateConversation(ctx context.Context, userID, peerID string) (*Thread, error) {
	if err := account.ValidateID("userId", userID); err != nil {
		return nil, err
	}
	if err := account.ValidateID("peerId", peerID); err != nil {
		return nil, err
	}
	if userID == peerID {
		return nil, apperrors.NewInvalidInput("peerId", "cannot reference yourself")
	}
	for _, id := range []string{userID, peerID} {
		ok, err := l.accounts.Exists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperrors.NewNotFound("account", id)
		}
	}

	conv, created, err := l.getOrCreate(ctx, keylock.PairKey(userID, peerID), userID, peerID)
	if err != nil {
		return nil, err
	}

	messages, err := l.History(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	return &Thread{Conversation: *conv, Messages: messages, Created: created}, nil
}

func (l *Ledger) getOrCreate(ctx context.Context, key, userID, peerID string) (*Conversation, bool, error) {
	unlock := l.pairs.Lock(key)
	defer unlock()

	conv, err := l.findByPair(ctx, key, userID, peerID)
	if err == nil {
		return conv, false, nil
	}
	if !apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound) {
		return nil, false, err
	}

	participants := []string{userID, peerID}
	sort.Strings(participants)
	conv = &Conversation{
		ID:           uuid.NewString(),
		PairKey:      key,
		Participants: participants,
		CreatedAt:    l.timestamp(),
	}
	err = l.store.Insert(ctx, ConversationCollection, conv)
	if errors.Is(err, docstore.ErrDuplicateKey) {
		// another process created it between our read and insert
		l.logger.Debug("Conversation created concurrently", zap.String("pair", key))
		winner, err := l.findByPair(ctx, key, userID, peerID)
		return winner, false, err
	}
	if err != nil {
		return nil, false, apperrors.NewStoreFailed("insert conversation", err)
	}

	l.logger.Info("Conversation created",
		zap.String("conversation_id", conv.ID),
		zap.Strings("participants", participants),
	)
	return conv, true, nil
}

// GetConversation loads one conversation without its messages
func (l *Ledger) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	if err := account.ValidateID("conversationId", conversationID); err != nil {
		return nil, err
	}

	var conv Conversation
	err := l.store.FindOne(ctx, ConversationCollection, docstore.Filter{"_id": conversationID}, &conv)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperrors.NewNotFound("conversation", conversationID)
	}
	if err != nil {
		return nil, apperrors.NewStoreFailed("get conversation", err)
	}
	return &conv, nil
}

// Thread loads a conversation and its history
func (l *Ledger) Thread(ctx context.Context, conversationID string) (*Thread, error) {
	conv, err := l.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	messages, err := l.History(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	return &Thread{Conversation: *conv, Messages: messages}, nil
}

// History returns the messages of a conversation in creation order
func (l *Ledger) History(ctx context.Context, conversationID string) ([]Message, error) {
	var messages []Message
	err := l.store.Find(ctx, MessageCollection, docstore.Filter{"conversationId": conversationID}, docstore.FindOptions{
		Sort: []docstore.SortField{{Field: "createdAt"}, {Field: "_id"}},
	}, &messages)
	if err != nil {
		return nil, apperrors.NewStoreFailed("list messages", err)
	}
	if messages == nil {
		messages = []Message{}
	}
	return messages, nil
}

// PostMessage appends a message and refreshes the conversation's last-message snapshot.
// When the snapshot update fails the message is already stored; the returned error is a
// partial write failure and the stored message is returned alongside it.
func (l *Ledger) PostMessage(ctx context.Context, conversationID, senderID, content string) (*Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.NewInvalidInput("content", "required")
	}
	if err := account.ValidateID("senderId", senderID); err != nil {
		return nil, err
	}

	conv, err := l.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(senderID) {
		return nil, apperrors.NewInvalidInput("senderId", "not a participant of this conversation")
	}

	// ids are minted under the lock so same-millisecond messages sort in insertion order
	unlock := l.threads.Lock(conv.ID)
	defer unlock()

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	msg := Message{
		ID:             id.String(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      l.timestamp(),
	}
	if err := l.store.Insert(ctx, MessageCollection, msg); err != nil {
		return nil, apperrors.NewStoreFailed("insert message", err)
	}

	err = l.store.UpdateByID(ctx, ConversationCollection, conv.ID, docstore.Patch{"lastMessage": msg.Snapshot()})
	if err != nil {
		l.logger.Error("Message stored but last message not updated",
			zap.String("conversation_id", conv.ID),
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		return &msg, apperrors.NewPartialWriteFailure("post message", "message "+msg.ID, err)
	}
	conv.LastMessage = msg.Snapshot()

	l.logger.Debug("Message posted",
		zap.String("conversation_id", conv.ID),
		zap.String("message_id", msg.ID),
		zap.String("sender", senderID),
	)
	if l.publisher != nil {
		l.publisher.PublishMessage(ctx, *conv, msg)
	}
	return &msg, nil
}

// ListConversations returns userID's conversations, most recent activity first.
// Conversations without messages sort after active ones, newest first.
func (l *Ledger) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	if err := account.ValidateID("userId", userID); err != nil {
		return nil, err
	}

	var convs []Conversation
	err := l.store.Find(ctx, ConversationCollection, docstore.Filter{"participants": userID}, docstore.FindOptions{
		Sort: []docstore.SortField{
			{Field: "lastMessage.timestamp", Desc: true},
			{Field: "createdAt", Desc: true},
			{Field: "_id"},
		},
	}, &convs)
	if err != nil {
		return nil, apperrors.NewStoreFailed("list conversations", err)
	}
	if convs == nil {
		convs = []Conversation{}
	}
	return convs, nil
}

// RebuildLastMessage recomputes the last-message snapshot from the message log.
// It repairs conversations left behind by a partial write.
func (l *Ledger) RebuildLastMessage(ctx context.Context, conversationID string) (*Conversation, error) {
	conv, err := l.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	unlock := l.threads.Lock(conv.ID)
	defer unlock()

	var newest []Message
	err = l.store.Find(ctx, MessageCollection, docstore.Filter{"conversationId": conv.ID}, docstore.FindOptions{
		Sort:  []docstore.SortField{{Field: "createdAt", Desc: true}, {Field: "_id", Desc: true}},
		Limit: 1,
	}, &newest)
	if err != nil {
		return nil, apperrors.NewStoreFailed("find newest message", err)
	}

	var snapshot *LastMessage
	if len(newest) > 0 {
		snapshot = newest[0].Snapshot()
	}
	if err := l.store.UpdateByID(ctx, ConversationCollection, conv.ID, docstore.Patch{"lastMessage": snapshot}); err != nil {
		return nil, apperrors.NewStoreFailed("update last message", err)
	}
	conv.LastMessage = snapshot

	l.logger.Info("Last message rebuilt", zap.String("conversation_id", conv.ID))
	return conv, nil
}

func (l *Ledger) findByPair(ctx context.Context, key, userID, peerID string) (*Conversation, error) {
	var conv Conversation
	err := l.store.FindOne(ctx, ConversationCollection, docstore.Filter{"pairKey": key}, &conv)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperrors.NewNotFound("conversation", key)
	}
	if err != nil {
		return nil, apperrors.NewStoreFailed("find conversation", err)
	}
	if len(conv.Participants) != 2 || !conv.HasParticipant(userID) || !conv.HasParticipant(peerID) {
		l.logger.Warn("Conversation participants do not match pair key",
			zap.String("conversation_id", conv.ID),
			zap.String("pair", key),
		)
		return nil, apperrors.NewNotFound("conversation", key)
	}
	return &conv, nil
}

func (l *Ledger) timestamp() time.Time {
	return l.now().UTC().Truncate(time.Millisecond)
}
