package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"social-backend/backend/internal/account"
	"social-backend/backend/internal/docstore"
	apperrors "social-backend/backend/pkg/errors"
	"social-backend/backend/pkg/logger"
)

// Collection holds activity notifications
const Collection = "notifications"

// Notification tells OwnerID that ActorID did something
type Notification struct {
	ID        string    `bson:"_id" json:"id"`
	OwnerID   string    `bson:"ownerId" json:"ownerId"`
	ActorID   string    `bson:"actorId" json:"actorId"`
	Message   string    `bson:"message" json:"message"`
	Read      bool      `bson:"read" json:"read"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// Publisher pushes a fresh notification to its owner's live connections
type Publisher interface {
	PublishNotification(ctx context.Context, n Notification)
}

// Service stores and lists notifications
type Service struct {
	store     docstore.Store
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a notification Service over store
func NewService(store docstore.Store) *Service {
	return &Service{
		store:  store,
		logger: logger.Named("notification"),
		now:    time.Now,
	}
}

// SetPublisher attaches a best-effort live publisher
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

// Notify records a notification for ownerID
func (s *Service) Notify(ctx context.Context, ownerID, actorID, message string) error {
	if err := account.ValidateID("ownerId", ownerID); err != nil {
		return err
	}
	if strings.TrimSpace(message) == "" {
		return apperrors.NewInvalidInput("message", "required")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate notification id: %w", err)
	}
	n := Notification{
		ID:        id.String(),
		OwnerID:   ownerID,
		ActorID:   actorID,
		Message:   message,
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.store.Insert(ctx, Collection, n); err != nil {
		return apperrors.NewStoreFailed("insert notification", err)
	}

	s.logger.Debug("Notification stored",
		zap.String("owner", ownerID),
		zap.String("actor", actorID),
	)
	if s.publisher != nil {
		s.publisher.PublishNotification(ctx, n)
	}
	return nil
}

// List returns ownerID's notifications, newest first
func (s *Service) List(ctx context.Context, ownerID string) ([]Notification, error) {
	if err := account.ValidateID("ownerId", ownerID); err != nil {
		return nil, err
	}

	var out []Notification
	err := s.store.Find(ctx, Collection, docstore.Filter{"ownerId": ownerID}, docstore.FindOptions{
		Sort: []docstore.SortField{{Field: "createdAt", Desc: true}, {Field: "_id", Desc: true}},
	}, &out)
	if err != nil {
		return nil, apperrors.NewStoreFailed("list notifications", err)
	}
	if out == nil {
		out = []Notification{}
	}
	return out, nil
}

// MarkRead flags one of ownerID's notifications as read
func (s *Service) MarkRead(ctx context.Context, ownerID, id string) error {
	if err := account.ValidateID("ownerId", ownerID); err != nil {
		return err
	}
	if err := account.ValidateID("id", id); err != nil {
		return err
	}
	var n Notification
	err := s.store.FindOne(ctx, Collection, docstore.Filter{"_id": id, "ownerId": ownerID}, &n)
	if errors.Is(err, docstore.ErrNotFound) {
		return apperrors.NewNotFound("notification", id)
	}
	if err != nil {
		return apperrors.NewStoreFailed("find notification", err)
	}
	if n.Read {
		return nil
	}

	if err := s.store.UpdateByID(ctx, Collection, id, docstore.Patch{"read": true}); err != nil {
		return apperrors.NewStoreFailed("mark notification read", err)
	}
	return nil
}
