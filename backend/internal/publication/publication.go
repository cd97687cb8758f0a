package publication

import (
	"context"
	"errors"
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

// Collection holds publications with their embedded comments
const Collection = "publications"

// Comment is a reply attached to a publication
type Comment struct {
	ID        string    `bson:"_id" json:"id"`
	OwnerID   string    `bson:"owner" json:"owner"`
	Comment   string    `bson:"comment" json:"comment"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// Publication is a post on an account's page
type Publication struct {
	ID          string    `bson:"_id" json:"id"`
	OwnerID     string    `bson:"owner" json:"owner"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description" json:"description"`
	Image       string    `bson:"image,omitempty" json:"image,omitempty"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	Comments    []Comment `bson:"comments" json:"comments"`
}

// Accounts answers whether an account exists
type Accounts interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Service manages publications
type Service struct {
	store    docstore.Store
	accounts Accounts
	locks    *keylock.Locker
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a publication Service over store
func NewService(store docstore.Store, accounts Accounts) *Service {
	return &Service{
		store:    store,
		accounts: accounts,
		locks:    keylock.New(),
		logger:   logger.Named("publication"),
		now:      time.Now,
	}
}

// Create stores a publication owned by ownerID. Title and description are required.
func (s *Service) Create(ctx context.Context, ownerID, title, description, image string) (*Publication, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" {
		return nil, apperrors.NewInvalidInput("title", "required")
	}
	if description == "" {
		return nil, apperrors.NewInvalidInput("description", "required")
	}
	if err := s.requireAccount(ctx, ownerID); err != nil {
		return nil, err
	}

	pub := &Publication{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		Image:       strings.TrimSpace(image),
		CreatedAt:   s.timestamp(),
		Comments:    []Comment{},
	}
	if err := s.store.Insert(ctx, Collection, pub); err != nil {
		return nil, apperrors.NewStoreFailed("insert publication", err)
	}

	s.logger.Info("Publication created",
		zap.String("publication_id", pub.ID),
		zap.String("owner", ownerID),
	)
	return pub, nil
}

// Get loads one publication
func (s *Service) Get(ctx context.Context, id string) (*Publication, error) {
	var pub Publication
	err := s.store.FindOne(ctx, Collection, docstore.Filter{"_id": id}, &pub)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperrors.NewNotFound("publication", id)
	}
	if err != nil {
		return nil, apperrors.NewStoreFailed("get publication", err)
	}
	if pub.Comments == nil {
		pub.Comments = []Comment{}
	}
	return &pub, nil
}

// ListByOwner returns ownerID's publications, newest first
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]Publication, error) {
	if err := s.requireAccount(ctx, ownerID); err != nil {
		return nil, err
	}

	var pubs []Publication
	err := s.store.Find(ctx, Collection, docstore.Filter{"owner": ownerID}, docstore.FindOptions{
		Sort: []docstore.SortField{{Field: "createdAt", Desc: true}, {Field: "_id"}},
	}, &pubs)
	if err != nil {
		return nil, apperrors.NewStoreFailed("list publications", err)
	}
	if pubs == nil {
		pubs = []Publication{}
	}
	return pubs, nil
}

// AddComment appends a comment by ownerID to a publication
func (s *Service) AddComment(ctx context.Context, publicationID, ownerID, text string) (*Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewInvalidInput("comment", "required")
	}
	if err := s.requireAccount(ctx, ownerID); err != nil {
		return nil, err
	}

	// comments are rewritten as a whole array, so appends to one publication are serialized
	unlock := s.locks.Lock(publicationID)
	defer unlock()

	pub, err := s.Get(ctx, publicationID)
	if err != nil {
		return nil, err
	}

	comment := Comment{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Comment:   text,
		CreatedAt: s.timestamp(),
	}
	comments := append(pub.Comments, comment)
	err = s.store.UpdateByID(ctx, Collection, pub.ID, docstore.Patch{"comments": comments})
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperrors.NewNotFound("publication", publicationID)
	}
	if err != nil {
		return nil, apperrors.NewStoreFailed("add comment", err)
	}
	return &comment, nil
}

func (s *Service) requireAccount(ctx context.Context, id string) error {
	if err := account.ValidateID("owner", id); err != nil {
		return err
	}
	ok, err := s.accounts.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewNotFound("account", id)
	}
	return nil
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}
