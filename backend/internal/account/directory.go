package account

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"social-backend/backend/internal/docstore"
	apperrors "social-backend/backend/pkg/errors"
	"social-backend/backend/pkg/logger"
)

// MaxConcurrentLookups bounds parallel store reads when resolving summaries
const MaxConcurrentLookups = 8

// Directory owns account documents and answers existence and display lookups
type Directory struct {
	store    docstore.Store
	logger   *zap.Logger
	hashCost int
	now      func() time.Time
}

// NewDirectory creates a Directory over store
func NewDirectory(store docstore.Store) *Directory {
	return &Directory{
		store:    store,
		logger:   logger.Named("account"),
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// SetHashCost overrides the bcrypt cost; tests use bcrypt.MinCost
func (d *Directory) SetHashCost(cost int) {
	d.hashCost = cost
}

// Indexes lists the unique indexes accounts rely on
func Indexes() []docstore.Index {
	return []docstore.Index{
		{Collection: Collection, Field: "name"},
		{Collection: Collection, Field: "email"},
	}
}

// Create stores a new account, filling ID, profile defaults and CreatedAt
func (d *Directory) Create(ctx context.Context, acc *Account) error {
	acc.Name = strings.TrimSpace(acc.Name)
	acc.Email = normalizeEmail(acc.Email)
	if acc.Name == "" {
		return apperrors.NewInvalidInput("name", "required")
	}
	if acc.Email == "" {
		return apperrors.NewInvalidInput("email", "required")
	}

	if acc.ID == "" {
		acc.ID = uuid.NewString()
	} else if err := ValidateID("id", acc.ID); err != nil {
		return err
	}
	if acc.Image == "" {
		acc.Image = DefaultImage
	}
	if acc.PageImage == "" {
		acc.PageImage = DefaultPageImage
	}
	if acc.PageDescription == "" {
		acc.PageDescription = DefaultPageDescription
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = d.now().UTC().Truncate(time.Millisecond)
	}

	if err := d.store.Insert(ctx, Collection, acc); err != nil {
		if errors.Is(err, docstore.ErrDuplicateKey) {
			return apperrors.NewInvalidInput("account", "name or email already registered")
		}
		return apperrors.NewStoreFailed("insert account", err)
	}

	d.logger.Info("Account created",
		zap.String("account_id", acc.ID),
		zap.String("name", acc.Name),
	)
	return nil
}

// Register hashes password and creates the account
func (d *Directory) Register(ctx context.Context, name, email, password string) (*Account, error) {
	if password == "" {
		return nil, apperrors.NewInvalidInput("password", "required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.hashCost)
	if err != nil {
		return nil, apperrors.NewInvalidInput("password", err.Error())
	}

	acc := &Account{Name: name, Email: email, PasswordHash: string(hash)}
	if err := d.Create(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// Authenticate returns the account whose email and password match
func (d *Directory) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	var acc Account
	err := d.store.FindOne(ctx, Collection, docstore.Filter{"email": normalizeEmail(email)}, &acc)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if err != nil {
		return nil, apperrors.NewStoreFailed("find account by email", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	return &acc, nil
}

// Get loads one account
func (d *Directory) Get(ctx context.Context, id string) (*Account, error) {
	var acc Account
	err := d.store.FindOne(ctx, Collection, docstore.Filter{"_id": id}, &acc)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperrors.NewNotFound("account", id)
	}
	if err != nil {
		return nil, apperrors.NewStoreFailed("get account", err)
	}
	return &acc, nil
}

// Exists reports whether id names a stored account
func (d *Directory) Exists(ctx context.Context, id string) (bool, error) {
	_, err := d.Get(ctx, id)
	if apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Summaries resolves ids to display summaries. Unknown ids are left out of the result.
func (d *Directory) Summaries(ctx context.Context, ids []string) (map[string]Summary, error) {
	result := make(map[string]Summary, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	seen := make(map[string]struct{}, len(ids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrentLookups)

	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		g.Go(func() error {
			acc, err := d.Get(gctx, id)
			if apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound) {
				d.logger.Warn("Dangling account reference", zap.String("account_id", id))
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			result[id] = acc.Summary()
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
