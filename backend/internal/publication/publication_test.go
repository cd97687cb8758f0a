package publication

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-backend/backend/internal/account"
	"social-backend/backend/internal/docstore"
	apperrors "social-backend/backend/pkg/errors"
)

func newService(t *testing.T) (*Service, *account.Directory) {
	t.Helper()
	store := docstore.NewMemoryStore()
	accounts := account.NewDirectory(store)
	return NewService(store, accounts), accounts
}

func createAccount(t *testing.T, dir *account.Directory, name string) string {
	t.Helper()
	acc := &account.Account{Name: name, Email: name + "@example.com"}
	require.NoError(t, dir.Create(context.Background(), acc))
	return acc.ID
}

func TestService_CreateAndList(t *testing.T) {
	ctx := context.Background()
	svc, dir := newService(t)
	owner := createAccount(t, dir, "ana")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Hour)
	}

	first, err := svc.Create(ctx, owner, "Praia", "Fim de semana", "")
	require.NoError(t, err)
	second, err := svc.Create(ctx, owner, "Serra", "Trilha", "uploads/serra.png")
	require.NoError(t, err)

	list, err := svc.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Equal(t, "uploads/serra.png", list[0].Image)

	got, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Praia", got.Title)
	assert.Empty(t, got.Comments)
}

func TestService_CreateValidates(t *testing.T) {
	ctx := context.Background()
	svc, dir := newService(t)
	owner := createAccount(t, dir, "ana")

	_, err := svc.Create(ctx, owner, "", "desc", "")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeInvalidInput))

	_, err = svc.Create(ctx, owner, "title", "  ", "")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeInvalidInput))

	_, err = svc.Create(ctx, "ghost", "title", "desc", "")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))

	_, err = svc.Get(ctx, "missing")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
}

func TestService_ConcurrentCommentsAreAllKept(t *testing.T) {
	ctx := context.Background()
	svc, dir := newService(t)
	owner := createAccount(t, dir, "ana")
	commenter := createAccount(t, dir, "bia")

	pub, err := svc.Create(ctx, owner, "Praia", "Fim de semana", "")
	require.NoError(t, err)

	const comments = 10
	var wg sync.WaitGroup
	for i := 0; i < comments; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.AddComment(ctx, pub.ID, commenter, fmt.Sprintf("comment %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := svc.Get(ctx, pub.ID)
	require.NoError(t, err)
	assert.Len(t, got.Comments, comments)

	_, err = svc.AddComment(ctx, pub.ID, commenter, "")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeInvalidInput))

	_, err = svc.AddComment(ctx, "missing", commenter, "hi")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
}
