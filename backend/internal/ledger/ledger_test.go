package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-backend/backend/internal/account"
	"social-backend/backend/internal/docstore"
	"social-backend/backend/internal/keylock"
	apperrors "social-backend/backend/pkg/errors"
)

type fixture struct {
	store    *docstore.MemoryStore
	accounts *account.Directory
	ledger   *Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := docstore.NewMemoryStore()
	indexes := append(account.Indexes(), Indexes()...)
	require.NoError(t, docstore.EnsureIndexes(context.Background(), store, indexes...))

	accounts := account.NewDirectory(store)
	return &fixture{store: store, accounts: accounts, ledger: NewLedger(store, accounts)}
}

func (f *fixture) account(t *testing.T, name string) string {
	t.Helper()
	acc := &account.Account{Name: name, Email: name + "@example.com"}
	require.NoError(t, f.accounts.Create(context.Background(), acc))
	return acc.ID
}

// steppedClock returns a clock that advances by step on every call
func steppedClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := current
		current = current.Add(step)
		return now
	}
}

type capturePublisher struct {
	mu     sync.Mutex
	events []Message
}

func (p *capturePublisher) PublishMessage(_ context.Context, _ Conversation, msg Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msg)
}

func TestLedger_GetOrCreateIsSymmetricSingleton(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, b := f.account(t, "ana"), f.account(t, "bia")

	first, err := f.ledger.GetOrCreateConversation(ctx, a, b)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Empty(t, first.Messages)
	assert.Nil(t, first.Conversation.LastMessage)
	assert.ElementsMatch(t, []string{a, b}, first.Conversation.Participants)

	second, err := f.ledger.GetOrCreateConversation(ctx, b, a)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Conversation.ID, second.Conversation.ID)
	assert.Equal(t, 1, f.store.Count(ConversationCollection))
}

func TestLedger_GetOrCreateValidatesInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.account(t, "ana")

	_, err := f.ledger.GetOrCreateConversation(ctx, a, a)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeInvalidInput))

	_, err = f.ledger.GetOrCreateConversation(ctx, a, "")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeInvalidInput))

	_, err = f.ledger.GetOrCreateConversation(ctx, a, "ghost")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
}

func TestLedger_PostMessageKeepsOrderAndLastMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ledger.now = steppedClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), time.Second)
	pub := &capturePublisher{}
	f.ledger.SetPublisher(pub)
	a, b := f.account(t, "ana"), f.account(t, "bia")

	thread, err := f.ledger.GetOrCreateConversation(ctx, a, b)
	require.NoError(t, err)
	convID := thread.Conversation.ID

	for _, post := range []struct{ sender, content string }{{a, "a"}, {b, "b"}, {a, "c"}} {
		_, err := f.ledger.PostMessage(ctx, convID, post.sender, post.content)
		require.NoError(t, err)
	}

	thread, err = f.ledger.GetOrCreateConversation(ctx, b, a)
	require.NoError(t, err)
	require.Len(t, thread.Messages, 3)
	assert.Equal(t, "a", thread.Messages[0].Content)
	assert.Equal(t, "b", thread.Messages[1].Content)
	assert.Equal(t, "c", thread.Messages[2].Content)

	last := thread.Conversation.LastMessage
	require.NotNil(t, last)
	assert.Equal(t, "c", last.Content)
	assert.Equal(t, a, last.SenderID)
	assert.True(t, last.Timestamp.Equal(thread.Messages[2].CreatedAt))

	assert.Len(t, pub.events, 3)
}

func TestLedger_SameInstantMessagesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f.ledger.now = func() time.Time { return fixed }
	a, b := f.account(t, "ana"), f.account(t, "bia")

	thread, err := f.ledger.GetOrCreateConversation(ctx, a, b)
	require.NoError(t, err)

	contents := []string{"one", "two", "three", "four", "five"}
	for _, c := range contents {
		_, err := f.ledger.PostMessage(ctx, thread.Conversation.ID, a, c)
		require.NoError(t, err)
	}

	history, err := f.ledger.History(ctx, thread.Conversation.ID)
	require.NoError(t, err)
	require.Len(t, history, len(contents))
	for i, c := range contents {
		assert.Equal(t, c, history[i].Content)
	}

	conv, err := f.ledger.GetConversation(ctx, thread.Conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, "five", conv.LastMessage.Content)
}

func TestLedger_PostMessageRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, b, c := f.account(t, "ana"), f.account(t, "bia"), f.account(t, "caio")

	thread, err := f.ledger.GetOrCreateConversation(ctx, a, b)
	require.NoError(t, err)
	convID := thread.Conversation.ID

	_, err = f.ledger.PostMessage(ctx, convID, a, "")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeInvalidInput))

	_, err = f.ledger.PostMessage(ctx, convID, a, "   ")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeInvalidInput))

	_, err = f.ledger.PostMessage(ctx, convID, c, "hi")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeInvalidInput))

	_, err = f.ledger.PostMessage(ctx, "missing", a, "hi")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))

	assert.Zero(t, f.store.Count(MessageCollection))
}

func TestLedger_PartialWriteIsReportedAndRepairable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ledger.now = steppedClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), time.Second)
	a, b := f.account(t, "ana"), f.account(t, "bia")

	thread, err := f.ledger.GetOrCreateConversation(ctx, a, b)
	require.NoError(t, err)
	convID := thread.Conversation.ID

	_, err = f.ledger.PostMessage(ctx, convID, a, "first")
	require.NoError(t, err)

	f.store.FailNext(docstore.OpUpdate, ConversationCollection, errors.New("write concern timeout"))
	msg, err := f.ledger.PostMessage(ctx, convID, b, "second")
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypePartialWrite))
	assert.False(t, apperrors.IsRetryable(err))
	require.NotNil(t, msg)
	assert.Equal(t, "second", msg.Content)

	var partial *apperrors.ErrPartialWriteFailure
	require.True(t, errors.As(err, &partial))
	assert.Contains(t, partial.Committed, msg.ID)

	history, err := f.ledger.History(ctx, convID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	conv, err := f.ledger.GetConversation(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, "first", conv.LastMessage.Content)

	repaired, err := f.ledger.RebuildLastMessage(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, "second", repaired.LastMessage.Content)

	conv, err = f.ledger.GetConversation(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, "second", conv.LastMessage.Content)
	assert.Equal(t, b, conv.LastMessage.SenderID)
}

func TestLedger_RebuildLastMessageWithoutMessages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, b := f.account(t, "ana"), f.account(t, "bia")

	thread, err := f.ledger.GetOrCreateConversation(ctx, a, b)
	require.NoError(t, err)

	conv, err := f.ledger.RebuildLastMessage(ctx, thread.Conversation.ID)
	require.NoError(t, err)
	assert.Nil(t, conv.LastMessage)
}

func TestLedger_ListConversationsByRecentActivity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ledger.now = steppedClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), time.Minute)
	a, b, c, d := f.account(t, "ana"), f.account(t, "bia"), f.account(t, "caio"), f.account(t, "davi")

	withB, err := f.ledger.GetOrCreateConversation(ctx, a, b)
	require.NoError(t, err)
	withC, err := f.ledger.GetOrCreateConversation(ctx, a, c)
	require.NoError(t, err)
	withD, err := f.ledger.GetOrCreateConversation(ctx, d, a)
	require.NoError(t, err)

	_, err = f.ledger.PostMessage(ctx, withC.Conversation.ID, c, "older")
	require.NoError(t, err)
	_, err = f.ledger.PostMessage(ctx, withB.Conversation.ID, a, "newer")
	require.NoError(t, err)

	convs, err := f.ledger.ListConversations(ctx, a)
	require.NoError(t, err)
	require.Len(t, convs, 3)
	assert.Equal(t, withB.Conversation.ID, convs[0].ID)
	assert.Equal(t, withC.Conversation.ID, convs[1].ID)
	assert.Equal(t, withD.Conversation.ID, convs[2].ID)

	convs, err = f.ledger.ListConversations(ctx, b)
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}

func TestLedger_ConcurrentFirstContactCreatesOneConversation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, b := f.account(t, "ana"), f.account(t, "bia")

	// a second ledger over the same store stands in for another server process
	other := NewLedger(f.store, f.accounts)

	const callers = 16
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l := f.ledger
			if i%2 == 1 {
				l = other
			}
			from, to := a, b
			if i%4 >= 2 {
				from, to = b, a
			}
			thread, err := l.GetOrCreateConversation(ctx, from, to)
			if !assert.NoError(t, err) {
				return
			}
			ids[i] = thread.Conversation.ID
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, f.store.Count(ConversationCollection))
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestLedger_ConcurrentPostsAllLand(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, b := f.account(t, "ana"), f.account(t, "bia")

	thread, err := f.ledger.GetOrCreateConversation(ctx, a, b)
	require.NoError(t, err)
	convID := thread.Conversation.ID

	const posts = 20
	var wg sync.WaitGroup
	for i := 0; i < posts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender := a
			if i%2 == 1 {
				sender = b
			}
			_, err := f.ledger.PostMessage(ctx, convID, sender, "hello")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history, err := f.ledger.History(ctx, convID)
	require.NoError(t, err)
	require.Len(t, history, posts)

	conv, err := f.ledger.GetConversation(ctx, convID)
	require.NoError(t, err)
	newest := history[len(history)-1]
	assert.True(t, conv.LastMessage.Timestamp.Equal(newest.CreatedAt))
	assert.Equal(t, newest.SenderID, conv.LastMessage.SenderID)
}

func TestLedger_GetOrCreateIgnoresConversationOfAnotherPair(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, b := f.account(t, "ana"), f.account(t, "bia")
	c, d := f.account(t, "cris"), f.account(t, "dani")

	require.NoError(t, f.store.Insert(ctx, ConversationCollection, Conversation{
		ID:           "foreign",
		PairKey:      keylock.PairKey(a, b),
		Participants: []string{c, d},
		CreatedAt:    time.Now().UTC(),
	}))

	thread, err := f.ledger.GetOrCreateConversation(ctx, a, b)
	assert.Nil(t, thread)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))

	_, err = f.ledger.GetOrCreateConversation(ctx, a, "b:c")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeInvalidInput))
}
