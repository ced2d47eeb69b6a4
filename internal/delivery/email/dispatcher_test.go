package email

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"commonwealth/internal/database"
	"commonwealth/internal/delivery"
	"commonwealth/internal/domain"
	"commonwealth/internal/pkg/lock"
	"commonwealth/internal/repository"
)

type fakeMailer struct {
	mu      sync.Mutex
	batches [][]Message
	fail    map[string]bool
}

func (f *fakeMailer) Send(_ context.Context, msgs []Message, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, msgs)

	var errs []error
	for _, m := range msgs {
		if f.fail[m.To] {
			errs = append(errs, &RecipientError{To: m.To, Code: 406, Message: "Inactive recipient"})
		}
	}
	return errors.Join(errs...)
}

func (f *fakeMailer) sent() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Message
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

type fixture struct {
	db         *gorm.DB
	users      *repository.UserRepository
	mailer     *fakeMailer
	dispatcher *Dispatcher
}

func setup(t *testing.T, pageSize int) *fixture {
	t.Helper()
	db, err := database.Connect(fmt.Sprintf("file:email_%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	communities := repository.NewCommunityRepository(db)
	require.NoError(t, communities.Create(context.Background(), &domain.Community{ID: "ethereum", Name: "Ethereum"}))
	require.NoError(t, communities.Create(context.Background(), &domain.Community{ID: "edgeware", Name: "Edgeware"}))

	mailer := &fakeMailer{fail: map[string]bool{}}
	users := repository.NewUserRepository(db)
	d := NewDispatcher(Config{
		From:           "no-reply@cw.test",
		ServerURL:      "http://cw.test",
		DigestPageSize: pageSize,
	}, Deps{
		Mailer:      mailer,
		Users:       users,
		Authors:     repository.NewAddressRepository(db),
		Communities: delivery.NewCommunities(communities),
		Digests:     repository.NewNotificationRepository(db),
		Locker:      lock.New(client, "test:"),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return &fixture{db: db, users: users, mailer: mailer, dispatcher: d}
}

func (f *fixture) user(t *testing.T, email string, interval domain.EmailInterval) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, EmailNotificationInterval: interval}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *fixture) notification(t *testing.T, category domain.Category, p domain.Payload, createdAt time.Time) *domain.Notification {
	t.Helper()
	data, err := domain.EncodePayload(p)
	require.NoError(t, err)
	chain := p.CommunityID()
	n := &domain.Notification{NotificationData: data, CategoryID: category, ChainID: &chain, CreatedAt: createdAt}
	require.NoError(t, f.db.Create(n).Error)
	return n
}

func (f *fixture) deliver(t *testing.T, n *domain.Notification, u *domain.User, offset int64) {
	t.Helper()
	require.NoError(t, f.db.Create(&domain.NotificationRead{
		UserID:         u.ID,
		ID:             offset,
		NotificationID: n.ID,
		SubscriptionID: n.ID*1000 + u.ID,
	}).Error)
}

func commentOn(title string) *domain.PostData {
	commentID := int64(7)
	return &domain.PostData{
		Thread:        42,
		RootTitle:     title,
		RootType:      "discussion",
		CommentID:     &commentID,
		CommentText:   "%7B%22ops%22%3A%5B%7B%22insert%22%3A%22gm%20frens%22%7D%5D%7D",
		ChainID:       "ethereum",
		AuthorAddress: "0x1111222233334444",
		AuthorChain:   "ethereum",
	}
}

func TestDispatchImmediate_Comment(t *testing.T) {
	f := setup(t, 10)
	ctx := context.Background()
	u1 := f.user(t, "u1@example.com", domain.IntervalNever)
	u2 := f.user(t, "u2@example.com", domain.IntervalNever)
	u3 := f.user(t, "", domain.IntervalNever)

	authorID := int64(99)
	require.NoError(t, f.db.Create(&domain.Profile{UserID: authorID, ProfileName: "alice"}).Error)
	require.NoError(t, f.db.Create(&domain.Address{Address: "0x1111222233334444", CommunityID: "ethereum", UserID: &authorID}).Error)

	n := f.notification(t, domain.CategoryNewComment, commentOn("Hello%20World"), time.Now().UTC())
	err := f.dispatcher.DispatchImmediate(ctx, n, []domain.Recipient{
		{UserID: u1.ID, Offset: 1, ImmediateEmail: true},
		{UserID: u2.ID, Offset: 1, ImmediateEmail: false},
		{UserID: u3.ID, Offset: 1, ImmediateEmail: true},
	})
	require.NoError(t, err)

	sent := f.mailer.sent()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, "u1@example.com", msg.To)
	assert.Equal(t, "no-reply@cw.test", msg.From)
	assert.Equal(t, "Comment on: Hello World", msg.Subject)
	assert.Contains(t, msg.TextBody, `alice commented on "Hello World" in Ethereum`)
	assert.Contains(t, msg.TextBody, "gm frens")
	assert.Contains(t, msg.TextBody, "http://cw.test/ethereum/discussion/42?comment=7")
	assert.Contains(t, msg.HTMLBody, `href="http://cw.test/ethereum/discussion/42?comment=7"`)
}

func TestDispatchImmediate_SubjectsPerCategory(t *testing.T) {
	f := setup(t, 10)
	u := f.user(t, "u@example.com", domain.IntervalNever)
	recipients := []domain.Recipient{{UserID: u.ID, Offset: 1, ImmediateEmail: true}}

	cases := map[domain.Category]string{
		domain.CategoryNewMention:       "You were mentioned in: Plan",
		domain.CategoryNewCollaboration: "You were added as a collaborator on: Plan",
		domain.CategoryNewThread:        "New thread: Plan",
		domain.CategoryNewReaction:      "New reaction on: Plan",
	}
	for category, subject := range cases {
		n := f.notification(t, category, &domain.PostData{Thread: "5", RootTitle: "Plan", ChainID: "ethereum"}, time.Now().UTC())

		require.NoError(t, f.dispatcher.DispatchImmediate(context.Background(), n, recipients))
		sent := f.mailer.sent()
		assert.Equal(t, subject, sent[len(sent)-1].Subject, category)
		assert.Contains(t, sent[len(sent)-1].TextBody, "Someone")
	}
}

func TestDispatchImmediate_UnsupportedCategoriesSendNothing(t *testing.T) {
	f := setup(t, 10)
	u := f.user(t, "u@example.com", domain.IntervalNever)
	recipients := []domain.Recipient{{UserID: u.ID, Offset: 1, ImmediateEmail: true}}

	edit := f.notification(t, domain.CategoryThreadEdit, commentOn("Edited"), time.Now().UTC())
	require.NoError(t, f.dispatcher.DispatchImmediate(context.Background(), edit, recipients))

	snap := f.notification(t, domain.CategorySnapshotProposal, &domain.SnapshotData{ID: "0xabc", Title: "Vote", Space: "ens.eth", ChainID: "ethereum"}, time.Now().UTC())
	require.NoError(t, f.dispatcher.DispatchImmediate(context.Background(), snap, recipients))

	assert.Empty(t, f.mailer.sent())
}

func TestDispatchImmediate_ChainEvent(t *testing.T) {
	f := setup(t, 10)
	u := f.user(t, "u@example.com", domain.IntervalNever)
	recipients := []domain.Recipient{{UserID: u.ID, Offset: 1, ImmediateEmail: true}}

	labeled := f.notification(t, domain.CategoryChainEvent, &domain.ChainEventData{
		ID: 1, BlockNumber: 10, Network: "substrate", Chain: "edgeware",
		EventData: []byte(`{"kind":"democracy-started"}`),
	}, time.Now().UTC())
	require.NoError(t, f.dispatcher.DispatchImmediate(context.Background(), labeled, recipients))

	unlabeled := f.notification(t, domain.CategoryChainEvent, &domain.ChainEventData{
		ID: 2, Chain: "edgeware", EventData: []byte(`{}`),
	}, time.Now().UTC())
	require.NoError(t, f.dispatcher.DispatchImmediate(context.Background(), unlabeled, recipients))

	sent := f.mailer.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Democracy Started event on Edgeware", sent[0].Subject)
	assert.Contains(t, sent[0].TextBody, "substrate democracy started at block 10")
}

func TestDispatchImmediate_RecipientFailuresAreIsolated(t *testing.T) {
	f := setup(t, 10)
	ok := f.user(t, "ok@example.com", domain.IntervalNever)
	bad := f.user(t, "bad@example.com", domain.IntervalNever)
	f.mailer.fail["bad@example.com"] = true

	n := f.notification(t, domain.CategoryNewComment, commentOn("Hello"), time.Now().UTC())
	err := f.dispatcher.DispatchImmediate(context.Background(), n, []domain.Recipient{
		{UserID: ok.ID, Offset: 1, ImmediateEmail: true},
		{UserID: bad.ID, Offset: 1, ImmediateEmail: true},
	})

	var rerr *RecipientError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "bad@example.com", rerr.To)
	assert.Len(t, f.mailer.sent(), 2)
}

func TestEmailTemplatesCoverEveryCategory(t *testing.T) {
	for _, c := range domain.AllCategories {
		_, ok := emailTemplates[c]
		assert.True(t, ok, "no email rendering registered for %s", c)
	}
}

func TestDigestSubject(t *testing.T) {
	assert.Equal(t, "1 new notification", digestSubject(1))
	assert.Equal(t, "3 new notifications", digestSubject(3))
}

func TestDispatchDigest_Daily(t *testing.T) {
	f := setup(t, 10)
	ctx := context.Background()
	now := time.Now().UTC()

	a := f.user(t, "a@example.com", domain.IntervalDaily)
	b := f.user(t, "b@example.com", domain.IntervalDaily)
	w := f.user(t, "w@example.com", domain.IntervalWeekly)

	fresh1 := f.notification(t, domain.CategoryNewComment, commentOn("One"), now.Add(-time.Hour))
	fresh2 := f.notification(t, domain.CategoryNewThread, commentOn("Two"), now.Add(-2*time.Hour))
	edit := f.notification(t, domain.CategoryCommentEdit, commentOn("Edit"), now.Add(-time.Hour))
	stale := f.notification(t, domain.CategoryNewComment, commentOn("Old"), now.Add(-48*time.Hour))

	f.deliver(t, stale, a, 1)
	f.deliver(t, fresh1, a, 2)
	f.deliver(t, fresh2, a, 3)
	f.deliver(t, edit, a, 4)
	f.deliver(t, stale, b, 1)
	f.deliver(t, edit, b, 2)
	f.deliver(t, fresh1, w, 1)

	report, err := f.dispatcher.DispatchDigest(ctx, domain.IntervalDaily)
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Equal(t, 2, report.UsersScanned)
	assert.Equal(t, 1, report.EmailsSent)

	sent := f.mailer.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "a@example.com", sent[0].To)
	assert.Equal(t, "2 new notifications", sent[0].Subject)
	assert.Contains(t, sent[0].TextBody, `commented on "One"`)
	assert.Contains(t, sent[0].TextBody, `created "Two"`)
	assert.NotContains(t, sent[0].TextBody, "Old")
	assert.NotContains(t, sent[0].TextBody, "Edit")

	again, err := f.dispatcher.DispatchDigest(ctx, domain.IntervalDaily)
	require.NoError(t, err)
	assert.True(t, again.Skipped)
	assert.Len(t, f.mailer.sent(), 1)
}

func TestDispatchDigest_PagesThroughUsers(t *testing.T) {
	f := setup(t, 1)
	now := time.Now().UTC()

	var users []*domain.User
	for i := 0; i < 3; i++ {
		users = append(users, f.user(t, fmt.Sprintf("u%d@example.com", i), domain.IntervalWeekly))
	}
	n := f.notification(t, domain.CategoryNewComment, commentOn("Weekly"), now.Add(-72*time.Hour))
	for _, u := range users {
		f.deliver(t, n, u, 1)
	}
	f.mailer.fail["u1@example.com"] = true

	report, err := f.dispatcher.DispatchDigest(context.Background(), domain.IntervalWeekly)
	require.NoError(t, err)
	assert.Equal(t, 3, report.UsersScanned)
	assert.Equal(t, 2, report.EmailsSent)
	assert.Equal(t, 1, report.Failed)

	f.mailer.mu.Lock()
	assert.Len(t, f.mailer.batches, 3)
	f.mailer.mu.Unlock()
	for _, m := range f.mailer.sent() {
		assert.Equal(t, "1 new notification", m.Subject)
	}
}

func TestDispatchDigest_RejectsUnknownInterval(t *testing.T) {
	f := setup(t, 10)
	_, err := f.dispatcher.DispatchDigest(context.Background(), domain.IntervalNever)
	assert.ErrorIs(t, err, ErrUnsupportedInterval)
}
