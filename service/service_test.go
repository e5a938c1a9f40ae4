package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"conference-central/cache"
	"conference-central/database"
	"conference-central/mail"
	"conference-central/model"
)

type enqueuedTask struct {
	url    string
	params map[string]string
}

type recordingQueue struct {
	mu    sync.Mutex
	tasks []enqueuedTask
}

func (q *recordingQueue) Enqueue(url string, params map[string]string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, enqueuedTask{url: url, params: params})
	return nil
}

func (q *recordingQueue) byURL(url string) []enqueuedTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []enqueuedTask
	for _, task := range q.tasks {
		if task.url == url {
			out = append(out, task)
		}
	}
	return out
}

type sentMail struct {
	to, subject, body string
}

var _ mail.Mailer = (*recordingMailer)(nil)

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (m *recordingMailer) messages() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

// conflictingStore fails every transaction as if another writer always got there first.
type conflictingStore struct {
	database.Store
	attempts atomic.Int32
}

func (s *conflictingStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.attempts.Add(1)
	return database.ErrConcurrentModification
}

type fixture struct {
	svc   *Service
	store *database.LocalStore
	queue *recordingQueue
	mail  *recordingMailer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithLogger(zaptest.NewLogger(t))
}

func newFixtureWithLogger(logger *zap.Logger) *fixture {
	store := database.NewLocalStore()
	queue := &recordingQueue{}
	mailer := &recordingMailer{}
	svc := New(Deps{
		Store:           store,
		Announcements:   cache.NewInMemoryCacheManager[string]("announcements", 0, logger),
		FeaturedSpeaker: cache.NewInMemoryCacheManager[model.FeaturedSpeaker]("featured-speaker", 0, logger),
		Queue:           queue,
		Mailer:          mailer,
		Logger:          logger,
	}, Options{TxAttempts: 10, TxInitialBackoff: time.Millisecond})
	return &fixture{svc: svc, store: store, queue: queue, mail: mailer}
}

func caller(userID string) *Caller {
	return &Caller{UserID: userID, Email: userID + "@example.com"}
}

func seats(n int) *int {
	return &n
}

func (f *fixture) createConference(t *testing.T, owner, name string, maxAttendees int) model.ConferenceForm {
	t.Helper()
	form, err := f.svc.CreateConference(context.Background(), caller(owner), model.ConferenceForm{
		Name:         name,
		City:         "London",
		Topics:       []string{"Go"},
		StartDate:    "2026-06-10",
		MaxAttendees: seats(maxAttendees),
	})
	require.NoError(t, err)
	return form
}

func (f *fixture) createSession(t *testing.T, conferenceKey, name, sessionType, start string, speakers ...string) model.SessionForm {
	t.Helper()
	form, err := f.svc.CreateSession(context.Background(), caller("organizer"), model.SessionForm{
		Name:       name,
		Type:       sessionType,
		StartTime:  start,
		Speakers:   speakers,
		Highlights: []string{"intro"},
		ParentKey:  conferenceKey,
	})
	require.NoError(t, err)
	return form
}

func (f *fixture) seatsAvailable(t *testing.T, websafeKey string) int {
	t.Helper()
	conf, err := f.store.GetConference(context.Background(), websafeKey)
	require.NoError(t, err)
	return conf.SeatsAvailable
}
