package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"conference-central/cache"
	apperrors "conference-central/errors"
	"conference-central/model"
)

func TestRegisterTakesSeat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conf := f.createConference(t, "organizer", "GopherCon", 10)

	ok, err := f.svc.RegisterForConference(ctx, caller("alice"), conf.WebsafeKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 9, f.seatsAvailable(t, conf.WebsafeKey))

	prof, err := f.store.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{conf.WebsafeKey}, prof.ConferenceKeysToAttend)
	assert.Equal(t, "alice", prof.DisplayName)
	assert.Equal(t, model.TeeShirtNotSpecified, prof.TeeShirtSize)

	// one from creation, one from the registration
	assert.Len(t, f.queue.byURL(TaskSetAnnouncement), 2)
}

func TestRegisterFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conf := f.createConference(t, "organizer", "GopherCon", 10)
	full := f.createConference(t, "organizer", "Sold Out", 0)
	session := f.createSession(t, conf.WebsafeKey, "Keynote", "keynote", "09:00", "Rob")

	_, err := f.svc.RegisterForConference(ctx, caller("alice"), conf.WebsafeKey)
	require.NoError(t, err)

	tests := []struct {
		description string
		caller      *Caller
		key         string
		kind        apperrors.Kind
	}{
		{"no caller", nil, conf.WebsafeKey, apperrors.KindUnauthorized},
		{"already registered", caller("alice"), conf.WebsafeKey, apperrors.KindConflict},
		{"no seats", caller("alice"), full.WebsafeKey, apperrors.KindConflict},
		{"malformed key", caller("alice"), "not a key!", apperrors.KindNotFound},
		{"session key", caller("alice"), session.WebsafeKey, apperrors.KindNotFound},
		{"unknown conference", caller("alice"), model.NewKey(model.KindConference, "404", model.ProfileKey("organizer")).Encode(), apperrors.KindNotFound},
	}

	for _, test := range tests {
		ok, err := f.svc.RegisterForConference(ctx, test.caller, test.key)
		assert.False(t, ok, test.description)
		assert.Equalf(t, test.kind, apperrors.KindOf(err), "%s: %v", test.description, err)
	}

	assert.Equal(t, 9, f.seatsAvailable(t, conf.WebsafeKey))
	assert.Equal(t, 0, f.seatsAvailable(t, full.WebsafeKey))
}

func TestUnregister(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conf := f.createConference(t, "organizer", "GopherCon", 10)

	ok, err := f.svc.UnregisterFromConference(ctx, caller("alice"), conf.WebsafeKey)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 10, f.seatsAvailable(t, conf.WebsafeKey))

	_, err = f.svc.RegisterForConference(ctx, caller("alice"), conf.WebsafeKey)
	require.NoError(t, err)

	ok, err = f.svc.UnregisterFromConference(ctx, caller("alice"), conf.WebsafeKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10, f.seatsAvailable(t, conf.WebsafeKey))

	prof, err := f.store.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, prof.ConferenceKeysToAttend)
}

func TestRegisterLastSeats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conf := f.createConference(t, "organizer", "Tiny", 10)

	for i := 0; i < 10; i++ {
		ok, err := f.svc.RegisterForConference(ctx, caller(fmt.Sprintf("user-%d", i)), conf.WebsafeKey)
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Equal(t, 0, f.seatsAvailable(t, conf.WebsafeKey))

	_, err := f.svc.RegisterForConference(ctx, caller("late"), conf.WebsafeKey)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	ok, err := f.svc.UnregisterFromConference(ctx, caller("user-3"), conf.WebsafeKey)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.RegisterForConference(ctx, caller("late"), conf.WebsafeKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, f.seatsAvailable(t, conf.WebsafeKey))
}

func TestConcurrentRegistrationsNeverOversell(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conf := f.createConference(t, "organizer", "Popular", 5)

	var wg sync.WaitGroup
	results := make([]error, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.RegisterForConference(ctx, caller(fmt.Sprintf("user-%d", i)), conf.WebsafeKey)
		}(i)
	}
	wg.Wait()

	registered := 0
	for _, err := range results {
		if err == nil {
			registered++
			continue
		}
		assert.True(t, apperrors.Is(err, apperrors.KindConflict), err)
	}
	assert.Equal(t, 5, registered)
	assert.Equal(t, 0, f.seatsAvailable(t, conf.WebsafeKey))
}

func TestRegistrationRetriesExhaustedIsTransient(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	f := newFixture(t)
	conf := f.createConference(t, "organizer", "GopherCon", 10)

	store := &conflictingStore{Store: f.store}
	svc := New(Deps{
		Store:           store,
		Announcements:   cache.NewInMemoryCacheManager[string]("announcements", 0, logger),
		FeaturedSpeaker: cache.NewInMemoryCacheManager[model.FeaturedSpeaker]("featured-speaker", 0, logger),
		Queue:           f.queue,
		Mailer:          f.mail,
		Logger:          logger,
	}, Options{TxAttempts: 3, TxInitialBackoff: 1})

	_, err := svc.RegisterForConference(ctx, caller("alice"), conf.WebsafeKey)
	assert.True(t, apperrors.Is(err, apperrors.KindTransient), err)
	assert.Equal(t, int32(3), store.attempts.Load())
	assert.Equal(t, 10, f.seatsAvailable(t, conf.WebsafeKey))
}

func TestSeatAccountingProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		f := newFixtureWithLogger(zap.NewNop())
		capacity := rapid.IntRange(0, 4).Draw(rt, "capacity")

		form, err := f.svc.CreateConference(ctx, caller("organizer"), model.ConferenceForm{Name: "Prop", MaxAttendees: &capacity})
		if err != nil {
			rt.Fatalf("create: %v", err)
		}

		ops := rapid.SliceOfN(rapid.IntRange(0, 11), 1, 40).Draw(rt, "ops")
		for _, op := range ops {
			user := caller(fmt.Sprintf("user-%d", op%6))
			if op < 6 {
				_, err = f.svc.RegisterForConference(ctx, user, form.WebsafeKey)
				if err != nil && !apperrors.Is(err, apperrors.KindConflict) {
					rt.Fatalf("register: %v", err)
				}
			} else if _, err = f.svc.UnregisterFromConference(ctx, user, form.WebsafeKey); err != nil {
				rt.Fatalf("unregister: %v", err)
			}

			conf, err := f.store.GetConference(ctx, form.WebsafeKey)
			if err != nil {
				rt.Fatalf("get: %v", err)
			}
			registered := 0
			for i := 0; i < 6; i++ {
				prof, err := f.store.GetProfile(ctx, fmt.Sprintf("user-%d", i))
				if err == nil && prof.IsRegistered(form.WebsafeKey) {
					registered++
				}
			}
			if conf.SeatsAvailable < 0 || conf.SeatsAvailable+registered != capacity {
				rt.Fatalf("seats %d with %d registered, capacity %d", conf.SeatsAvailable, registered, capacity)
			}
		}
	})
}
