package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conference-central/model"
)

func newConference(t *testing.T, s *LocalStore, owner, name string, seats int) *model.Conference {
	t.Helper()
	key, err := s.AllocateID(context.Background(), model.KindConference, model.ProfileKey(owner))
	require.NoError(t, err)
	conf := &model.Conference{
		Key:             key.Encode(),
		Ancestors:       key.Ancestors(),
		Name:            name,
		OrganizerUserID: owner,
		Topics:          []string{"Go", "Databases"},
		City:            "Berlin",
		MaxAttendees:    seats,
		SeatsAvailable:  seats,
	}
	require.NoError(t, s.PutConference(context.Background(), conf))
	return conf
}

func TestLocalStoreGetPut(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore()

	_, err := s.GetProfile(ctx, "alice")
	assert.True(t, errors.Is(err, ErrNotFound))

	profile := &model.Profile{UserID: "alice", DisplayName: "Alice"}
	require.NoError(t, s.PutProfile(ctx, profile))

	got, err := s.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.DisplayName)

	got.ConferenceKeysToAttend = append(got.ConferenceKeysToAttend, "k1")
	again, err := s.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, again.ConferenceKeysToAttend, "returned entities must not alias stored state")
}

func TestLocalStoreGetMultiSkipsMissing(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore()
	a := newConference(t, s, "alice", "A", 10)
	b := newConference(t, s, "bob", "B", 10)

	confs, err := s.GetConferences(ctx, []string{b.Key, "missing", a.Key})
	require.NoError(t, err)
	require.Len(t, confs, 2)
	assert.Equal(t, "B", confs[0].Name)
	assert.Equal(t, "A", confs[1].Name)
}

func TestLocalStoreAncestorQuery(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore()
	newConference(t, s, "alice", "A1", 10)
	newConference(t, s, "alice", "A2", 10)
	newConference(t, s, "bob", "B1", 10)

	confs, err := s.QueryConferences(ctx, Query{
		Ancestor: model.ProfileKey("alice").Encode(),
		OrderBy:  []string{"name"},
	})
	require.NoError(t, err)
	require.Len(t, confs, 2)
	assert.Equal(t, "A1", confs[0].Name)
	assert.Equal(t, "A2", confs[1].Name)
}

func TestLocalStoreFilters(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore()
	for name, seats := range map[string]int{"zero": 0, "three": 3, "five": 5, "six": 6} {
		conf := newConference(t, s, "alice", name, 10)
		conf.SeatsAvailable = seats
		require.NoError(t, s.PutConference(ctx, conf))
	}

	tests := []struct {
		description string
		filters     []Filter
		expected    []string
	}{
		{
			description: "range on seats",
			filters: []Filter{
				{Field: "seatsAvailable", Op: OpGt, Value: 0},
				{Field: "seatsAvailable", Op: OpLte, Value: 5},
			},
			expected: []string{"three", "five"},
		},
		{
			description: "array membership",
			filters:     []Filter{{Field: "topics", Op: OpEq, Value: "Go"}},
			expected:    []string{"zero", "three", "five", "six"},
		},
		{
			description: "array exclusion",
			filters:     []Filter{{Field: "topics", Op: OpNe, Value: "Go"}},
			expected:    []string{},
		},
	}

	for _, test := range tests {
		confs, err := s.QueryConferences(ctx, Query{Filters: test.filters, OrderBy: []string{"seatsAvailable"}})
		require.NoError(t, err, test.description)
		names := []string{}
		for _, c := range confs {
			names = append(names, c.Name)
		}
		assert.Equalf(t, test.expected, names, test.description)
	}
}

func TestLocalStoreQueryRejectsTypeMismatch(t *testing.T) {
	s := NewLocalStore()
	newConference(t, s, "alice", "A", 10)

	_, err := s.QueryConferences(context.Background(), Query{
		Filters: []Filter{{Field: "month", Op: OpEq, Value: "june"}},
	})
	assert.Error(t, err)
}

func TestLocalStoreTransactionCommits(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore()
	conf := newConference(t, s, "alice", "A", 10)

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		c, err := s.GetConference(ctx, conf.Key)
		if err != nil {
			return err
		}
		c.SeatsAvailable--
		if err := s.PutConference(ctx, c); err != nil {
			return err
		}
		// reads see the transaction's own writes
		again, err := s.GetConference(ctx, conf.Key)
		if err != nil {
			return err
		}
		assert.Equal(t, 9, again.SeatsAvailable)
		return s.PutProfile(ctx, &model.Profile{UserID: "bob", ConferenceKeysToAttend: []string{conf.Key}})
	})
	require.NoError(t, err)

	c, err := s.GetConference(ctx, conf.Key)
	require.NoError(t, err)
	assert.Equal(t, 9, c.SeatsAvailable)
	p, err := s.GetProfile(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{conf.Key}, p.ConferenceKeysToAttend)
}

func TestLocalStoreTransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore()
	conf := newConference(t, s, "alice", "A", 10)
	boom := errors.New("boom")

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		c, _ := s.GetConference(ctx, conf.Key)
		c.SeatsAvailable = 0
		_ = s.PutConference(ctx, c)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	c, err := s.GetConference(ctx, conf.Key)
	require.NoError(t, err)
	assert.Equal(t, 10, c.SeatsAvailable)
}

func TestLocalStoreTransactionDetectsConflict(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore()
	conf := newConference(t, s, "alice", "A", 10)

	err := s.RunInTransaction(ctx, func(txCtx context.Context) error {
		c, err := s.GetConference(txCtx, conf.Key)
		if err != nil {
			return err
		}

		// a competing writer commits between our read and our commit
		other := *conf
		other.SeatsAvailable = 1
		require.NoError(t, s.PutConference(ctx, &other))

		c.SeatsAvailable--
		return s.PutConference(txCtx, c)
	})
	assert.ErrorIs(t, err, ErrConcurrentModification)

	c, err := s.GetConference(ctx, conf.Key)
	require.NoError(t, err)
	assert.Equal(t, 1, c.SeatsAvailable)
}

func TestLocalStoreTransactionConflictOnCreatedDocument(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore()

	err := s.RunInTransaction(ctx, func(txCtx context.Context) error {
		_, err := s.GetProfile(txCtx, "carol")
		require.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.PutProfile(ctx, &model.Profile{UserID: "carol", DisplayName: "first"}))
		return s.PutProfile(txCtx, &model.Profile{UserID: "carol", DisplayName: "second"})
	})
	assert.ErrorIs(t, err, ErrConcurrentModification)
}

func TestLocalStorePersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "conferences.json")

	s, err := OpenLocalStore(path)
	require.NoError(t, err)
	conf := newConference(t, s, "alice", "Persisted", 25)
	require.NoError(t, s.PutWishlist(ctx, &model.Wishlist{UserID: "alice", SessionKeys: []string{"s1"}}))
	require.NoError(t, s.Close(ctx))

	reopened, err := OpenLocalStore(path)
	require.NoError(t, err)
	got, err := reopened.GetConference(ctx, conf.Key)
	require.NoError(t, err)
	assert.Equal(t, "Persisted", got.Name)
	assert.Equal(t, conf.Ancestors, got.Ancestors)
	wl, err := reopened.GetWishlist(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, wl.SessionKeys)

	key, err := reopened.AllocateID(ctx, model.KindConference, nil)
	require.NoError(t, err)
	assert.NotEqual(t, conf.Key, key.Encode())
}
