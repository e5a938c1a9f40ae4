package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"conference-central/model"
)

// LocalStore is an in-process entity store for development and tests. Transactions are
// optimistic: every document carries a version, reads inside a transaction record the version
// they saw and commit fails with ErrConcurrentModification if any of them moved.
// When path is set the whole store is written to that file as extended JSON after each commit.
type LocalStore struct {
	mu     sync.Mutex
	path   string
	nextID int64

	profiles    *table[model.Profile]
	conferences *table[model.Conference]
	sessions    *table[model.Session]
	wishlists   *table[model.Wishlist]
	users       *table[model.UserData]
}

type record[T any] struct {
	version int64
	value   T
}

type table[T any] struct {
	name      string
	rows      map[string]*record[T]
	id        func(*T) string
	ancestors func(*T) []string
	fields    map[string]func(*T) any
}

func newTable[T any](name string, id func(*T) string) *table[T] {
	return &table[T]{name: name, rows: map[string]*record[T]{}, id: id}
}

func (t *table[T]) version(id string) int64 {
	if r, ok := t.rows[id]; ok {
		return r.version
	}
	return 0
}

func (t *table[T]) set(id string, value T) {
	r, ok := t.rows[id]
	if !ok {
		r = &record[T]{}
		t.rows[id] = r
	}
	r.version++
	r.value = value
}

type txKey struct{}

type readMark struct {
	version int64
	current func() int64
}

type localTx struct {
	reads  map[string]readMark
	writes map[string]pendingWrite
	order  []string
}

type pendingWrite struct {
	value any
	apply func()
}

func txFrom(ctx context.Context) *localTx {
	tx, _ := ctx.Value(txKey{}).(*localTx)
	return tx
}

// NewLocalStore returns an empty store kept only in memory.
func NewLocalStore() *LocalStore {
	s := &LocalStore{
		profiles:    newTable("profiles", func(p *model.Profile) string { return p.UserID }),
		conferences: newTable("conferences", func(c *model.Conference) string { return c.Key }),
		sessions:    newTable("sessions", func(s *model.Session) string { return s.Key }),
		wishlists:   newTable("wishlists", func(w *model.Wishlist) string { return w.UserID }),
		users:       newTable("users", func(u *model.UserData) string { return u.Login }),
	}

	s.conferences.ancestors = func(c *model.Conference) []string { return c.Ancestors }
	s.conferences.fields = map[string]func(*model.Conference) any{
		"name":            func(c *model.Conference) any { return c.Name },
		"description":     func(c *model.Conference) any { return c.Description },
		"organizerUserId": func(c *model.Conference) any { return c.OrganizerUserID },
		"topics":          func(c *model.Conference) any { return c.Topics },
		"city":            func(c *model.Conference) any { return c.City },
		"month":           func(c *model.Conference) any { return c.Month },
		"maxAttendees":    func(c *model.Conference) any { return c.MaxAttendees },
		"seatsAvailable":  func(c *model.Conference) any { return c.SeatsAvailable },
	}

	s.sessions.ancestors = func(s *model.Session) []string { return s.Ancestors }
	s.sessions.fields = map[string]func(*model.Session) any{
		"name":          func(s *model.Session) any { return s.Name },
		"type":          func(s *model.Session) any { return s.Type },
		"conferenceKey": func(s *model.Session) any { return s.ConferenceKey },
		"speakers.name": func(s *model.Session) any { return s.SpeakerNames() },
		"highlights":    func(s *model.Session) any { return s.Highlights },
		"duration":      func(s *model.Session) any { return s.Duration },
		"startTime": func(s *model.Session) any {
			if s.StartTime == nil {
				return nil
			}
			return *s.StartTime
		},
	}
	return s
}

type localSnapshot struct {
	NextID      int64              `bson:"nextId"`
	Profiles    []model.Profile    `bson:"profiles"`
	Conferences []model.Conference `bson:"conferences"`
	Sessions    []model.Session    `bson:"sessions"`
	Wishlists   []model.Wishlist   `bson:"wishlists"`
	Users       []model.UserData   `bson:"users"`
}

// OpenLocalStore loads the store persisted at path, starting empty when the file does not exist.
func OpenLocalStore(path string) (*LocalStore, error) {
	s := NewLocalStore()
	s.path = path

	fileBytes, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(strings.TrimSpace(string(fileBytes))) == 0) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read local db: %w", err)
	}

	var snapshot localSnapshot
	if err := bson.UnmarshalExtJSON(fileBytes, false, &snapshot); err != nil {
		return nil, fmt.Errorf("decode local db: %w", err)
	}
	s.nextID = snapshot.NextID
	load(s.profiles, snapshot.Profiles)
	load(s.conferences, snapshot.Conferences)
	load(s.sessions, snapshot.Sessions)
	load(s.wishlists, snapshot.Wishlists)
	load(s.users, snapshot.Users)
	return s, nil
}

func load[T any](t *table[T], values []T) {
	for i := range values {
		t.set(t.id(&values[i]), values[i])
	}
}

func rows[T any](t *table[T]) []T {
	out := make([]T, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, r.value)
	}
	sort.Slice(out, func(i, j int) bool { return t.id(&out[i]) < t.id(&out[j]) })
	return out
}

func (s *LocalStore) persistLocked() error {
	if s.path == "" {
		return nil
	}
	snapshot := localSnapshot{
		NextID:      s.nextID,
		Profiles:    rows(s.profiles),
		Conferences: rows(s.conferences),
		Sessions:    rows(s.sessions),
		Wishlists:   rows(s.wishlists),
		Users:       rows(s.users),
	}
	data, err := bson.MarshalExtJSON(snapshot, false, false)
	if err != nil {
		return fmt.Errorf("encode local db: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write local db: %w", err)
	}
	return nil
}

func clone[T any](v *T) (*T, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out T
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func get[T any](ctx context.Context, s *LocalStore, t *table[T], id string) (*T, error) {
	tx := txFrom(ctx)
	ref := t.name + "/" + id
	if tx != nil {
		if w, ok := tx.writes[ref]; ok {
			v := w.value.(T)
			return clone(&v)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := t.rows[id]
	if tx != nil {
		if _, seen := tx.reads[ref]; !seen {
			tx.reads[ref] = readMark{
				version: t.version(id),
				current: func() int64 { return t.version(id) },
			}
		}
	}
	if !ok {
		return nil, fmt.Errorf("%s %q: %w", t.name, id, ErrNotFound)
	}
	return clone(&r.value)
}

func getMulti[T any](ctx context.Context, s *LocalStore, t *table[T], ids []string) ([]T, error) {
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		v, err := get(ctx, s, t, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

func put[T any](ctx context.Context, s *LocalStore, t *table[T], v *T) error {
	c, err := clone(v)
	if err != nil {
		return fmt.Errorf("copy %s: %w", t.name, err)
	}
	id := t.id(c)
	if id == "" {
		return fmt.Errorf("put %s: empty id", t.name)
	}

	if tx := txFrom(ctx); tx != nil {
		ref := t.name + "/" + id
		if _, ok := tx.writes[ref]; !ok {
			tx.order = append(tx.order, ref)
		}
		tx.writes[ref] = pendingWrite{value: *c, apply: func() { t.set(id, *c) }}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t.set(id, *c)
	return s.persistLocked()
}

func query[T any](s *LocalStore, t *table[T], q Query) ([]T, error) {
	s.mu.Lock()
	var out []T
	for _, r := range t.rows {
		v := r.value
		if q.Ancestor != "" && (t.ancestors == nil || !slices.Contains(t.ancestors(&v), q.Ancestor)) {
			continue
		}
		ok, err := matchesAll(t, &v, q.Filters)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		if !ok {
			continue
		}
		c, err := clone(&v)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		out = append(out, *c)
	}
	s.mu.Unlock()

	for _, field := range q.OrderBy {
		if _, ok := t.fields[field]; !ok {
			return nil, fmt.Errorf("%s: cannot order by unknown field %q", t.name, field)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		for _, field := range q.OrderBy {
			get := t.fields[field]
			if c := compareForSort(get(&out[i]), get(&out[j])); c != 0 {
				return c < 0
			}
		}
		return t.id(&out[i]) < t.id(&out[j])
	})
	return out, nil
}

func matchesAll[T any](t *table[T], v *T, filters []Filter) (bool, error) {
	for _, f := range filters {
		get, ok := t.fields[f.Field]
		if !ok {
			return false, fmt.Errorf("%s: cannot filter on unknown field %q", t.name, f.Field)
		}
		ok, err := matchValue(get(v), f.Op, f.Value)
		if err != nil {
			return false, fmt.Errorf("%s.%s: %w", t.name, f.Field, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchValue(field any, op Operator, value any) (bool, error) {
	if list, ok := field.([]string); ok {
		if op == OpNe {
			for _, elem := range list {
				if c, err := compare(elem, value); err != nil || c == 0 {
					return false, err
				}
			}
			return true, nil
		}
		for _, elem := range list {
			ok, err := matchValue(elem, op, value)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}
	if field == nil {
		return op == OpNe, nil
	}

	c, err := compare(field, value)
	if err != nil {
		return false, err
	}
	switch op {
	case OpEq:
		return c == 0, nil
	case OpNe:
		return c != 0, nil
	case OpGt:
		return c > 0, nil
	case OpGte:
		return c >= 0, nil
	case OpLt:
		return c < 0, nil
	case OpLte:
		return c <= 0, nil
	default:
		return false, fmt.Errorf("unknown operator %q", op)
	}
}

func compare(a, b any) (int, error) {
	switch av := a.(type) {
	case int:
		bv, ok := b.(int)
		if !ok {
			return 0, fmt.Errorf("cannot compare int with %T", b)
		}
		return av - bv, nil
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("cannot compare string with %T", b)
		}
		return strings.Compare(av, bv), nil
	default:
		return 0, fmt.Errorf("unsupported field type %T", a)
	}
}

// compareForSort orders missing values first and arrays by their first element.
func compareForSort(a, b any) int {
	if list, ok := a.([]string); ok {
		a = first(list)
	}
	if list, ok := b.([]string); ok {
		b = first(list)
	}
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	c, err := compare(a, b)
	if err != nil {
		return 0
	}
	return c
}

func first(list []string) any {
	if len(list) == 0 {
		return nil
	}
	return list[0]
}

func (s *LocalStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	tx := &localTx{reads: map[string]readMark{}, writes: map[string]pendingWrite{}}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for ref, read := range tx.reads {
		if read.current() != read.version {
			return fmt.Errorf("%s changed during transaction: %w", ref, ErrConcurrentModification)
		}
	}
	for _, ref := range tx.order {
		tx.writes[ref].apply()
	}
	return s.persistLocked()
}

func (s *LocalStore) AllocateID(ctx context.Context, kind string, parent *model.Key) (*model.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return model.NewKey(kind, strconv.FormatInt(s.nextID, 10), parent), nil
}

func (s *LocalStore) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	return get(ctx, s, s.profiles, userID)
}

func (s *LocalStore) GetProfiles(ctx context.Context, userIDs []string) ([]model.Profile, error) {
	return getMulti(ctx, s, s.profiles, userIDs)
}

func (s *LocalStore) PutProfile(ctx context.Context, profile *model.Profile) error {
	return put(ctx, s, s.profiles, profile)
}

func (s *LocalStore) GetConference(ctx context.Context, key string) (*model.Conference, error) {
	return get(ctx, s, s.conferences, key)
}

func (s *LocalStore) GetConferences(ctx context.Context, keys []string) ([]model.Conference, error) {
	return getMulti(ctx, s, s.conferences, keys)
}

func (s *LocalStore) PutConference(ctx context.Context, conference *model.Conference) error {
	return put(ctx, s, s.conferences, conference)
}

func (s *LocalStore) QueryConferences(ctx context.Context, q Query) ([]model.Conference, error) {
	return query(s, s.conferences, q)
}

func (s *LocalStore) GetSession(ctx context.Context, key string) (*model.Session, error) {
	return get(ctx, s, s.sessions, key)
}

func (s *LocalStore) GetSessions(ctx context.Context, keys []string) ([]model.Session, error) {
	return getMulti(ctx, s, s.sessions, keys)
}

func (s *LocalStore) PutSession(ctx context.Context, session *model.Session) error {
	return put(ctx, s, s.sessions, session)
}

func (s *LocalStore) QuerySessions(ctx context.Context, q Query) ([]model.Session, error) {
	return query(s, s.sessions, q)
}

func (s *LocalStore) GetWishlist(ctx context.Context, userID string) (*model.Wishlist, error) {
	return get(ctx, s, s.wishlists, userID)
}

func (s *LocalStore) PutWishlist(ctx context.Context, wishlist *model.Wishlist) error {
	return put(ctx, s, s.wishlists, wishlist)
}

func (s *LocalStore) GetUserData(ctx context.Context, login string) (*model.UserData, error) {
	return get(ctx, s, s.users, login)
}

func (s *LocalStore) PutUserData(ctx context.Context, user *model.UserData) error {
	return put(ctx, s, s.users, user)
}

func (s *LocalStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}
