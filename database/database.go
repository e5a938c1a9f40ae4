package database

import (
	"context"
	"errors"

	"conference-central/model"
)

var (
	ErrNotFound = errors.New("entity not found")
	// ErrConcurrentModification is returned by RunInTransaction when another writer committed
	// a conflicting change first. The transaction had no effect and may be retried.
	ErrConcurrentModification = errors.New("concurrent modification")
)

type Operator string

const (
	OpEq  Operator = "="
	OpNe  Operator = "!="
	OpGt  Operator = ">"
	OpGte Operator = ">="
	OpLt  Operator = "<"
	OpLte Operator = "<="
)

func (op Operator) IsInequality() bool {
	return op != OpEq
}

// Filter compares a stored field with a value. Against array fields a filter matches when any
// element matches, except OpNe which matches when no element equals the value.
type Filter struct {
	Field string
	Op    Operator
	Value any
}

type Query struct {
	// Ancestor restricts results to descendants of the entity with this encoded key.
	Ancestor string
	Filters  []Filter
	// OrderBy lists field names sorted ascending, in priority order.
	OrderBy []string
}

// Store is the entity store. Calls made with the context handed to a RunInTransaction callback
// take part in that transaction.
type Store interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	// AllocateID returns a fresh id for an entity of kind under parent.
	AllocateID(ctx context.Context, kind string, parent *model.Key) (*model.Key, error)

	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	GetProfiles(ctx context.Context, userIDs []string) ([]model.Profile, error)
	PutProfile(ctx context.Context, profile *model.Profile) error

	GetConference(ctx context.Context, key string) (*model.Conference, error)
	GetConferences(ctx context.Context, keys []string) ([]model.Conference, error)
	PutConference(ctx context.Context, conference *model.Conference) error
	QueryConferences(ctx context.Context, query Query) ([]model.Conference, error)

	GetSession(ctx context.Context, key string) (*model.Session, error)
	GetSessions(ctx context.Context, keys []string) ([]model.Session, error)
	PutSession(ctx context.Context, session *model.Session) error
	QuerySessions(ctx context.Context, query Query) ([]model.Session, error)

	GetWishlist(ctx context.Context, userID string) (*model.Wishlist, error)
	PutWishlist(ctx context.Context, wishlist *model.Wishlist) error

	GetUserData(ctx context.Context, login string) (*model.UserData, error)
	PutUserData(ctx context.Context, user *model.UserData) error

	Close(ctx context.Context) error
}

const (
	profilesCollection    = "profiles"
	conferencesCollection = "conferences"
	sessionsCollection    = "sessions"
	wishlistsCollection   = "wishlists"
	usersCollection       = "users"
)
