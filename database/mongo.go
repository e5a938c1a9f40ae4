package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"

	"conference-central/model"
)

// MongoStore keeps entities in a MongoDB replica set. Cross-document atomicity relies on
// multi-document transactions, which MongoDB only offers on replica sets and sharded clusters.
type MongoStore struct {
	client      *mongo.Client
	logger      *zap.Logger
	profiles    *mongo.Collection
	conferences *mongo.Collection
	sessions    *mongo.Collection
	wishlists   *mongo.Collection
	users       *mongo.Collection
}

var operators = map[Operator]string{
	OpEq:  "$eq",
	OpNe:  "$ne",
	OpGt:  "$gt",
	OpGte: "$gte",
	OpLt:  "$lt",
	OpLte: "$lte",
}

func DBInit(ctx context.Context, connString, database string, logger *zap.Logger) (*MongoStore, error) {
	clientOptions := options.Client().ApplyURI(connString)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to the db: %w", err)
	}

	err = client.Ping(ctx, nil)
	if err != nil {
		disconnect(client, logger)
		return nil, fmt.Errorf("db is not available: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:      client,
		logger:      logger,
		profiles:    db.Collection(profilesCollection),
		conferences: db.Collection(conferencesCollection),
		sessions:    db.Collection(sessionsCollection),
		wishlists:   db.Collection(wishlistsCollection),
		users:       db.Collection(usersCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		disconnect(client, logger)
		return nil, err
	}
	logger.Info("connected to mongo", zap.String("database", database))
	return s, nil
}

func disconnect(client *mongo.Client, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		logger.Warn("disconnect from mongo", zap.Error(err))
	}
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.conferences: {
			{Keys: bson.D{{Key: "ancestors", Value: 1}}},
			{Keys: bson.D{{Key: "seatsAvailable", Value: 1}, {Key: "name", Value: 1}}},
		},
		s.sessions: {
			{Keys: bson.D{{Key: "ancestors", Value: 1}, {Key: "type", Value: 1}}},
			{Keys: bson.D{{Key: "speakers.name", Value: 1}}},
			{Keys: bson.D{{Key: "highlights", Value: 1}}},
		},
	}
	for collection, models := range indexes {
		if _, err := collection.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", collection.Name(), err)
		}
	}
	return nil
}

// RunInTransaction runs fn in a snapshot transaction. Write conflicts and unknown commit
// results are reported as ErrConcurrentModification.
func (s *MongoStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	txOptions := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.New(writeconcern.WMajority()))

	return s.client.UseSession(ctx, func(sc mongo.SessionContext) error {
		if err := sc.StartTransaction(txOptions); err != nil {
			return fmt.Errorf("start transaction: %w", err)
		}
		if err := fn(sc); err != nil {
			if abortErr := sc.AbortTransaction(context.Background()); abortErr != nil {
				s.logger.Warn("abort transaction", zap.Error(abortErr))
			}
			return classifyTxError(err)
		}
		if err := sc.CommitTransaction(sc); err != nil {
			return classifyTxError(err)
		}
		return nil
	})
}

func classifyTxError(err error) error {
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) &&
		(serverErr.HasErrorLabel(driverTransientLabel) || serverErr.HasErrorLabel(driverUnknownCommitLabel)) {
		return fmt.Errorf("%w: %v", ErrConcurrentModification, err)
	}
	return err
}

const (
	driverTransientLabel     = "TransientTransactionError"
	driverUnknownCommitLabel = "UnknownTransactionCommitResult"
)

func (s *MongoStore) AllocateID(ctx context.Context, kind string, parent *model.Key) (*model.Key, error) {
	return model.NewKey(kind, primitive.NewObjectID().Hex(), parent), nil
}

func findOne[T any](ctx context.Context, collection *mongo.Collection, id string) (*T, error) {
	var out T
	err := collection.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s %q: %w", collection.Name(), id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("server side problem occured while reading %s: %w", collection.Name(), err)
	}
	return &out, nil
}

// findMany returns the documents with the given ids in the order of ids, skipping missing ones.
func findMany[T any](ctx context.Context, collection *mongo.Collection, ids []string, id func(*T) string) ([]T, error) {
	if len(ids) == 0 {
		return []T{}, nil
	}
	found, err := find[T](ctx, collection, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}, nil)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]T, len(found))
	for i := range found {
		byID[id(&found[i])] = found[i]
	}
	out := make([]T, 0, len(ids))
	for _, key := range ids {
		if v, ok := byID[key]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func find[T any](ctx context.Context, collection *mongo.Collection, filter bson.D, opts *options.FindOptions) ([]T, error) {
	cur, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("server side problem occured while querying %s: %w", collection.Name(), err)
	}
	defer cur.Close(ctx)

	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("server side problem occured while decoding %s: %w", collection.Name(), err)
	}
	return out, nil
}

func replace[T any](ctx context.Context, collection *mongo.Collection, id string, v *T) error {
	if id == "" {
		return fmt.Errorf("put %s: empty id", collection.Name())
	}
	_, err := collection.ReplaceOne(ctx, bson.D{{Key: "_id", Value: id}}, v, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("server side problem occured while writing %s: %w", collection.Name(), err)
	}
	return nil
}

// queryFilter builds the find filter. Predicates on the same field share one operator
// document, so a range reads {seatsAvailable: {$lte: 5, $gt: 0}}.
func queryFilter(q Query) (bson.D, error) {
	filter := bson.D{}
	if q.Ancestor != "" {
		filter = append(filter, bson.E{Key: "ancestors", Value: q.Ancestor})
	}
	fields := map[string]int{}
	for _, f := range q.Filters {
		op, ok := operators[f.Op]
		if !ok {
			return nil, fmt.Errorf("unknown operator %q", f.Op)
		}
		i, seen := fields[f.Field]
		if !seen {
			fields[f.Field] = len(filter)
			filter = append(filter, bson.E{Key: f.Field, Value: bson.D{{Key: op, Value: f.Value}}})
			continue
		}
		ops := filter[i].Value.(bson.D)
		filter[i].Value = append(ops, bson.E{Key: op, Value: f.Value})
	}
	return filter, nil
}

func queryOptions(q Query) *options.FindOptions {
	sort := bson.D{}
	for _, field := range q.OrderBy {
		sort = append(sort, bson.E{Key: field, Value: 1})
	}
	sort = append(sort, bson.E{Key: "_id", Value: 1})
	return options.Find().SetSort(sort)
}

func (s *MongoStore) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	return findOne[model.Profile](ctx, s.profiles, userID)
}

func (s *MongoStore) GetProfiles(ctx context.Context, userIDs []string) ([]model.Profile, error) {
	return findMany(ctx, s.profiles, userIDs, func(p *model.Profile) string { return p.UserID })
}

func (s *MongoStore) PutProfile(ctx context.Context, profile *model.Profile) error {
	return replace(ctx, s.profiles, profile.UserID, profile)
}

func (s *MongoStore) GetConference(ctx context.Context, key string) (*model.Conference, error) {
	return findOne[model.Conference](ctx, s.conferences, key)
}

func (s *MongoStore) GetConferences(ctx context.Context, keys []string) ([]model.Conference, error) {
	return findMany(ctx, s.conferences, keys, func(c *model.Conference) string { return c.Key })
}

func (s *MongoStore) PutConference(ctx context.Context, conference *model.Conference) error {
	return replace(ctx, s.conferences, conference.Key, conference)
}

func (s *MongoStore) QueryConferences(ctx context.Context, q Query) ([]model.Conference, error) {
	filter, err := queryFilter(q)
	if err != nil {
		return nil, err
	}
	return find[model.Conference](ctx, s.conferences, filter, queryOptions(q))
}

func (s *MongoStore) GetSession(ctx context.Context, key string) (*model.Session, error) {
	return findOne[model.Session](ctx, s.sessions, key)
}

func (s *MongoStore) GetSessions(ctx context.Context, keys []string) ([]model.Session, error) {
	return findMany(ctx, s.sessions, keys, func(sess *model.Session) string { return sess.Key })
}

func (s *MongoStore) PutSession(ctx context.Context, session *model.Session) error {
	return replace(ctx, s.sessions, session.Key, session)
}

func (s *MongoStore) QuerySessions(ctx context.Context, q Query) ([]model.Session, error) {
	filter, err := queryFilter(q)
	if err != nil {
		return nil, err
	}
	return find[model.Session](ctx, s.sessions, filter, queryOptions(q))
}

func (s *MongoStore) GetWishlist(ctx context.Context, userID string) (*model.Wishlist, error) {
	return findOne[model.Wishlist](ctx, s.wishlists, userID)
}

func (s *MongoStore) PutWishlist(ctx context.Context, wishlist *model.Wishlist) error {
	return replace(ctx, s.wishlists, wishlist.UserID, wishlist)
}

func (s *MongoStore) GetUserData(ctx context.Context, login string) (*model.UserData, error) {
	return findOne[model.UserData](ctx, s.users, login)
}

func (s *MongoStore) PutUserData(ctx context.Context, user *model.UserData) error {
	return replace(ctx, s.users, user.Login, user)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
