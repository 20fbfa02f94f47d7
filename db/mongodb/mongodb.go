// Package mongodb implements db.Storage on top of a MongoDB collection.
package mongodb

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/vocdoni/flatauth/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.vocdoni.io/dvote/log"
)

const (
	usersCollection = "users"
	defaultTimeout  = 10 * time.Second
	// ResetEnv drops the users collection on startup when set.
	ResetEnv = "FLATAUTH_MONGO_RESET_DB"
)

// userDocument is how a db.User is kept in the collection. The _id is a
// sequence that preserves the insertion order.
type userDocument struct {
	Seq      uint64 `bson:"_id"`
	ID       string `bson:"id"`
	Password string `bson:"password"`
}

func (d *userDocument) user() db.User {
	return db.User{ID: d.ID, Password: d.Password}
}

// MongoStorage keeps the users in a MongoDB collection. Mutations are
// serialized with keysLock, and a unique index on the id backs the duplicate
// check.
type MongoStorage struct {
	client   *mongo.Client
	keysLock sync.RWMutex
	users    *mongo.Collection
}

var _ db.Storage = (*MongoStorage)(nil)

// New connects to the MongoDB server at url and prepares the users
// collection of the database provided. Connection errors are returned
// wrapping db.ErrStoreUnavailable.
func New(url, database string) (*MongoStorage, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: mongo URL is not defined", db.ErrStoreUnavailable)
	}
	if database == "" {
		return nil, fmt.Errorf("%w: mongo database is not defined", db.ErrStoreUnavailable)
	}
	log.Infow("connecting to mongodb", "database", database)
	// preparing connection
	opts := options.Client()
	opts.ApplyURI(url)
	opts.SetMaxConnecting(20)
	timeout := defaultTimeout
	opts.ConnectTimeout = &timeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot connect to mongodb: %v", db.ErrStoreUnavailable, err)
	}
	// check if the connection is successful
	ctx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		disconnect(client)
		return nil, fmt.Errorf("%w: cannot connect to mongodb: %v", db.ErrStoreUnavailable, err)
	}
	ms := &MongoStorage{
		client: client,
		users:  client.Database(database).Collection(usersCollection),
	}
	// if reset flag is enabled, Reset drops the collection and recreates the
	// indexes, else just createIndexes
	if reset := os.Getenv(ResetEnv); reset != "" {
		if err := ms.Reset(); err != nil {
			ms.Close()
			return nil, err
		}
	} else if err := ms.createIndexes(); err != nil {
		ms.Close()
		return nil, err
	}
	return ms, nil
}

// Close disconnects the client.
func (ms *MongoStorage) Close() {
	disconnect(ms.client)
}

func disconnect(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		log.Warn(err)
	}
}

// Reset drops the users collection and recreates its indexes.
func (ms *MongoStorage) Reset() error {
	log.Infof("resetting users collection")
	ms.keysLock.Lock()
	defer ms.keysLock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	if err := ms.users.Drop(ctx); err != nil {
		return err
	}
	return ms.createIndexes()
}

func (ms *MongoStorage) createIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	// create an index for the 'id' field on users (must be unique)
	userIDIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}}, // 1 for ascending order
		Options: options.Index().SetUnique(true),
	}
	if _, err := ms.users.Indexes().CreateOne(ctx, userIDIndex); err != nil {
		return fmt.Errorf("failed to create index on id for users: %w", err)
	}
	return nil
}

// nextSeq returns the next available insertion sequence. It must be called
// with the keysLock held.
func (ms *MongoStorage) nextSeq(ctx context.Context) (uint64, error) {
	var doc userDocument
	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})
	if err := ms.users.FindOne(ctx, bson.M{}, opts).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return 1, nil
		}
		return 0, err
	}
	return doc.Seq + 1, nil
}

// UserByCredentials returns the first inserted user matching both the id and
// the password exactly, or db.ErrNotFound.
func (ms *MongoStorage) UserByCredentials(id, password string) (*db.User, error) {
	ms.keysLock.RLock()
	defer ms.keysLock.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	filter := bson.M{"id": id, "password": password}
	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: 1}})
	var doc userDocument
	if err := ms.users.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, db.ErrNotFound
		}
		return nil, err
	}
	user := doc.user()
	return &user, nil
}

// UserExists reports whether a user with the id provided is stored.
func (ms *MongoStorage) UserExists(id string) (bool, error) {
	ms.keysLock.RLock()
	defer ms.keysLock.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return ms.exists(ctx, id)
}

func (ms *MongoStorage) exists(ctx context.Context, id string) (bool, error) {
	count, err := ms.users.CountDocuments(ctx, bson.M{"id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Users returns every stored user in insertion order.
func (ms *MongoStorage) Users() ([]db.User, error) {
	ms.keysLock.RLock()
	defer ms.keysLock.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := ms.users.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cur.Close(ctx); err != nil {
			log.Warnw("error closing cursor", "error", err)
		}
	}()
	users := []db.User{}
	for cur.Next(ctx) {
		var doc userDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		users = append(users, doc.user())
	}
	return users, cur.Err()
}

// AddUser stores the user after the last one. The unique index still rejects
// a taken id with db.ErrUserExists; any other write error is returned
// wrapping db.ErrPersistFailure.
func (ms *MongoStorage) AddUser(user *db.User) error {
	if user == nil {
		return fmt.Errorf("nil user")
	}
	ms.keysLock.Lock()
	defer ms.keysLock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return ms.insert(ctx, user)
}

// RegisterUser checks the id is free and stores the user while holding the
// keysLock. It returns db.ErrUserExists if the id is taken.
func (ms *MongoStorage) RegisterUser(user *db.User) error {
	if user == nil {
		return fmt.Errorf("nil user")
	}
	ms.keysLock.Lock()
	defer ms.keysLock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	exists, err := ms.exists(ctx, user.ID)
	if err != nil {
		return err
	}
	if exists {
		return db.ErrUserExists
	}
	return ms.insert(ctx, user)
}

// insert must be called with the keysLock held.
func (ms *MongoStorage) insert(ctx context.Context, user *db.User) error {
	seq, err := ms.nextSeq(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", db.ErrPersistFailure, err)
	}
	doc := &userDocument{Seq: seq, ID: user.ID, Password: user.Password}
	if _, err := ms.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return db.ErrUserExists
		}
		return fmt.Errorf("%w: %v", db.ErrPersistFailure, err)
	}
	log.Debugw("user stored", "id", user.ID, "seq", seq)
	return nil
}

// Import stores the users provided, in order, skipping those whose id is
// already in the collection. It returns the number of users added.
func (ms *MongoStorage) Import(users []db.User) (int, error) {
	ms.keysLock.Lock()
	defer ms.keysLock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()
	log.Infow("importing users", "count", len(users))
	added := 0
	for i := range users {
		exists, err := ms.exists(ctx, users[i].ID)
		if err != nil {
			return added, err
		}
		if exists {
			log.Warnw("skipping already stored user", "id", users[i].ID)
			continue
		}
		if err := ms.insert(ctx, &users[i]); err != nil {
			return added, err
		}
		added++
	}
	log.Infow("users imported", "added", added)
	return added, nil
}
