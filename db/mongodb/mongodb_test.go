package mongodb

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/flatauth/db"
	"github.com/vocdoni/flatauth/test"
)

var testDB *MongoStorage

func TestMain(m *testing.M) {
	ctx := context.Background()
	// start a MongoDB container for testing
	dbContainer, err := test.StartMongoContainer(ctx)
	if err != nil {
		panic(fmt.Sprintf("failed to start MongoDB container: %v", err))
	}
	// get the MongoDB connection string
	mongoURI, err := dbContainer.Endpoint(ctx, "mongodb")
	if err != nil {
		panic(fmt.Sprintf("failed to get MongoDB endpoint: %v", err))
	}
	testDB, err = New(mongoURI, test.RandomDatabaseName())
	if err != nil {
		panic(fmt.Sprintf("failed to create new MongoDB connection: %v", err))
	}

	code := m.Run()

	// close the database connection
	testDB.Close()
	// stop the MongoDB container
	if err := dbContainer.Terminate(ctx); err != nil {
		panic(fmt.Sprintf("failed to stop MongoDB container: %v", err))
	}
	os.Exit(code)
}

func TestNewUnavailable(t *testing.T) {
	c := qt.New(t)
	_, err := New("", "db")
	c.Assert(err, qt.ErrorIs, db.ErrStoreUnavailable)
	_, err = New("mongodb://localhost:1", "")
	c.Assert(err, qt.ErrorIs, db.ErrStoreUnavailable)
}

func TestUserByCredentials(t *testing.T) {
	c := qt.New(t)
	c.Assert(testDB.Reset(), qt.IsNil)

	// not found on an empty collection
	user, err := testDB.UserByCredentials("bob", "secret")
	c.Assert(err, qt.Equals, db.ErrNotFound)
	c.Assert(user, qt.IsNil)
	// store and find it
	c.Assert(testDB.AddUser(&db.User{ID: "bob", Password: "secret"}), qt.IsNil)
	user, err = testDB.UserByCredentials("bob", "secret")
	c.Assert(err, qt.IsNil)
	c.Assert(*user, qt.Equals, db.User{ID: "bob", Password: "secret"})
	// exact matches only
	_, err = testDB.UserByCredentials("bob", "wrong")
	c.Assert(err, qt.Equals, db.ErrNotFound)
	_, err = testDB.UserByCredentials("Bob", "secret")
	c.Assert(err, qt.Equals, db.ErrNotFound)
}

func TestUserExists(t *testing.T) {
	c := qt.New(t)
	c.Assert(testDB.Reset(), qt.IsNil)

	exists, err := testDB.UserExists("a")
	c.Assert(err, qt.IsNil)
	c.Assert(exists, qt.IsFalse)
	c.Assert(testDB.AddUser(&db.User{ID: "a", Password: "p"}), qt.IsNil)
	exists, err = testDB.UserExists("a")
	c.Assert(err, qt.IsNil)
	c.Assert(exists, qt.IsTrue)
	exists, err = testDB.UserExists("A")
	c.Assert(err, qt.IsNil)
	c.Assert(exists, qt.IsFalse)
}

func TestRegisterUser(t *testing.T) {
	c := qt.New(t)
	c.Assert(testDB.Reset(), qt.IsNil)

	c.Assert(testDB.RegisterUser(&db.User{ID: "x", Password: "1"}), qt.IsNil)
	c.Assert(testDB.RegisterUser(&db.User{ID: "x", Password: "2"}), qt.Equals, db.ErrUserExists)
	// the unique index rejects duplicates on the unchecked path too
	c.Assert(testDB.AddUser(&db.User{ID: "x", Password: "3"}), qt.Equals, db.ErrUserExists)
	c.Assert(testDB.RegisterUser(&db.User{ID: "y", Password: "2"}), qt.IsNil)

	users, err := testDB.Users()
	c.Assert(err, qt.IsNil)
	c.Assert(users, qt.DeepEquals, []db.User{{ID: "x", Password: "1"}, {ID: "y", Password: "2"}})
}

func TestRegisterUserConcurrent(t *testing.T) {
	c := qt.New(t)
	c.Assert(testDB.Reset(), qt.IsNil)

	const workers = 10
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		registered int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := testDB.RegisterUser(&db.User{ID: "dup", Password: fmt.Sprintf("pass%d", i)})
			if err == nil {
				mu.Lock()
				registered++
				mu.Unlock()
			} else if err != db.ErrUserExists {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	c.Assert(registered, qt.Equals, 1)
	users, err := testDB.Users()
	c.Assert(err, qt.IsNil)
	c.Assert(users, qt.HasLen, 1)
}

func TestImport(t *testing.T) {
	c := qt.New(t)
	c.Assert(testDB.Reset(), qt.IsNil)
	c.Assert(testDB.AddUser(&db.User{ID: "b", Password: "stored"}), qt.IsNil)

	added, err := testDB.Import([]db.User{
		{ID: "a", Password: "1"},
		{ID: "b", Password: "2"},
		{ID: "c", Password: "3"},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(added, qt.Equals, 2)

	// insertion order is kept and the stored user is not overwritten
	users, err := testDB.Users()
	c.Assert(err, qt.IsNil)
	c.Assert(users, qt.DeepEquals, []db.User{
		{ID: "b", Password: "stored"},
		{ID: "a", Password: "1"},
		{ID: "c", Password: "3"},
	})
}
