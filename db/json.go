package db

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/facebookgo/atomicfile"
	"go.vocdoni.io/dvote/log"
)

// defaultFileMode is used when the backing document mode cannot be read.
const defaultFileMode os.FileMode = 0o644

// JSONStorage keeps the whole user collection in memory and mirrors it to a
// single JSON document. Every successful mutation rewrites the full document
// before returning.
type JSONStorage struct {
	path  string
	mode  os.FileMode
	mutex sync.RWMutex
	users []User
}

// NewJSONStorage loads the backing document at path and returns a storage
// ready to serve it. If the document is missing or does not hold a JSON
// array of users, it returns an error wrapping ErrStoreUnavailable.
func NewJSONStorage(path string) (*JSONStorage, error) {
	s := &JSONStorage{
		path: filepath.Clean(path),
		mode: defaultFileMode,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	log.Infow("user store loaded", "path", s.path, "users", len(s.users))
	return s, nil
}

func (s *JSONStorage) load() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrStoreUnavailable, s.path)
	}
	s.mode = info.Mode().Perm()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		return fmt.Errorf("%w: invalid document: %v", ErrStoreUnavailable, err)
	}
	// a literal null decodes without error but is not a collection
	if users == nil && bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return fmt.Errorf("%w: invalid document: null", ErrStoreUnavailable)
	}
	if users == nil {
		users = []User{}
	}
	s.users = users
	return nil
}

// Close does nothing for the JSON storage, every write is already on disk.
func (*JSONStorage) Close() {}

// Path returns the location of the backing document.
func (s *JSONStorage) Path() string {
	return s.path
}

// UserByCredentials returns the first user, in collection order, whose id and
// password are exactly the ones provided. It returns ErrNotFound if there is
// no such user.
func (s *JSONStorage) UserByCredentials(id, password string) (*User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, u := range s.users {
		if u.ID == id && u.Password == password {
			user := u
			return &user, nil
		}
	}
	return nil, ErrNotFound
}

// UserExists reports whether some user has exactly the id provided.
func (s *JSONStorage) UserExists(id string) (bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.exists(id), nil
}

// Users returns a copy of the collection in insertion order.
func (s *JSONStorage) Users() ([]User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	users := make([]User, len(s.users))
	copy(users, s.users)
	return users, nil
}

// AddUser appends the user to the collection and persists it. The caller must
// have checked that the id is not taken, it is not checked again here. If the
// write fails the user stays in memory and an error wrapping
// ErrPersistFailure is returned.
func (s *JSONStorage) AddUser(user *User) error {
	if user == nil {
		return fmt.Errorf("nil user")
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.insert(*user)
}

// RegisterUser checks that the id is free and appends the user, both under
// the same write lock. It returns ErrUserExists, leaving the collection
// untouched, if the id is already registered.
func (s *JSONStorage) RegisterUser(user *User) error {
	if user == nil {
		return fmt.Errorf("nil user")
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.exists(user.ID) {
		return ErrUserExists
	}
	return s.insert(*user)
}

// exists must be called with the mutex held.
func (s *JSONStorage) exists(id string) bool {
	for _, u := range s.users {
		if u.ID == id {
			return true
		}
	}
	return false
}

// insert must be called with the write lock held.
func (s *JSONStorage) insert(user User) error {
	s.users = append(s.users, user)
	if err := s.persist(); err != nil {
		log.Warnw("could not persist user store", "path", s.path, "error", err)
		return fmt.Errorf("%w: %v", ErrPersistFailure, err)
	}
	log.Debugw("user stored", "id", user.ID, "users", len(s.users))
	return nil
}

// persist replaces the backing document with the current collection. The
// data is written and synced to a temporary file in the same directory which
// is then renamed over the document, so readers never see a partial write. It
// must be called with the write lock held.
func (s *JSONStorage) persist() error {
	data, err := EncodeUsers(s.users)
	if err != nil {
		return err
	}
	fd, err := atomicfile.New(s.path, s.mode)
	if err != nil {
		return err
	}
	if _, err := fd.Write(data); err != nil {
		_ = fd.Abort()
		return err
	}
	if err := fd.Sync(); err != nil {
		_ = fd.Abort()
		return err
	}
	// Close renames the temporary file over the document
	if err := fd.Close(); err != nil {
		_ = os.Remove(fd.Name())
		return err
	}
	return nil
}

// EncodeUsers serializes the users as the backing document expects them: a
// JSON array indented with two spaces, without HTML escaping and without a
// trailing newline. A nil slice is encoded as an empty array.
func EncodeUsers(users []User) ([]byte, error) {
	if users == nil {
		users = []User{}
	}
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(users); err != nil {
		return nil, fmt.Errorf("failed to encode users: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// ReadUsersFile decodes a backing document without keeping it open, used to
// seed other storages from it.
func ReadUsersFile(path string) ([]User, error) {
	s := &JSONStorage{path: filepath.Clean(path), mode: defaultFileMode}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s.users, nil
}
