// Package db holds the user records of the service and the storages that
// keep them.
package db

// Storage is the contract shared by every user storage. Lookups that find
// nothing return ErrNotFound or false, never a failure.
type Storage interface {
	Close()
	// user lookups
	UserByCredentials(id, password string) (*User, error)
	UserExists(id string) (bool, error)
	Users() ([]User, error)
	// user mutations
	AddUser(user *User) error
	RegisterUser(user *User) error
}
