package db

// User is a registered account as stored in the backing document. The
// password is kept and compared in plaintext.
type User struct {
	ID       string `json:"id" bson:"id"`
	Password string `json:"password" bson:"password"`
}
