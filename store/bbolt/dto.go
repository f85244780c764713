package bbolt

import "gatehouse/store"

// userRecord is the on-disk shape of a user. The password hash is excluded
// from store.User's JSON form, so it is carried in a separate field here.
type userRecord struct {
	store.User
	PasswordHash []byte `json:"password_hash"`
}
