package api

import "golang.org/x/crypto/bcrypt"

// minPasswordLen is the minimum length accepted for any new password.
const minPasswordLen = 6

func hashPassword(plaintext string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
}

func checkPassword(hash []byte, plaintext string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plaintext)) == nil
}
