package admin

import "golang.org/x/crypto/bcrypt"

// HashPassphrase creates a bcrypt hash of the given passphrase.
//
// Precondition: passphrase must be non-empty and at most 72 bytes.
// Postcondition: Returns a bcrypt hash string.
func HashPassphrase(passphrase string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassphrase compares a plaintext passphrase against a bcrypt hash.
//
// Postcondition: Returns true if passphrase matches the hash.
func CheckPassphrase(passphrase, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(passphrase)) == nil
}
