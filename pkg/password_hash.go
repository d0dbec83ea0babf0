package pkg

import "golang.org/x/crypto/bcrypt"

const bcryptCost = 14

// HashPassword produces a bcrypt hash of the plain password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return BytesToString(hashed), nil
}

// CheckPasswordHash reports whether the plain password matches the stored hash.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
