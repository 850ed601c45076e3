package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/policykeeper/policykeeper/internal/models"
)

// HashPassword hashes a plaintext password for storage on a user record
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a stored hash
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// VerifyAdmin checks a username/password pair against the stored
// settings record, falling back to the configured bootstrap pair when
// no settings record has been written yet.
func VerifyAdmin(settings models.Settings, fallbackUser, fallbackPass, username, password string) bool {
	validUser := settings.AdminUser
	if validUser == "" {
		validUser = fallbackUser
	}
	validPass := settings.AdminPass
	if validPass == "" {
		validPass = fallbackPass
	}
	return username == validUser && password == validPass
}
