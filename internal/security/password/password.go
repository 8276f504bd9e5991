// Package password concentra el hashing/verificación de passwords y secrets
// de clients (bcrypt).
package password

import "golang.org/x/crypto/bcrypt"

// DefaultCost es el cost de bcrypt usado al crear hashes.
const DefaultCost = 12

// Hash genera un hash bcrypt del password.
func Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify compara un hash bcrypt con un password plano.
func Verify(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
