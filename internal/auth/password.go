package auth

import "golang.org/x/crypto/bcrypt"

// HashSecret hashes a gateway client secret with the given bcrypt cost.
func HashSecret(secret string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifySecret checks a presented secret against the configured hash.
// An empty hash never matches.
func VerifySecret(hashed, presented string) bool {
	if hashed == "" || presented == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(presented)) == nil
}
