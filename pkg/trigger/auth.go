package trigger

import (
	"crypto/hmac"
	"crypto/sha256"
)

// secretMatches compares a presented secret with the configured one in
// constant time. Both sides are hashed first so the comparison does not
// leak the secret's length.
func secretMatches(presented, secret string) bool {
	if presented == "" || secret == "" {
		return false
	}
	got := sha256.Sum256([]byte(presented))
	want := sha256.Sum256([]byte(secret))
	return hmac.Equal(got[:], want[:])
}
