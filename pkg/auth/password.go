package auth

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
)

// passwordAlphabet is the character set for generated tenant secrets.
const passwordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// DefaultPasswordLength is the length of generated tenant secrets.
const DefaultPasswordLength = 15

// GeneratePassword returns a random alphanumeric secret of the given
// length, used when an admin provisions a new tenant.
func GeneratePassword(length int) string {
	if length <= 0 {
		length = DefaultPasswordLength
	}

	max := big.NewInt(int64(len(passwordAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failure means the process is in a bad state;
			// there is no sensible fallback for secret generation.
			panic(err)
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out)
}

// EncodeCredential encodes a user:secret pair the way a Basic
// Authorization header expects it.
func EncodeCredential(pair string) string {
	return base64.StdEncoding.EncodeToString([]byte(pair))
}
