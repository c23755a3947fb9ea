package agents

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	// KeyPrefix marks every issued API key.
	KeyPrefix = "tindai_"
	keyBody   = 40
	// lookupLen characters after KeyPrefix are stored in clear for lookup.
	lookupLen = 12
	alphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// GenerateKey returns a fresh "tindai_" + 40 alphanumeric key.
func GenerateKey() (string, error) {
	var b strings.Builder
	b.Grow(len(KeyPrefix) + keyBody)
	b.WriteString(KeyPrefix)
	size := big.NewInt(int64(len(alphabet)))
	for i := 0; i < keyBody; i++ {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}

// LookupPrefix extracts the stored lookup prefix, or "" for malformed keys.
func LookupPrefix(key string) string {
	if !strings.HasPrefix(key, KeyPrefix) || len(key) != len(KeyPrefix)+keyBody {
		return ""
	}
	return key[len(KeyPrefix) : len(KeyPrefix)+lookupLen]
}
