package services

import (
	"crypto/sha256"
	"encoding/hex"
)

// TextHash returns the stable digest used as the dedup key for message
// logs and training examples. The same text always yields the same hash;
// no normalization is applied, so "/greet" and "greet" hash differently.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
