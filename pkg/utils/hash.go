package utils

import (
	"crypto/sha256"
	"fmt"
)

// HashText returns a stable hex digest used as the cache key for embedding
// lookups.
func HashText(input string) string {
	sum := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%x", sum[:16])
}
