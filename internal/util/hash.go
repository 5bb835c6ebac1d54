package util

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// HashFileContent computes the SHA-256 hash of a file's content.
// The pipeline's change ledger keys on this hash: identical bytes
// hash identically regardless of mtime churn.
func HashFileContent(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// HashText computes the SHA-256 hash of a string
func HashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", h)
}
