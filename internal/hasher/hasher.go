package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// HashBytes returns the SHA-256 hex digest of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashFile returns the SHA-256 hex digest of the file at path together with
// its size in bytes.
func HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// BlockID derives the stable block identifier: the first 16 hex chars of
// SHA-256 over the identity tuple. The same fragment re-ingested produces
// the same ID.
func BlockID(filePath string, startLine, endLine int, blockType string, chunkIndex int) string {
	key := fmt.Sprintf("%s|%d|%d|%s|%d", filePath, startLine, endLine, blockType, chunkIndex)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}
