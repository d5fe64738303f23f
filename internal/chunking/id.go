package chunking

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// idHashLen is the number of hex characters of the content hash kept in a chunk ID.
const idHashLen = 10

// ContentHash returns the hex-encoded SHA-256 of text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ChunkID builds the stable identifier {source}_{page}_{hash10}.
// Page 0 means the page is unknown and is left out: {source}_{hash10}.
func ChunkID(sourceID string, page int, hash string) string {
	short := hash
	if len(short) > idHashLen {
		short = short[:idHashLen]
	}
	if page <= 0 {
		return fmt.Sprintf("%s_%s", sourceID, short)
	}
	return fmt.Sprintf("%s_%d_%s", sourceID, page, short)
}
