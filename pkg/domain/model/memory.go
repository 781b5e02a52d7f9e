package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// EmbeddingDimension is the fixed dimensionality of memory embeddings
const EmbeddingDimension = 768

// MemoryID is a UUID-based identifier for Memory
type MemoryID string

// NewMemoryID generates a new UUID v4 MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

// MemoryIDFromText derives a deterministic MemoryID from memory text.
// Fallback identity for records stored without an explicit ID. On the
// rare hash collision the later record wins.
func MemoryIDFromText(text string) MemoryID {
	sum := sha256.Sum256([]byte(text))
	return MemoryID(hex.EncodeToString(sum[:16]))
}

// Memory is a durable long-term memory record: a natural-language fact
// extracted from user input. Records are global and shared across all
// threads; identity survives re-formatting of the same semantic memory.
type Memory struct {
	ID        MemoryID
	Text      string    // The formatted fact to remember
	Embedding []float32 // Vector embedding for similarity search
	CreatedAt time.Time
}

// ScoredMemory is a Memory together with its similarity to a query
type ScoredMemory struct {
	Memory *Memory
	Score  float64
}
