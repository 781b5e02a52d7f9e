package memory

// New creates a new in-memory thread repository for development and tests
func New() *ThreadRepository {
	return newThreadRepository()
}

// NewIndex creates a new in-memory memory index for development and tests
func NewIndex() *MemoryIndex {
	return newMemoryIndex()
}
