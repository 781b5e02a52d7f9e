package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
)

const (
	threadCollection = "threads"
	memoryCollection = "memories"
)

// Client wraps a Firestore connection shared by the thread and memory
// repositories.
type Client struct {
	client *firestore.Client
	thread *ThreadRepository
	memory *MemoryIndex
}

// New creates a Firestore-backed client. databaseID may be empty to use
// the default database.
func New(ctx context.Context, projectID, databaseID string) (*Client, error) {
	var client *firestore.Client
	var err error
	if databaseID == "" {
		client, err = firestore.NewClient(ctx, projectID)
	} else {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client", goerr.V("projectID", projectID))
	}

	c := &Client{client: client}
	c.thread = &ThreadRepository{client: client}
	c.memory = &MemoryIndex{client: client}
	return c, nil
}

// Thread returns the thread state repository
func (c *Client) Thread() *ThreadRepository {
	return c.thread
}

// Memory returns the memory vector index
func (c *Client) Memory() *MemoryIndex {
	return c.memory
}

// Close releases the underlying Firestore client
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
