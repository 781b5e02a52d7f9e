package config

import (
	"context"

	"github.com/himeno-lab/kotori/pkg/domain/interfaces"
	"github.com/himeno-lab/kotori/pkg/repository/chromem"
	"github.com/himeno-lab/kotori/pkg/repository/firestore"
	"github.com/himeno-lab/kotori/pkg/repository/memory"
	"github.com/himeno-lab/kotori/pkg/repository/sqlite"
	"github.com/himeno-lab/kotori/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// Repository holds CLI flags for the thread state and memory index
// backends. The two backends are configured independently: thread state
// can live in SQLite while memories live in chromem, or both can share
// one Firestore database.
type Repository struct {
	threadBackend string
	memoryBackend string
	projectID     string
	databaseID    string
	sqlitePath    string
	chromemPath   string

	firestoreClient *firestore.Client
}

// Flags returns CLI flags for repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "thread-backend",
			Usage:       "Thread state backend (firestore, sqlite or memory)",
			Value:       "memory",
			Sources:     cli.EnvVars("KOTORI_THREAD_BACKEND"),
			Destination: &r.threadBackend,
		},
		&cli.StringFlag{
			Name:        "memory-backend",
			Usage:       "Long-term memory backend (firestore, chromem or memory)",
			Value:       "memory",
			Sources:     cli.EnvVars("KOTORI_MEMORY_BACKEND"),
			Destination: &r.memoryBackend,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required when using firestore backend)",
			Sources:     cli.EnvVars("KOTORI_FIRESTORE_PROJECT_ID"),
			Destination: &r.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Sources:     cli.EnvVars("KOTORI_FIRESTORE_DATABASE_ID"),
			Destination: &r.databaseID,
		},
		&cli.StringFlag{
			Name:        "sqlite-path",
			Usage:       "SQLite database path for thread state",
			Value:       "kotori.db",
			Sources:     cli.EnvVars("KOTORI_SQLITE_PATH"),
			Destination: &r.sqlitePath,
		},
		&cli.StringFlag{
			Name:        "chromem-path",
			Usage:       "chromem persistence directory (empty for in-process only)",
			Sources:     cli.EnvVars("KOTORI_CHROMEM_PATH"),
			Destination: &r.chromemPath,
		},
	}
}

// ProjectID returns the Firestore project ID
func (r *Repository) ProjectID() string {
	return r.projectID
}

// DatabaseID returns the Firestore database ID
func (r *Repository) DatabaseID() string {
	return r.databaseID
}

// ConfigureThreads initializes the thread state repository. The caller
// is responsible for calling Close() on the returned repository.
func (r *Repository) ConfigureThreads(ctx context.Context) (interfaces.ThreadRepository, error) {
	switch r.threadBackend {
	case "firestore":
		client, err := r.firestore(ctx)
		if err != nil {
			return nil, err
		}
		logging.Default().Info("Using Firestore thread repository",
			"project_id", r.projectID,
			"database_id", r.databaseID,
		)
		return client.Thread(), nil

	case "sqlite":
		repo, err := sqlite.New(r.sqlitePath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open sqlite thread repository")
		}
		logging.Default().Info("Using SQLite thread repository", "path", r.sqlitePath)
		return repo, nil

	case "memory":
		logging.Default().Info("Using in-memory thread repository (development mode)")
		return memory.New(), nil

	default:
		return nil, goerr.Wrap(ErrInvalidBackend, "unsupported thread backend", goerr.V("backend", r.threadBackend))
	}
}

// ConfigureMemoryIndex initializes the long-term memory vector index
func (r *Repository) ConfigureMemoryIndex(ctx context.Context) (interfaces.MemoryIndex, error) {
	switch r.memoryBackend {
	case "firestore":
		client, err := r.firestore(ctx)
		if err != nil {
			return nil, err
		}
		logging.Default().Info("Using Firestore memory index",
			"project_id", r.projectID,
			"database_id", r.databaseID,
		)
		return client.Memory(), nil

	case "chromem":
		if r.chromemPath != "" {
			idx, err := chromem.NewPersistent(r.chromemPath)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to open chromem memory index")
			}
			logging.Default().Info("Using persistent chromem memory index", "path", r.chromemPath)
			return idx, nil
		}
		logging.Default().Info("Using in-process chromem memory index")
		return chromem.New(), nil

	case "memory":
		logging.Default().Info("Using in-memory memory index (development mode)")
		return memory.NewIndex(), nil

	default:
		return nil, goerr.Wrap(ErrInvalidBackend, "unsupported memory backend", goerr.V("backend", r.memoryBackend))
	}
}

// firestore returns a shared Firestore client so the thread repository
// and memory index reuse one connection.
func (r *Repository) firestore(ctx context.Context) (*firestore.Client, error) {
	if r.firestoreClient != nil {
		return r.firestoreClient, nil
	}
	if r.projectID == "" {
		return nil, goerr.Wrap(ErrMissingProjectID, "firestore-project-id is required when using firestore backend")
	}
	client, err := firestore.New(ctx, r.projectID, r.databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize firestore client")
	}
	r.firestoreClient = client
	return client, nil
}
