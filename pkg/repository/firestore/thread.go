package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/himeno-lab/kotori/pkg/domain/interfaces"
	"github.com/himeno-lab/kotori/pkg/domain/model"
	"github.com/himeno-lab/kotori/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// threadDoc is the Firestore document representation of a thread state.
// The whole document is replaced on every Put so the message list and
// summary never get out of sync.
type threadDoc struct {
	ThreadID        string       `firestore:"ThreadID"`
	Messages        []messageDoc `firestore:"Messages"`
	Summary         string       `firestore:"Summary"`
	Workflow        string       `firestore:"Workflow"`
	CurrentActivity string       `firestore:"CurrentActivity"`
	ApplyActivity   bool         `firestore:"ApplyActivity"`
	UpdatedAt       time.Time    `firestore:"UpdatedAt"`
}

type messageDoc struct {
	Role    string `firestore:"Role"`
	Content string `firestore:"Content"`
}

func toThreadDoc(s *model.ThreadState) *threadDoc {
	doc := &threadDoc{
		ThreadID:        string(s.ThreadID),
		Messages:        make([]messageDoc, len(s.Messages)),
		Summary:         s.Summary,
		Workflow:        string(s.Workflow),
		CurrentActivity: s.CurrentActivity,
		ApplyActivity:   s.ApplyActivity,
		UpdatedAt:       s.UpdatedAt,
	}
	for i, m := range s.Messages {
		doc.Messages[i] = messageDoc{Role: string(m.Role), Content: m.Content}
	}
	return doc
}

func fromThreadDoc(d *threadDoc) *model.ThreadState {
	s := &model.ThreadState{
		ThreadID:        types.ThreadID(d.ThreadID),
		Messages:        make([]model.Message, len(d.Messages)),
		Summary:         d.Summary,
		Workflow:        types.Workflow(d.Workflow),
		CurrentActivity: d.CurrentActivity,
		ApplyActivity:   d.ApplyActivity,
		UpdatedAt:       d.UpdatedAt,
	}
	for i, m := range d.Messages {
		s.Messages[i] = model.Message{Role: types.Role(m.Role), Content: m.Content}
	}
	return s
}

// ThreadRepository persists thread state as one document per thread
type ThreadRepository struct {
	client *firestore.Client
}

var _ interfaces.ThreadRepository = &ThreadRepository{}

func (r *ThreadRepository) docRef(threadID types.ThreadID) *firestore.DocumentRef {
	return r.client.Collection(threadCollection).Doc(string(threadID))
}

func (r *ThreadRepository) Get(ctx context.Context, threadID types.ThreadID) (*model.ThreadState, error) {
	if err := threadID.Validate(); err != nil {
		return nil, err
	}

	doc, err := r.docRef(threadID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return model.NewThreadState(threadID), nil
		}
		return nil, goerr.Wrap(err, "failed to get thread state", goerr.V("threadID", threadID))
	}

	var d threadDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal thread state", goerr.V("threadID", threadID))
	}

	return fromThreadDoc(&d), nil
}

func (r *ThreadRepository) Put(ctx context.Context, state *model.ThreadState) error {
	if err := state.ThreadID.Validate(); err != nil {
		return err
	}

	doc := toThreadDoc(state)
	doc.UpdatedAt = time.Now().UTC()

	if _, err := r.docRef(state.ThreadID).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to put thread state", goerr.V("threadID", state.ThreadID))
	}
	return nil
}

func (r *ThreadRepository) Close() error {
	return nil
}
