package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/interfaces"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
	"google.golang.org/api/iterator"
)

const (
	// Collection names
	collectionPrompts    = "prompts"
	collectionVersions   = "versions"
	collectionExecutions = "executions"
	collectionFeedback   = "feedback"
	collectionTestCases  = "test_cases"
	collectionTestRuns   = "test_runs"
	collectionMemories   = "memories"
)

// Client is a Firestore implementation of interfaces.Repository
type Client struct {
	client     *firestore.Client
	projectID  string
	databaseID string
}

var _ interfaces.Repository = (*Client)(nil)

// New creates a new Firestore client using Application Default Credentials
func New(ctx context.Context, projectID, databaseID string) (*Client, error) {
	if projectID == "" {
		return nil, goerr.New("project ID is required")
	}
	if databaseID == "" {
		databaseID = "(default)"
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.T(apperr.ErrTagFirestore),
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID))
	}

	return &Client{
		client:     client,
		projectID:  projectID,
		databaseID: databaseID,
	}, nil
}

// Close closes the Firestore client
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// decodeAll drains iter into a slice of T
func decodeAll[T any](iter *firestore.DocumentIterator, collection string) ([]*T, error) {
	defer iter.Stop()

	var result []*T
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate documents",
				goerr.T(apperr.ErrTagFirestore), goerr.TV(apperr.CollectionKey, collection))
		}

		var v T
		if err := doc.DataTo(&v); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal document",
				goerr.T(apperr.ErrTagFirestore),
				goerr.TV(apperr.CollectionKey, collection),
				goerr.TV(apperr.DocumentIDKey, doc.Ref.ID))
		}
		result = append(result, &v)
	}
	return result, nil
}

// decodeSnapshots converts snapshots read inside a transaction
func decodeSnapshots[T any](docs []*firestore.DocumentSnapshot, collection string) ([]*T, error) {
	result := make([]*T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := doc.DataTo(&v); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal document",
				goerr.T(apperr.ErrTagFirestore),
				goerr.TV(apperr.CollectionKey, collection),
				goerr.TV(apperr.DocumentIDKey, doc.Ref.ID))
		}
		result = append(result, &v)
	}
	return result, nil
}
