// Package gcp implements the record, reminder, note and role stores on
// Cloud Firestore, with realtime snapshot listeners.
package gcp

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// notFound maps Firestore NotFound errors to credit.ErrNotFound.
func notFound(err error) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return credit.ErrNotFound
	}
	return err
}

// listen streams full snapshots of q to fn until ctx is done. Snapshots are
// delivered in document id order, one at a time.
func listen(ctx context.Context, q firestore.Query, fn func([]*firestore.DocumentSnapshot)) error {
	it := q.Snapshots(ctx)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if status.Code(err) == codes.Canceled {
				return context.Canceled
			}
			return fmt.Errorf("snapshot listener: %w", err)
		}
		docs, err := snap.Documents.GetAll()
		if err != nil {
			return fmt.Errorf("read snapshot: %w", err)
		}
		sort.SliceStable(docs, func(i, j int) bool { return docs[i].Ref.ID < docs[j].Ref.ID })
		fn(docs)
	}
}

func byID(coll *firestore.CollectionRef) firestore.Query {
	return coll.OrderBy(firestore.DocumentID, firestore.Asc)
}

var errNoKey = errors.New("gcp: document key is empty")
