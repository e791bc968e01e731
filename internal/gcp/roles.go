package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
)

// RoleStore reads user_roles documents. Writes happen elsewhere.
type RoleStore struct {
	coll *firestore.CollectionRef
}

func NewRoleStore(client *firestore.Client, collection string) *RoleStore {
	return &RoleStore{coll: client.Collection(collection)}
}

// Lookup returns the role document with id idOrEmail, else the first
// document whose email field matches.
func (s *RoleStore) Lookup(ctx context.Context, idOrEmail string) (map[string]any, error) {
	if idOrEmail == "" {
		return nil, credit.ErrNotFound
	}
	snap, err := s.coll.Doc(idOrEmail).Get(ctx)
	if err == nil {
		return snap.Data(), nil
	}
	if notFound(err) != credit.ErrNotFound {
		return nil, fmt.Errorf("lookup role: %w", err)
	}

	it := s.coll.Where("email", "==", idOrEmail).Limit(1).Documents(ctx)
	defer it.Stop()
	doc, err := it.Next()
	if err == iterator.Done {
		return nil, credit.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup role by email: %w", err)
	}
	return doc.Data(), nil
}
