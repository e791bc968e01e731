package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
)

// CreditStore keeps credit requests in one collection keyed by record id.
type CreditStore struct {
	client *firestore.Client
	coll   *firestore.CollectionRef
}

func NewCreditStore(client *firestore.Client, collection string) *CreditStore {
	return &CreditStore{client: client, coll: client.Collection(collection)}
}

func decodeCredits(docs []*firestore.DocumentSnapshot) []credit.Record {
	out := make([]credit.Record, 0, len(docs))
	for _, d := range docs {
		out = append(out, credit.FromMap(d.Ref.ID, d.Data()))
	}
	return out
}

func (s *CreditStore) List(ctx context.Context) ([]credit.Record, error) {
	docs, err := byID(s.coll).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list credit requests: %w", err)
	}
	return decodeCredits(docs), nil
}

// Insert writes rec under its id, or under a new document id when it has none.
func (s *CreditStore) Insert(ctx context.Context, rec credit.Record) (string, error) {
	ref := s.coll.NewDoc()
	if rec.ID != "" {
		ref = s.coll.Doc(rec.ID)
	}
	if _, err := ref.Create(ctx, rec.ToMap()); err != nil {
		return "", fmt.Errorf("insert credit request: %w", err)
	}
	return ref.ID, nil
}

// Update merges fields into the document with id inside a transaction so
// the combo key follows invoice and item.
func (s *CreditStore) Update(ctx context.Context, id string, fields map[string]string) error {
	if id == "" {
		return errNoKey
	}
	ref := s.coll.Doc(id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		rec := credit.FromMap(id, snap.Data())
		for name, v := range fields {
			if name == credit.FieldID {
				continue
			}
			if !rec.Set(name, v) {
				return fmt.Errorf("unknown field %q", name)
			}
		}
		return tx.Set(ref, rec.ToMap(), firestore.MergeAll)
	})
	if err != nil {
		return fmt.Errorf("update credit request %s: %w", id, notFound(err))
	}
	return nil
}

func (s *CreditStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errNoKey
	}
	if _, err := s.coll.Doc(id).Delete(ctx, firestore.Exists); err != nil {
		return fmt.Errorf("delete credit request %s: %w", id, notFound(err))
	}
	return nil
}

// Watch delivers the full collection on every change until ctx is done.
func (s *CreditStore) Watch(ctx context.Context, fn func([]credit.Record)) error {
	return listen(ctx, byID(s.coll), func(docs []*firestore.DocumentSnapshot) {
		fn(decodeCredits(docs))
	})
}
