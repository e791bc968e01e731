package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
)

// ReminderStore keeps reminders keyed by their store key. Every write
// replaces the whole document.
type ReminderStore struct {
	coll *firestore.CollectionRef
}

func NewReminderStore(client *firestore.Client, collection string) *ReminderStore {
	return &ReminderStore{coll: client.Collection(collection)}
}

// NewKey reserves a document id without writing.
func (s *ReminderStore) NewKey() string { return s.coll.NewDoc().ID }

func decodeReminders(docs []*firestore.DocumentSnapshot) []credit.Reminder {
	out := make([]credit.Reminder, 0, len(docs))
	for _, d := range docs {
		out = append(out, credit.ReminderFromMap(d.Ref.ID, d.Data()))
	}
	return out
}

// List returns every reminder ordered by key.
func (s *ReminderStore) List(ctx context.Context) ([]credit.Reminder, error) {
	docs, err := byID(s.coll).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return decodeReminders(docs), nil
}

func (s *ReminderStore) Put(ctx context.Context, rem credit.Reminder) error {
	key := rem.StoreKey()
	if key == "" {
		return errNoKey
	}
	if _, err := s.coll.Doc(key).Set(ctx, rem.ToMap()); err != nil {
		return fmt.Errorf("write reminder %s: %w", key, err)
	}
	return nil
}

func (s *ReminderStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errNoKey
	}
	if _, err := s.coll.Doc(key).Delete(ctx, firestore.Exists); err != nil {
		return fmt.Errorf("delete reminder %s: %w", key, notFound(err))
	}
	return nil
}

// Watch delivers the full collection on every change until ctx is done.
func (s *ReminderStore) Watch(ctx context.Context, fn func([]credit.Reminder)) error {
	return listen(ctx, byID(s.coll), func(docs []*firestore.DocumentSnapshot) {
		fn(decodeReminders(docs))
	})
}
