package service

import (
	"context"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
)

// CreditStore is the credit_requests collection. Watch delivers full,
// ordered snapshots one at a time until ctx is done.
type CreditStore interface {
	List(ctx context.Context) ([]credit.Record, error)
	Insert(ctx context.Context, rec credit.Record) (string, error)
	Update(ctx context.Context, id string, fields map[string]string) error
	Delete(ctx context.Context, id string) error
	Watch(ctx context.Context, fn func([]credit.Record)) error
}

// ReminderStore is the reminders collection. Put writes the whole object.
// Snapshots are ordered by store key.
type ReminderStore interface {
	NewKey() string
	List(ctx context.Context) ([]credit.Reminder, error)
	Put(ctx context.Context, rem credit.Reminder) error
	Delete(ctx context.Context, key string) error
	Watch(ctx context.Context, fn func([]credit.Reminder)) error
}

// NoteStore is the investigation_notes collection.
type NoteStore interface {
	Add(ctx context.Context, n credit.Note) (credit.Note, error)
	ListByCombo(ctx context.Context, comboKey string) ([]credit.Note, error)
}

// RoleStore reads user_roles documents.
type RoleStore interface {
	Lookup(ctx context.Context, idOrEmail string) (map[string]any, error)
}
