package gcp

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
)

// NoteStore keeps investigation notes.
type NoteStore struct {
	coll *firestore.CollectionRef
}

func NewNoteStore(client *firestore.Client, collection string) *NoteStore {
	return &NoteStore{coll: client.Collection(collection)}
}

// Add appends a note, filling its id and timestamp when unset.
func (s *NoteStore) Add(ctx context.Context, n credit.Note) (credit.Note, error) {
	ref := s.coll.NewDoc()
	if n.ID != "" {
		ref = s.coll.Doc(n.ID)
	}
	n.ID = ref.ID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := ref.Create(ctx, map[string]any{
		"combo_key":  n.ComboKey,
		"author":     n.Author,
		"text":       n.Text,
		"created_at": n.CreatedAt,
	})
	if err != nil {
		return credit.Note{}, fmt.Errorf("add note: %w", err)
	}
	return n, nil
}

// ListByCombo returns the notes of comboKey, oldest first.
func (s *NoteStore) ListByCombo(ctx context.Context, comboKey string) ([]credit.Note, error) {
	it := s.coll.Where("combo_key", "==", comboKey).Documents(ctx)
	defer it.Stop()
	var out []credit.Note
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list notes: %w", err)
		}
		data := doc.Data()
		n := credit.Note{
			ID:       doc.Ref.ID,
			ComboKey: credit.Stringify(data["combo_key"]),
			Author:   credit.Stringify(data["author"]),
			Text:     credit.Stringify(data["text"]),
		}
		if ts, ok := data["created_at"].(time.Time); ok {
			n.CreatedAt = ts
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
