package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
)

// NoteRepo handles investigation_notes.
type NoteRepo struct{ db *sql.DB }

func NewNoteRepo(db *sql.DB) *NoteRepo { return &NoteRepo{db: db} }

// Add appends a note, filling its id and timestamp when unset.
func (r *NoteRepo) Add(ctx context.Context, n credit.Note) (credit.Note, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO investigation_notes(id, combo_key, author, body, created_at)
	VALUES(?, ?, ?, ?, ?)`, n.ID, n.ComboKey, n.Author, n.Text, n.CreatedAt)
	if err != nil {
		return credit.Note{}, err
	}
	return n, nil
}

// ListByCombo returns the notes of comboKey, oldest first.
func (r *NoteRepo) ListByCombo(ctx context.Context, comboKey string) ([]credit.Note, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, combo_key, author, body, created_at FROM investigation_notes WHERE combo_key = ? ORDER BY created_at, id`, comboKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []credit.Note
	for rows.Next() {
		var n credit.Note
		if err := rows.Scan(&n.ID, &n.ComboKey, &n.Author, &n.Text, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
