package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/rbac"
)

// LoadNotes lists the investigation notes of rec, oldest first. Results of
// a load whose ctx ended meanwhile are discarded.
func (w *Workspace) LoadNotes(ctx context.Context, rec credit.Record) ([]credit.Note, error) {
	if w.deps.Notes == nil {
		return nil, nil
	}
	combo := rec.Combo()
	if combo == "" {
		return nil, credit.ErrNoIdentity
	}
	notes, err := w.deps.Notes.ListByCombo(ctx, combo)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("load notes %s: %w", combo, err)
	}
	return notes, nil
}

// AddNote appends an investigation note to rec.
func (w *Workspace) AddNote(ctx context.Context, rec credit.Record, text string) (credit.Note, error) {
	if err := w.require(rbac.ActionWriteNote); err != nil {
		return credit.Note{}, err
	}
	if w.deps.Notes == nil {
		return credit.Note{}, fmt.Errorf("add note: no note store configured")
	}
	n := credit.Note{
		ComboKey:  rec.Combo(),
		Author:    w.settings.Email,
		Text:      strings.TrimSpace(text),
		CreatedAt: w.Now(),
	}
	if n.Text == "" {
		return credit.Note{}, ErrEmptyNote
	}
	if !n.Valid() {
		return credit.Note{}, credit.ErrNoIdentity
	}
	saved, err := w.deps.Notes.Add(ctx, n)
	if err != nil {
		return credit.Note{}, w.failWrite(ctx, "add note", err, "combo", n.ComboKey)
	}
	return saved, nil
}
