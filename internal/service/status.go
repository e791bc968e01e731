package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/appstate"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/rbac"
)

// AppendStatus appends a timestamped, author-tagged line to the status log
// of rec. With applyAll every record sharing rec's ticket number gets the
// line. It returns the number of records written.
func (w *Workspace) AppendStatus(ctx context.Context, rec credit.Record, note string, applyAll bool) (int, error) {
	if err := w.require(rbac.ActionAppendStatus); err != nil {
		return 0, err
	}
	if strings.TrimSpace(note) == "" {
		return 0, ErrEmptyNote
	}
	line := credit.FormatStatusLine(w.Now(), credit.AuthorTag(w.settings.Email, w.settings.Aliases), note)

	match := func(r credit.Record) bool { return credit.SameRecord(r, rec) }
	if ticket, ok := credit.StrictTicketKey(rec.TicketNumber); applyAll && ok {
		match = func(r credit.Record) bool {
			t, ok := credit.StrictTicketKey(r.TicketNumber)
			return ok && t == ticket
		}
	}

	var targets []credit.Record
	for _, r := range w.Records() {
		if match(r) {
			targets = append(targets, r)
		}
	}
	if len(targets) == 0 {
		return 0, fmt.Errorf("append status: %w", ErrNotFound)
	}

	next := make(map[string]string, len(targets))
	for _, r := range targets {
		id, _ := r.Identity()
		next[id] = credit.AppendStatusLine(r.Status, line)
	}
	w.updateLocal(match, func(r *credit.Record) {
		id, _ := r.Identity()
		if s, ok := next[id]; ok {
			r.Status = s
		}
	})
	w.changed()

	var errs []error
	for _, r := range targets {
		id, _ := r.Identity()
		if _, err := w.writeEdit(ctx, r, map[string]string{credit.FieldStatus: next[id]}); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return len(targets) - len(errs), w.failWrite(ctx, "append status", err, "ticket", rec.TicketNumber)
	}
	w.Dispatch(ctx, appstate.SetMessage{Message: fmt.Sprintf("Status updated on %d record(s).", len(targets))})
	return len(targets), nil
}
