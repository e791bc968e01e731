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

// DeleteRecords deletes the records behind the given display row keys of
// the current view. A row without an id deletes every stored row that
// shares its combo key. Deleted rows leave the local list immediately.
func (w *Workspace) DeleteRecords(ctx context.Context, rowKeys []string) (int, error) {
	if err := w.require(rbac.ActionDelete); err != nil {
		return 0, err
	}
	view := w.View()
	byKey := make(map[string]credit.Record, len(view))
	for i, r := range view {
		byKey[credit.RowKey(r, i)] = r
	}

	var stored []credit.Record
	ids := map[string]struct{}{}
	for _, key := range rowKeys {
		rec, ok := byKey[key]
		if !ok {
			continue
		}
		if id := strings.TrimSpace(rec.ID); id != "" {
			ids[id] = struct{}{}
			continue
		}
		combo := rec.Combo()
		if combo == "" {
			continue
		}
		if stored == nil {
			var err error
			if stored, err = w.deps.Credits.List(ctx); err != nil {
				return 0, fmt.Errorf("list credit requests: %w", err)
			}
		}
		for _, s := range stored {
			if s.ID != "" && s.Combo() == combo {
				ids[s.ID] = struct{}{}
			}
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	w.updateRecords(func(recs []credit.Record) []credit.Record {
		out := recs[:0:0]
		for _, r := range recs {
			if _, gone := ids[r.ID]; !gone {
				out = append(out, r)
			}
		}
		return out
	})
	w.Dispatch(ctx, appstate.ClearSelection{})

	var errs []error
	deleted := 0
	for id := range ids {
		if err := w.deps.Credits.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			continue
		}
		deleted++
	}
	if err := errors.Join(errs...); err != nil {
		return deleted, w.failWrite(ctx, "delete records", err)
	}
	w.Dispatch(ctx, appstate.SetMessage{Message: fmt.Sprintf("Deleted %d record(s).", deleted)})
	return deleted, nil
}

// DeleteSelected deletes every selected row.
func (w *Workspace) DeleteSelected(ctx context.Context) (int, error) {
	return w.DeleteRecords(ctx, appstate.Keys(w.State().Selected))
}

// AddRecord inserts a new credit request and returns its id.
func (w *Workspace) AddRecord(ctx context.Context, rec credit.Record) (string, error) {
	if err := w.require(rbac.ActionEdit); err != nil {
		return "", err
	}
	rec = rec.WithoutReminder()
	rec.ComboKey = rec.Combo()
	if _, err := rec.Identity(); err != nil {
		return "", err
	}
	id, err := w.deps.Credits.Insert(ctx, rec)
	if err != nil {
		return "", w.failWrite(ctx, "add record", err, "combo", rec.ComboKey)
	}
	rec.ID = id
	w.updateRecords(func(recs []credit.Record) []credit.Record {
		return append(recs, rec)
	})
	return id, nil
}

func (w *Workspace) updateRecords(fn func([]credit.Record) []credit.Record) {
	w.mu.Lock()
	w.records = w.rems.Attach(fn(append([]credit.Record(nil), w.records...)))
	w.mu.Unlock()
	w.changed()
}
