package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/appstate"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/rbac"
)

// maxConcurrentWrites bounds outbound store writes of one push.
const maxConcurrentWrites = 8

// EditableField reports whether a record field may be staged for edit.
// Identity fields and the status timeline are not editable in place.
func EditableField(name string) bool {
	if slices.Contains(credit.BusinessFields, name) {
		return true
	}
	return name == credit.FieldDate || name == credit.FieldReason
}

// StageEdit stages one field of one display row.
func (w *Workspace) StageEdit(ctx context.Context, rowKey, field, value string) error {
	if err := w.require(rbac.ActionEdit); err != nil {
		return err
	}
	if !EditableField(field) {
		return fmt.Errorf("%s: %w", field, ErrReadOnlyField)
	}
	w.Dispatch(ctx, appstate.SetFieldEdit{RowKey: rowKey, Field: field, Value: value})
	return nil
}

// PushResult counts the outcome of a push.
type PushResult struct {
	Updated  int
	Inserted int
	Failed   int
	Skipped  int
}

type editTarget struct {
	rowKey string
	fields map[string]string
	rec    credit.Record
	found  bool
}

// PushEdits writes every staged edit. Row keys are resolved against the
// current sorted view. Local records are updated before the store writes
// and are not rolled back when a write fails; the failure stays visible
// on the row's write intent.
func (w *Workspace) PushEdits(ctx context.Context) (PushResult, error) {
	if err := w.require(rbac.ActionPush); err != nil {
		return PushResult{}, err
	}

	// snapshot and PushStarted share one critical section so a field
	// staged concurrently either joins this push or stays staged
	w.mu.Lock()
	staged := w.state.PendingEdits
	if len(staged) == 0 {
		w.mu.Unlock()
		return PushResult{}, ErrNoPendingEdits
	}
	view := w.viewLocked()
	byKey := make(map[string]credit.Record, len(view))
	for i, r := range view {
		byKey[credit.RowKey(r, i)] = r
	}
	targets := make([]editTarget, 0, len(staged))
	keys := slices.Sorted(maps.Keys(staged))
	for _, key := range keys {
		rec, ok := byKey[key]
		targets = append(targets, editTarget{rowKey: key, fields: staged[key], rec: rec, found: ok})
	}
	w.state = appstate.Reduce(w.state, appstate.PushStarted{RowKeys: keys})
	w.mu.Unlock()
	w.changed()

	var res PushResult
	for _, t := range targets {
		if t.found {
			w.applyLocal(t.rec, t.fields)
		}
	}

	type outcome struct {
		inserted bool
		err      error
	}
	outcomes := make([]outcome, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentWrites)
	for i, t := range targets {
		if !t.found {
			outcomes[i].err = fmt.Errorf("row %s is no longer in view", t.rowKey)
			continue
		}
		g.Go(func() error {
			inserted, err := w.writeEdit(gctx, t.rec, t.fields)
			outcomes[i] = outcome{inserted: inserted, err: err}
			// a failed row never cancels its siblings
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for i, t := range targets {
		o := outcomes[i]
		if o.err != nil {
			if !t.found {
				res.Skipped++
			} else {
				res.Failed++
			}
			w.logger.Error("push edit failed", "row", t.rowKey, "err", o.err)
			w.Dispatch(ctx, appstate.WriteFailed{RowKey: t.rowKey, Err: o.err.Error()})
			errs = append(errs, fmt.Errorf("row %s: %w", t.rowKey, o.err))
			continue
		}
		if o.inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
		w.Dispatch(ctx, appstate.WriteConfirmed{RowKey: t.rowKey})
	}
	if len(errs) == 0 {
		w.Dispatch(ctx, appstate.SetMessage{Message: fmt.Sprintf("Pushed %d update(s), %d insert(s).", res.Updated, res.Inserted)})
		w.Dispatch(ctx, appstate.PushFinished{})
	}
	return res, errors.Join(errs...)
}

// RetryFailed moves failed write intents back into staged edits.
func (w *Workspace) RetryFailed(ctx context.Context) {
	w.Dispatch(ctx, appstate.RetryFailed{})
}

// DiscardEdits drops staged edits and leaves edit mode.
func (w *Workspace) DiscardEdits(ctx context.Context) {
	w.Dispatch(ctx, appstate.ClearPendingEdits{})
}

func (w *Workspace) applyLocal(target credit.Record, fields map[string]string) {
	w.updateLocal(func(r credit.Record) bool { return credit.SameRecord(r, target) }, func(r *credit.Record) {
		for f, v := range fields {
			r.Set(f, v)
		}
	})
}

// writeEdit updates by id. Without an id every stored row sharing the combo
// key is updated, and a new record is inserted when none exists.
func (w *Workspace) writeEdit(ctx context.Context, rec credit.Record, fields map[string]string) (bool, error) {
	if id := strings.TrimSpace(rec.ID); id != "" {
		return false, w.deps.Credits.Update(ctx, id, fields)
	}
	combo := rec.Combo()
	if combo == "" {
		return false, credit.ErrNoIdentity
	}
	stored, err := w.deps.Credits.List(ctx)
	if err != nil {
		return false, fmt.Errorf("list credit requests: %w", err)
	}
	var ids []string
	for _, s := range stored {
		if s.ID != "" && s.Combo() == combo {
			ids = append(ids, s.ID)
		}
	}
	if len(ids) == 0 {
		next := rec.WithoutReminder()
		for f, v := range fields {
			next.Set(f, v)
		}
		next.ComboKey = next.Combo()
		if _, err := w.deps.Credits.Insert(ctx, next); err != nil {
			return false, fmt.Errorf("insert %s: %w", combo, err)
		}
		return true, nil
	}
	for _, id := range ids {
		if err := w.deps.Credits.Update(ctx, id, fields); err != nil {
			return false, fmt.Errorf("update %s: %w", id, err)
		}
	}
	return false, nil
}
