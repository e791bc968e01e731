package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/appstate"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/rbac"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/roundtrip"
)

// PreviewCSV parses a round-trip file and validates it against the current
// records. Malformed lines are reported as issues, not errors.
func (w *Workspace) PreviewCSV(ctx context.Context, name string, r io.Reader) (roundtrip.Preview, error) {
	if err := w.require(rbac.ActionImportCSV); err != nil {
		return roundtrip.Preview{}, err
	}
	w.Dispatch(ctx, appstate.SetCsvFile{Name: name})

	rows, lineErrs, err := roundtrip.Parse(r)
	if err != nil {
		w.Dispatch(ctx, appstate.SetError{Err: err.Error()})
		return roundtrip.Preview{}, err
	}
	p := roundtrip.Build(rows, w.Records())
	p.FileName = name
	for _, le := range lineErrs {
		var lerr *roundtrip.LineError
		if errors.As(le, &lerr) {
			p.Issues = append(p.Issues, roundtrip.Issue{Line: lerr.Line, Message: lerr.Err.Error()})
			continue
		}
		p.Issues = append(p.Issues, roundtrip.Issue{Message: le.Error()})
	}
	w.Dispatch(ctx, appstate.SetCsvPreview{Preview: p})
	w.logger.Info("csv preview built", "file", name, "rows", len(p.Rows), "issues", len(p.Issues), "diffs", len(p.Diffs))
	return p, nil
}

// PushCSV writes the changed fields of every matched row in the current
// preview. It refuses while the preview has issues.
func (w *Workspace) PushCSV(ctx context.Context) (PushResult, error) {
	if err := w.require(rbac.ActionImportCSV); err != nil {
		return PushResult{}, err
	}
	st := w.State()
	p := st.Csv.Preview
	if p == nil || len(p.Rows) == 0 {
		return PushResult{}, ErrPreviewMissing
	}
	if p.Blocked() {
		return PushResult{}, fmt.Errorf("%d issue(s): %w", len(p.Issues), ErrPreviewHasIssues)
	}

	type job struct {
		rec    credit.Record
		fields map[string]string
	}
	var jobs []job
	var res PushResult
	for _, m := range p.Matches {
		fields := changedFields(m.Record, roundtrip.Apply(m.Record, m.Row))
		if len(fields) == 0 {
			res.Skipped++
			continue
		}
		jobs = append(jobs, job{rec: m.Record, fields: fields})
	}

	errs := make([]error, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentWrites)
	for i, j := range jobs {
		w.applyLocal(j.rec, j.fields)
		g.Go(func() error {
			_, errs[i] = w.writeEdit(gctx, j.rec, j.fields)
			return nil
		})
	}
	_ = g.Wait()

	var failed []error
	for i, err := range errs {
		if err != nil {
			res.Failed++
			id, _ := jobs[i].rec.Identity()
			failed = append(failed, fmt.Errorf("%s: %w", id, err))
			continue
		}
		res.Updated++
	}
	if len(failed) > 0 {
		return res, w.failWrite(ctx, "csv push", errors.Join(failed...), "file", p.FileName, "failed", res.Failed)
	}
	w.Dispatch(ctx, appstate.ClearCsv{})
	w.Dispatch(ctx, appstate.SetMessage{Message: fmt.Sprintf("CSV push complete: %d record(s) updated.", res.Updated)})
	w.logger.Info("csv pushed", "file", p.FileName, "updated", res.Updated, "unchanged", res.Skipped)
	return res, nil
}

// ClearCSV forgets the chosen file and its preview.
func (w *Workspace) ClearCSV(ctx context.Context) {
	w.Dispatch(ctx, appstate.ClearCsv{})
}

// ExportCSV writes the current view in round-trip format.
func (w *Workspace) ExportCSV(out io.Writer) error {
	if err := roundtrip.Write(out, w.View()); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	return nil
}

var roundTripFields = append(append([]string(nil), credit.BusinessFields...), credit.FieldDate, credit.FieldReason)

func changedFields(before, after credit.Record) map[string]string {
	out := map[string]string{}
	for _, f := range roundTripFields {
		if strings.TrimSpace(before.Field(f)) != strings.TrimSpace(after.Field(f)) {
			out[f] = after.Field(f)
		}
	}
	return out
}
