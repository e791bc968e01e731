package appstate

import (
	"maps"
	"sort"
	"time"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/roundtrip"
)

// Action is a state transition. The set is closed to this package.
type Action interface{ isAction() }

type (
	// ToggleEditMode flips edit mode and keeps staged edits.
	ToggleEditMode struct{}
	// SetFieldEdit stages one field of one row.
	SetFieldEdit struct {
		RowKey string
		Field  string
		Value  string
	}
	// ClearPendingEdits discards staged edits and leaves edit mode.
	ClearPendingEdits struct{}

	// ToggleRowSelection selects or deselects one row.
	ToggleRowSelection struct {
		RowKey   string
		Selected bool
	}
	// ToggleAllVisible selects or deselects the rows on screen only. Key
	// receives each row with Offset added to its position in Rows.
	ToggleAllVisible struct {
		Selected bool
		Rows     []credit.Record
		Offset   int
		Key      func(credit.Record, int) string
	}
	// ClearSelection empties the selection.
	ClearSelection struct{}

	// SetCsvFile starts a new round trip and drops any previous preview.
	SetCsvFile struct{ Name string }
	// SetCsvPreview stores a computed preview.
	SetCsvPreview struct{ Preview roundtrip.Preview }
	// ClearCsv forgets the file and preview.
	ClearCsv struct{}

	// PushStarted moves the staged edits of RowKeys into pending intents.
	PushStarted struct{ RowKeys []string }
	// PushFinished leaves edit mode unless edits were staged meanwhile.
	PushFinished struct{}
	// WriteConfirmed drops a confirmed intent.
	WriteConfirmed struct{ RowKey string }
	// WriteFailed marks an intent failed. Local state is not rolled back.
	WriteFailed struct {
		RowKey string
		Err    string
	}
	// RetryFailed moves failed intents back into staged edits.
	RetryFailed struct{}

	// Enqueue queues notifications and marks Fired as fired today. It is
	// ignored while suppressed at At.
	Enqueue struct {
		Notifications []Notification
		Fired         []string
		At            time.Time
	}
	// DismissGroup removes queued entries and marks them dismissed.
	DismissGroup struct{ Keys []string }
	// ClearQueue empties the queue. Fired and dismissed sets are kept.
	ClearQueue struct{}
	// SuppressUntil clears the queue and blocks enqueueing until Until.
	SuppressUntil struct{ Until time.Time }
	// RollDay resets the fired and dismissed sets when Day changes.
	RollDay struct{ Day string }
	// RestoreDay loads persisted fired and dismissed sets for Day.
	RestoreDay struct {
		Day       string
		Fired     []string
		Dismissed []string
	}

	// SetError records a user-visible error.
	SetError struct{ Err string }
	// SetMessage records a user-visible status message and clears the error.
	SetMessage struct{ Message string }
)

func (ToggleEditMode) isAction()     {}
func (SetFieldEdit) isAction()       {}
func (ClearPendingEdits) isAction()  {}
func (ToggleRowSelection) isAction() {}
func (ToggleAllVisible) isAction()   {}
func (ClearSelection) isAction()     {}
func (SetCsvFile) isAction()         {}
func (SetCsvPreview) isAction()      {}
func (ClearCsv) isAction()           {}
func (PushStarted) isAction()        {}
func (PushFinished) isAction()       {}
func (WriteConfirmed) isAction()     {}
func (WriteFailed) isAction()        {}
func (RetryFailed) isAction()        {}
func (Enqueue) isAction()            {}
func (DismissGroup) isAction()       {}
func (ClearQueue) isAction()         {}
func (SuppressUntil) isAction()      {}
func (RollDay) isAction()            {}
func (RestoreDay) isAction()         {}
func (SetError) isAction()           {}
func (SetMessage) isAction()         {}

// Reduce applies a to s and returns the new state. Maps touched by a are
// copied first, so states returned earlier stay valid.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case ToggleEditMode:
		s.EditMode = !s.EditMode

	case SetFieldEdit:
		edits := cloneEdits(s.PendingEdits)
		row := maps.Clone(edits[a.RowKey])
		if row == nil {
			row = map[string]string{}
		}
		row[a.Field] = a.Value
		edits[a.RowKey] = row
		s.PendingEdits = edits

	case ClearPendingEdits:
		s.PendingEdits = map[string]map[string]string{}
		s.EditMode = false

	case ToggleRowSelection:
		sel := cloneSet(s.Selected)
		if a.Selected {
			sel[a.RowKey] = struct{}{}
		} else {
			delete(sel, a.RowKey)
		}
		s.Selected = sel

	case ToggleAllVisible:
		if a.Key == nil {
			return s
		}
		sel := cloneSet(s.Selected)
		for i, rec := range a.Rows {
			key := a.Key(rec, a.Offset+i)
			if a.Selected {
				sel[key] = struct{}{}
			} else {
				delete(sel, key)
			}
		}
		s.Selected = sel

	case ClearSelection:
		s.Selected = map[string]struct{}{}

	case SetCsvFile:
		s.Csv = Csv{FileName: a.Name}

	case SetCsvPreview:
		p := a.Preview
		if p.FileName == "" {
			p.FileName = s.Csv.FileName
		}
		s.Csv = Csv{FileName: p.FileName, Preview: &p}

	case ClearCsv:
		s.Csv = Csv{}

	case PushStarted:
		edits := cloneEdits(s.PendingEdits)
		intents := maps.Clone(s.Intents)
		if intents == nil {
			intents = map[string]WriteIntent{}
		}
		for _, key := range a.RowKeys {
			fields, ok := edits[key]
			if !ok {
				continue
			}
			intents[key] = WriteIntent{RowKey: key, Fields: fields, Status: IntentPending}
			delete(edits, key)
		}
		s.PendingEdits = edits
		s.Intents = intents

	case PushFinished:
		if len(s.PendingEdits) == 0 {
			s.EditMode = false
		}

	case WriteConfirmed:
		if _, ok := s.Intents[a.RowKey]; !ok {
			return s
		}
		intents := maps.Clone(s.Intents)
		delete(intents, a.RowKey)
		s.Intents = intents

	case WriteFailed:
		in, ok := s.Intents[a.RowKey]
		if !ok {
			return s
		}
		intents := maps.Clone(s.Intents)
		in.Status = IntentFailed
		in.Err = a.Err
		intents[a.RowKey] = in
		s.Intents = intents
		s.Error = a.Err

	case RetryFailed:
		edits := cloneEdits(s.PendingEdits)
		intents := maps.Clone(s.Intents)
		moved := false
		for key, in := range intents {
			if in.Status != IntentFailed {
				continue
			}
			row := maps.Clone(in.Fields)
			if row == nil {
				row = map[string]string{}
			}
			// edits staged after the failure win
			maps.Copy(row, edits[key])
			edits[key] = row
			delete(intents, key)
			moved = true
		}
		if !moved {
			return s
		}
		s.PendingEdits = edits
		s.Intents = intents
		s.EditMode = true
		s.Error = ""

	case Enqueue:
		n := s.Notifications
		if n.Suppressed(a.At) {
			return s
		}
		queue := append([]Notification(nil), n.Queue...)
		fired := cloneSet(n.Fired)
		queued := make(map[string]struct{}, len(queue))
		for _, q := range queue {
			queued[q.Key] = struct{}{}
		}
		for _, item := range a.Notifications {
			if _, dup := queued[item.Key]; dup || n.Blocked(item.Key) {
				continue
			}
			queued[item.Key] = struct{}{}
			queue = append(queue, item)
		}
		for _, key := range a.Fired {
			fired[key] = struct{}{}
		}
		n.Queue = queue
		n.Fired = fired
		s.Notifications = n

	case DismissGroup:
		n := s.Notifications
		drop := make(map[string]struct{}, len(a.Keys))
		dismissed := cloneSet(n.Dismissed)
		for _, k := range a.Keys {
			drop[k] = struct{}{}
			dismissed[k] = struct{}{}
		}
		var queue []Notification
		for _, q := range n.Queue {
			if _, ok := drop[q.Key]; !ok {
				queue = append(queue, q)
			}
		}
		n.Queue = queue
		n.Dismissed = dismissed
		s.Notifications = n

	case ClearQueue:
		n := s.Notifications
		n.Queue = nil
		s.Notifications = n

	case SuppressUntil:
		n := s.Notifications
		n.Queue = nil
		n.SuppressedUntil = a.Until
		s.Notifications = n

	case RollDay:
		if a.Day == s.Notifications.Day {
			return s
		}
		n := s.Notifications
		n.Day = a.Day
		n.Fired = map[string]struct{}{}
		n.Dismissed = map[string]struct{}{}
		s.Notifications = n

	case RestoreDay:
		n := s.Notifications
		n.Day = a.Day
		n.Fired = setOf(a.Fired)
		n.Dismissed = setOf(a.Dismissed)
		s.Notifications = n

	case SetError:
		s.Error = a.Err

	case SetMessage:
		s.Message = a.Message
		s.Error = ""
	}
	return s
}

func cloneEdits(in map[string]map[string]string) map[string]map[string]string {
	out := make(map[string]map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneSet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}

func setOf(keys []string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}

// Keys returns the members of a set, sorted.
func Keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
