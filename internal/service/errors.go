package service

import (
	"errors"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
)

var (
	ErrNotFound           = credit.ErrNotFound
	ErrNoPendingEdits     = errors.New("no pending edits to push")
	ErrPreviewMissing     = errors.New("no CSV preview; choose a file first")
	ErrPreviewHasIssues   = errors.New("CSV preview has issues; fix them before pushing")
	ErrForbidden          = errors.New("your role does not allow this action")
	ErrMissingReminderKey = errors.New("reminder has no key")
	ErrNoReminder         = errors.New("record has no reminder")
	ErrEmptyNote          = errors.New("note text is empty")
	ErrReadOnlyField      = errors.New("field cannot be edited")
)
