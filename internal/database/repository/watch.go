package repository

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"time"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = credit.ErrNotFound

// DefaultPollInterval is how often watchers re-read a table.
const DefaultPollInterval = 2 * time.Second

// poll lists the table now and then every interval, calling fn with the
// full snapshot whenever its content differs from the last one delivered.
// Calls to fn never overlap. It returns when ctx is done or a read fails.
func poll[T any](ctx context.Context, interval time.Duration, list func(context.Context) ([]T, error), fn func([]T)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last [sha256.Size]byte
	delivered := false
	for {
		items, err := list(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		data, err := json.Marshal(items)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(data)
		if !delivered || sum != last {
			fn(items)
			last, delivered = sum, true
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
