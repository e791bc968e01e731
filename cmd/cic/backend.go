package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cloud.google.com/go/firestore"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/analytics"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/config"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/database"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/database/repository"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/gcp"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/notify"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/prefs"
	"github.com/sebasrosalesr/credit-intelligence-center/internal/service"
)

// backend is the set of stores behind one session. DB is nil unless the
// sqlite backend is selected.
type backend struct {
	service.Deps
	DB      *sql.DB
	closers []func() error
}

func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

func openSQLite(c config.Config) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(c.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	if err := database.RunMigrations(c.Database.Path, c.Database.Migrations); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(c.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return db, nil
}

func openBackend(ctx context.Context, c config.Config) (*backend, error) {
	b := &backend{}
	b.Logger = logger

	switch c.Store.Backend {
	case config.BackendFirestore:
		client, err := gcp.NewFirestoreClient(ctx, c.Firestore.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("firestore: %w", err)
		}
		b.closers = append(b.closers, client.Close)
		b.useFirestore(client, c.Firestore)
		logger.Info("using firestore backend", "project", c.Firestore.ProjectID)
	default:
		db, err := openSQLite(c)
		if err != nil {
			return nil, err
		}
		b.DB = db
		b.closers = append(b.closers, db.Close)
		b.Credits = repository.NewCreditRepo(db).PollEvery(c.Store.PollInterval)
		b.Reminders = repository.NewReminderRepo(db).PollEvery(c.Store.PollInterval)
		b.Notes = repository.NewNoteRepo(db)
		b.Roles = repository.NewRoleRepo(db)
		logger.Debug("using sqlite backend", "path", c.Database.Path)
	}

	days, closeDays, err := openDayStore(ctx, c)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	b.Days = days
	if closeDays != nil {
		b.closers = append(b.closers, closeDays)
	}
	return b, nil
}

func (b *backend) useFirestore(client *firestore.Client, fc config.FirestoreConfig) {
	b.Credits = gcp.NewCreditStore(client, fc.CreditsCollection)
	b.Reminders = gcp.NewReminderStore(client, fc.RemindersCollection)
	b.Notes = gcp.NewNoteStore(client, fc.NotesCollection)
	b.Roles = gcp.NewRoleStore(client, fc.RolesCollection)
}

// openDayStore shares fired and dismissed sets through Redis when
// configured and otherwise keeps them in the user config directory.
func openDayStore(ctx context.Context, c config.Config) (notify.DayStore, func() error, error) {
	if c.Redis.URL != "" {
		store, err := notify.NewRedisDayStore(c.Redis.URL, c.User.Email)
		if err != nil {
			return nil, nil, fmt.Errorf("redis day store: %w", err)
		}
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("redis day store: %w", err)
		}
		return store, store.Close, nil
	}
	file, err := prefs.DefaultReminderDayFile()
	if err != nil {
		logger.Warn("reminder day state will not persist", "err", err)
		return &notify.MemoryDayStore{}, nil, nil
	}
	return file, nil, nil
}

func settingsFor(c config.Config) service.Settings {
	return service.Settings{
		Location: c.Location(),
		PageSize: c.UI.PageSize,
		Currency: c.UI.CurrencySymbol,
		Analytics: analytics.Options{
			HighDollarThreshold: c.Risk.HighDollarThreshold,
			Thresholds: analytics.Thresholds{
				Medium: float64(c.Risk.MediumThreshold),
				High:   float64(c.Risk.HighThreshold),
			},
		},
		CheckInterval: c.Reminders.CheckInterval,
		RemindTime:    c.Reminders.DefaultRemindTime,
		Email:         c.User.Email,
		Aliases:       c.Authors.Aliases,
	}
}

// openWorkspace resolves the session role and loads both collections.
func openWorkspace(ctx context.Context) (*service.Workspace, *backend, error) {
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	settings := settingsFor(cfg)
	role, err := service.ResolveRole(ctx, b.Roles, cfg.User.Role, cfg.User.Email)
	if err != nil {
		logger.Warn("role lookup failed; using claim", "email", cfg.User.Email, "err", err)
	}
	settings.Role = role

	ws := service.NewWorkspace(b.Deps, settings)
	if err := ws.Load(ctx); err != nil {
		_ = b.Close()
		return nil, nil, fmt.Errorf("load: %w", err)
	}
	return ws, b, nil
}
