package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/nsyte-agents/auction-sync/internal/model"
	"github.com/nsyte-agents/auction-sync/internal/reconcile"
	"github.com/nsyte-agents/auction-sync/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "auction-sync.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func loadZones() (model.ZoneMap, error) {
	if cfg.Zones.File == "" {
		return model.DefaultZones(), nil
	}
	return model.LoadZones(cfg.Zones.File)
}

// initReconciler builds a reconciler hydrated with every persisted row, so
// ingesting a stale record against existing state is a no-op rather than a
// regression.
func initReconciler(ctx context.Context, st store.Store) (*reconcile.Reconciler, error) {
	zones, err := loadZones()
	if err != nil {
		return nil, err
	}

	opts := []reconcile.Option{reconcile.WithZones(zones)}
	if cfg.Reconcile.Strict {
		opts = append(opts, reconcile.WithStrict())
	}
	rec := reconcile.New(opts...)

	rows, err := st.ListRows(ctx, store.RowFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "hydrate reconciler")
	}
	rec.Restore(rows...)
	return rec, nil
}
