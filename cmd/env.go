package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/riftfin/riftcore/internal/ledger"
	"github.com/riftfin/riftcore/internal/riskadapter"
	"github.com/riftfin/riftcore/internal/store"
)

// env bundles the wired backends a command needs. The ledger is only
// available on the postgres backend; commands that need it must check.
type env struct {
	Store   store.Store
	Adapter riskadapter.Port
	Ledger  *ledger.Ledger
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	e := &env{
		Store:   st,
		Adapter: riskadapter.New(cfg.Adapter),
	}
	if pg, ok := st.(*store.PostgresStore); ok {
		e.Ledger = ledger.New(pg.Pool(), cfg.Ledger)
	} else {
		zap.L().Warn("pool ledger disabled: it requires the postgres store backend",
			zap.String("driver", cfg.Store.Driver))
	}
	return e, nil
}

func (e *env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("closing store", zap.Error(err))
	}
}
