package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vcf-dupe/internal/store"
)

// initStore opens and migrates the state file at path.
func initStore(ctx context.Context, path string) (store.Store, error) {
	if path == "" {
		return nil, eris.New("state_db is not configured")
	}
	st, err := store.NewSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// openStateStore opens the optional state file for a dedupe run and prunes
// expired cached scores. It returns nil when state_db is not set.
func openStateStore(ctx context.Context, path string) (store.Store, error) {
	if path == "" {
		return nil, nil
	}
	st, err := initStore(ctx, path)
	if err != nil {
		return nil, err
	}
	if n, err := st.DeleteExpiredScores(ctx); err != nil {
		zap.L().Warn("store: prune score cache failed", zap.Error(err))
	} else if n > 0 {
		zap.L().Debug("store: pruned expired scores", zap.Int("count", n))
	}
	return st, nil
}
