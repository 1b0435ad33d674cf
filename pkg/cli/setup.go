package cli

import (
	"context"
	"log/slog"

	"air2graph/internal/app"
	"air2graph/internal/config"
	internaldb "air2graph/internal/db"
)

// openApp builds the fully-wired application: SQLite run store (migrated),
// graph driver (connectivity verified), and all services. The returned
// cleanup closes every handle and is safe to defer immediately.
func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app.App, func(), error) {
	writeDB, readDB, err := internaldb.OpenSQLitePair(cfg.RunDBPath, 0)
	if err != nil {
		return nil, nil, err
	}
	if err := internaldb.RunMigrations(writeDB); err != nil {
		_ = readDB.Close()
		_ = writeDB.Close()
		return nil, nil, err
	}

	driver, err := app.NewDriver(ctx, cfg)
	if err != nil {
		_ = readDB.Close()
		_ = writeDB.Close()
		return nil, nil, err
	}

	cleanup := func() {
		_ = driver.Close(context.Background())
		_ = readDB.Close()
		_ = writeDB.Close()
	}

	a, err := app.New(ctx, app.Deps{
		Cfg:     cfg,
		Driver:  driver,
		WriteDB: writeDB,
		ReadDB:  readDB,
		Logger:  logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return a, cleanup, nil
}
