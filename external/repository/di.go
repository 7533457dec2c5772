package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/podiumlab/racebot/internal/command"
	"github.com/podiumlab/racebot/internal/config"
	"github.com/podiumlab/racebot/internal/identity"
	"github.com/podiumlab/racebot/internal/roster"
	"github.com/samber/do/v2"
)

const databaseInitTimeout = 15 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*PostgresStore, error) {
		cfg := do.MustInvoke[*config.Config](i)
		ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
		defer cancel()

		p, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect database: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		if err := RunMigration(ctx, p); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to run migration: %w", err)
		}
		return NewPostgresStore(p), nil
	})
	do.Provide(injector, func(i do.Injector) (command.DefinitionSource, error) {
		return do.MustInvoke[*PostgresStore](i), nil
	})
	do.Provide(injector, func(i do.Injector) (identity.Resolver, error) {
		return do.MustInvoke[*PostgresStore](i), nil
	})
	do.Provide(injector, func(i do.Injector) (roster.Provider, error) {
		return do.MustInvoke[*PostgresStore](i), nil
	})
}
