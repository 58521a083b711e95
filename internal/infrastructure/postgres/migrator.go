package postgres

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
)

// ErrDirtySchema means a previous migration failed halfway and needs a manual
// `migrate force` before the engine may touch disbursements again.
var ErrDirtySchema = errors.New("postgres: schema is dirty")

// RunMigrations brings the schema in migrationsPath up to date. It refuses to
// run on a dirty schema.
func RunMigrations(databaseURL, migrationsPath string, log zerolog.Logger) (err error) {
	log = log.With().Str("component", "migrator").Logger()

	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return fmt.Errorf("open migrations %s: %w", migrationsPath, err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if err == nil && dbErr != nil {
			err = fmt.Errorf("close migrator: %w", dbErr)
		}
		if srcErr != nil {
			log.Warn().Err(srcErr).Msg("close migration source")
		}
	}()

	before, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		before = 0
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case dirty:
		return fmt.Errorf("%w at version %d", ErrDirtySchema, before)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	after, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if after == before {
		log.Info().Uint("version", after).Msg("schema up to date")
	} else {
		log.Info().Uint("from", before).Uint("to", after).Msg("schema migrated")
	}
	return nil
}
