package store

import (
	"context"
	"embed"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type migration struct {
	Version    int
	Name       string
	UpScript   string
	DownScript string
}

// RunMigrations applies every embedded forward migration newer than the
// schema's current version, inside one transaction per migration, and
// records each in schema_migration. Naming convention:
// <version>_<name>.up.sql / <version>_<name>.down.sql.
func RunMigrations(ctx context.Context, d *DB) error {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("store: read embedded migrations: %w", err)
	}

	migrations := make(map[int]migration)
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		parts := strings.SplitN(entry.Name(), ".", 3)
		if len(parts) != 3 {
			continue
		}
		nameAndVersion := strings.SplitN(parts[0], "_", 2)
		if len(nameAndVersion) != 2 {
			continue
		}
		version, err := strconv.Atoi(nameAndVersion[0])
		if err != nil {
			return fmt.Errorf("store: migration %q has a non-numeric version: %w", entry.Name(), err)
		}

		content, err := migrationFS.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("store: read migration %q: %w", entry.Name(), err)
		}

		m := migrations[version]
		m.Version = version
		m.Name = nameAndVersion[1]
		switch parts[1] {
		case "up":
			m.UpScript = string(content)
		case "down":
			m.DownScript = string(content)
		default:
			return fmt.Errorf("store: migration %q has an unrecognized script type %q", entry.Name(), parts[1])
		}
		migrations[version] = m
	}

	for _, m := range migrations {
		if m.UpScript == "" || m.DownScript == "" {
			return fmt.Errorf("store: migration %d (%s) is missing an up or down script", m.Version, m.Name)
		}
	}

	if err := ensureMigrationsSchema(ctx, d); err != nil {
		return err
	}

	lastApplied, err := lastAppliedVersion(ctx, d)
	if err != nil {
		return err
	}

	var pending []migration
	for version, m := range migrations {
		if version > lastApplied {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })

	for _, m := range pending {
		if err := applyMigration(ctx, d, m); err != nil {
			return fmt.Errorf("store: apply migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

func ensureMigrationsSchema(ctx context.Context, d *DB) error {
	const ddl = `CREATE TABLE IF NOT EXISTS schema_migration (
		id serial PRIMARY KEY,
		name text NOT NULL,
		version integer NOT NULL UNIQUE
	)`
	_, err := d.conn.ExecContext(ctx, ddl)
	return err
}

func lastAppliedVersion(ctx context.Context, d *DB) (int, error) {
	var version int
	err := d.conn.GetContext(ctx, &version,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migration`)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func applyMigration(ctx context.Context, d *DB, m migration) error {
	tx, err := d.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, m.UpScript); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migration (version, name) VALUES ($1, $2)`,
		m.Version, m.Name,
	); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
