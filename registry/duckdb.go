package registry

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"fmt"
	"strings"

	duckdb "github.com/duckdb/duckdb-go/v2"
)

//go:embed sql/schema.sql
var schemaSQL string

// attachedCatalog is the catalog name a remote PostgreSQL registry is
// attached under.
const attachedCatalog = "registry"

// SQLStore reads manufacturers through DuckDB. The DSN is either a DuckDB
// database path (empty for in-memory) or a postgres:// URL, which is
// attached read-only through DuckDB's postgres extension.
type SQLStore struct {
	db    *sql.DB
	table string
}

// OpenSQL opens the registry database named by dsn.
func OpenSQL(ctx context.Context, dsn string) (*SQLStore, error) {
	remote := strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")

	path := dsn
	if remote {
		path = ""
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}

	store := &SQLStore{db: db, table: "manufacturers"}

	if remote {
		// Attached catalogs are per-connection state.
		db.SetMaxOpenConns(1)
		attach := fmt.Sprintf("INSTALL postgres; LOAD postgres; ATTACH '%s' AS %s (TYPE POSTGRES, READ_ONLY)",
			strings.ReplaceAll(dsn, "'", "''"), attachedCatalog)
		if _, err := db.ExecContext(ctx, attach); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to attach registry database: %w", err)
		}
		store.table = attachedCatalog + ".public.manufacturers"
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach registry database: %w", err)
	}

	return store, nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Exists reports whether the manufacturers table is present.
func (s *SQLStore) Exists(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_name = 'manufacturers'").Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check registry schema: %w", err)
	}
	return n > 0, nil
}

// Active returns active manufacturers ordered by name. A database without
// the manufacturers table yields an empty list, not an error.
func (s *SQLStore) Active(ctx context.Context) ([]Manufacturer, error) {
	exists, err := s.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, name, country, founded_year, website, status, notes
		FROM %s
		WHERE status = 'active' OR status IS NULL
		ORDER BY name`, s.table))
	if err != nil {
		return nil, fmt.Errorf("failed to query manufacturers: %w", err)
	}
	defer rows.Close()

	var out []Manufacturer
	for rows.Next() {
		var (
			m                              Manufacturer
			country, website, status, note sql.NullString
			founded                        sql.NullInt64
		)
		if err := rows.Scan(&m.ID, &m.Name, &country, &founded, &website, &status, &note); err != nil {
			return nil, fmt.Errorf("failed to scan manufacturer: %w", err)
		}
		m.Country = country.String
		m.FoundedYear = int(founded.Int64)
		m.Website = website.String
		m.Status = status.String
		m.Notes = note.String
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manufacturers: %w", err)
	}
	return out, nil
}

// Seed creates the schema and bulk-loads records with the DuckDB appender.
// Only local databases can be seeded.
func (s *SQLStore) Seed(ctx context.Context, records []Manufacturer) error {
	if s.table != "manufacturers" {
		return fmt.Errorf("attached registry databases are read-only")
	}

	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create registry schema: %w", err)
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	return conn.Raw(func(driverConn any) error {
		rawConn, ok := driverConn.(driver.Conn)
		if !ok {
			return fmt.Errorf("duckdb driver connection unavailable (got %T)", driverConn)
		}

		appender, err := duckdb.NewAppenderFromConn(rawConn, "", "manufacturers")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}

		for _, m := range records {
			if err := appender.AppendRow(
				int32(m.ID), m.Name,
				nullable(m.Country), nullableInt(m.FoundedYear),
				nullable(m.Website), nullable(m.Status), nullable(m.Notes),
			); err != nil {
				appender.Close()
				return fmt.Errorf("failed to append %s: %w", m.Name, err)
			}
		}
		return appender.Close()
	})
}

func nullable(s string) driver.Value {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(n int) driver.Value {
	if n == 0 {
		return nil
	}
	return int32(n)
}
