package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/i474232898/infrastructure-risk/internal/infrastructure"
)

// dbtx is the subset of pgxpool.Pool the gateway uses.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostGIS persists discovered infrastructure into a PostGIS table and hands
// out stable ids.
type PostGIS struct {
	pool *pgxpool.Pool
	db   dbtx
}

// NewPostGIS connects to databaseURL.
func NewPostGIS(ctx context.Context, databaseURL string) (*PostGIS, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &PostGIS{pool: pool, db: pool}, nil
}

// Close releases the pool resources.
func (p *PostGIS) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// Ping checks database connectivity.
func (p *PostGIS) Ping(ctx context.Context) error {
	if p.pool == nil {
		return nil
	}
	return p.pool.Ping(ctx)
}

const ensureSchemaSQL = `
    CREATE EXTENSION IF NOT EXISTS postgis;
    CREATE TABLE IF NOT EXISTS infrastructure (
        id         SERIAL PRIMARY KEY,
        name       TEXT NOT NULL,
        type       TEXT NOT NULL,
        geometry   GEOMETRY(Point, 4326) NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );
    CREATE INDEX IF NOT EXISTS infrastructure_geometry_idx ON infrastructure USING GIST (geometry);
    CREATE INDEX IF NOT EXISTS infrastructure_name_idx ON infrastructure (name);
`

// EnsureSchema creates the infrastructure table if it does not exist.
func (p *PostGIS) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, ensureSchemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// upsertSQL reuses the row with the same name within 0.001° (roughly 100 m)
// of the point, inserting a new row otherwise. Params: name, lon, lat, type.
const upsertSQL = `
    WITH existing AS (
        SELECT id FROM infrastructure
        WHERE name = $1
          AND ST_DWithin(geometry, ST_SetSRID(ST_MakePoint($2, $3), 4326), 0.001)
        ORDER BY id
        LIMIT 1
    ), inserted AS (
        INSERT INTO infrastructure (name, type, geometry)
        SELECT $1, $4, ST_SetSRID(ST_MakePoint($2, $3), 4326)
        WHERE NOT EXISTS (SELECT 1 FROM existing)
        RETURNING id
    )
    SELECT id FROM existing
    UNION ALL
    SELECT id FROM inserted
`

// Upsert stores the records in one transaction and returns copies carrying
// the database ids. Nothing is committed when any record fails.
func (p *PostGIS) Upsert(ctx context.Context, records []infrastructure.Record) ([]infrastructure.Record, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	out := make([]infrastructure.Record, 0, len(records))
	for _, r := range records {
		var id int
		err := tx.QueryRow(ctx, upsertSQL, r.Name, r.Location.Lon, r.Location.Lat, string(r.Type)).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("upsert %q: %w", r.Name, err)
		}
		r.ID = id
		out = append(out, r)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit upsert: %w", err)
	}
	return out, nil
}
