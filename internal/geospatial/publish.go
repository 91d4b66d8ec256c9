package geospatial

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Hitoyu22/TP3-datamining/internal/db"
)

// publishLockID serializes concurrent migrations of the publish table.
const publishLockID = 8675311

// PublishColumns is the column order of rows copied into PostGIS.
var PublishColumns = []string{
	"annee", "secteur_geographique", "numero_quartier", "nom_quartier",
	"nombre_pieces_principales", "epoque_construction", "type_location",
	"loyers_reference", "loyers_majores", "loyers_minores", "geom",
}

// Publisher loads projected collections into a PostGIS table.
type Publisher struct {
	pool  db.Pool
	table string
}

// NewPublisher validates the table name and returns a publisher.
func NewPublisher(pool db.Pool, table string) (*Publisher, error) {
	if pool == nil {
		return nil, eris.New("geo: publisher requires a pool")
	}
	if _, err := db.ParseIdentifier(table); err != nil {
		return nil, err
	}
	return &Publisher{pool: pool, table: table}, nil
}

// Migrate creates the PostGIS extension and the target table if needed.
func (p *Publisher) Migrate(ctx context.Context, srid int) error {
	log := zap.L().With(zap.String("component", "geo.publish"))

	if _, err := p.pool.Exec(ctx, "SELECT pg_advisory_lock($1)", publishLockID); err != nil {
		return eris.Wrap(err, "geo: acquire publish advisory lock")
	}
	defer func() {
		if _, err := p.pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", publishLockID); err != nil {
			log.Warn("geo: failed to release publish advisory lock", zap.Error(err))
		}
	}()

	if _, err := p.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS postgis"); err != nil {
		return eris.Wrap(err, "geo: create postgis extension")
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id                        BIGSERIAL PRIMARY KEY,
	annee                     INTEGER,
	secteur_geographique      INTEGER,
	numero_quartier           INTEGER,
	nom_quartier              TEXT,
	nombre_pieces_principales DOUBLE PRECISION,
	epoque_construction       INTEGER,
	type_location             SMALLINT,
	loyers_reference          DOUBLE PRECISION,
	loyers_majores            DOUBLE PRECISION,
	loyers_minores            DOUBLE PRECISION,
	geom                      geometry(Geometry, %d) NOT NULL
)`, p.table, srid)
	if _, err := p.pool.Exec(ctx, ddl); err != nil {
		return eris.Wrapf(err, "geo: create table %s", p.table)
	}

	log.Info("publish table ready", zap.String("table", p.table), zap.Int("srid", srid))
	return nil
}

// Publish replaces the table contents with the collection's features.
func (p *Publisher) Publish(ctx context.Context, c *Collection) (int64, error) {
	if c.CRS == "" {
		return 0, ErrNoCRS
	}

	rows := make([][]any, 0, c.Len())
	for i, f := range c.Features {
		wkb, err := EncodeEWKB(f.Geometry)
		if err != nil {
			return 0, eris.Wrapf(err, "geo: encode feature %d", i)
		}
		r := f.Record
		rows = append(rows, []any{
			r.Year, r.Sector, r.NeighborhoodID, r.NeighborhoodName,
			r.Rooms, r.Era, r.Furnished,
			r.RentRef, r.RentMax, r.RentMin, wkb,
		})
	}

	if _, err := p.pool.Exec(ctx, "TRUNCATE "+p.table); err != nil {
		return 0, eris.Wrapf(err, "geo: truncate %s", p.table)
	}

	n, err := db.CopyFrom(ctx, p.pool, p.table, PublishColumns, rows)
	if err != nil {
		return 0, err
	}

	zap.L().Info("geo: published collection",
		zap.String("table", p.table),
		zap.String("crs", c.CRS),
		zap.Int64("rows", n),
	)
	return n, nil
}
