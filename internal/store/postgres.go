package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/nsyte-agents/auction-sync/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS reconciled_rows (
	property_id      TEXT PRIMARY KEY,
	address          TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL DEFAULT '',
	zone             TEXT NOT NULL DEFAULT '',
	auction_date     TIMESTAMPTZ,
	opening_bid      BIGINT,
	est_market_value BIGINT,
	final_bid        BIGINT,
	surplus          BIGINT,
	listing_status   TEXT NOT NULL DEFAULT 'unknown',
	sold_to          TEXT NOT NULL DEFAULT 'unsold',
	listing_as_of    TIMESTAMPTZ,
	outcome_as_of    TIMESTAMPTZ,
	last_updated     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS processed_messages (
	message_id   TEXT PRIMARY KEY,
	processed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	ingested    INTEGER NOT NULL DEFAULT 0,
	rejected    INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_kind ON sync_runs(kind, started_at);
CREATE INDEX IF NOT EXISTS idx_rows_zone ON reconciled_rows(zone);
CREATE INDEX IF NOT EXISTS idx_rows_state ON reconciled_rows(state);
CREATE INDEX IF NOT EXISTS idx_rows_sold_to ON reconciled_rows(sold_to);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const postgresUpsertRow = `
INSERT INTO reconciled_rows (
	property_id, address, state, zone, auction_date, opening_bid,
	est_market_value, final_bid, surplus, listing_status, sold_to,
	listing_as_of, outcome_as_of, last_updated
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (property_id) DO UPDATE SET
	address          = EXCLUDED.address,
	state            = EXCLUDED.state,
	zone             = EXCLUDED.zone,
	auction_date     = EXCLUDED.auction_date,
	opening_bid      = EXCLUDED.opening_bid,
	est_market_value = EXCLUDED.est_market_value,
	final_bid        = EXCLUDED.final_bid,
	surplus          = EXCLUDED.surplus,
	listing_status   = EXCLUDED.listing_status,
	sold_to          = EXCLUDED.sold_to,
	listing_as_of    = EXCLUDED.listing_as_of,
	outcome_as_of    = EXCLUDED.outcome_as_of,
	last_updated     = EXCLUDED.last_updated`

func (s *PostgresStore) UpsertRows(ctx context.Context, rows []model.ReconciledRow) error {
	for _, r := range rows {
		_, err := s.pool.Exec(ctx, postgresUpsertRow,
			r.PropertyID, r.Address, r.State, r.Zone,
			timePtr(r.AuctionDate), r.OpeningBid, r.EstMarketValue,
			r.FinalBid, r.Surplus,
			string(r.ListingStatus), string(r.SoldTo),
			zeroTimePtr(r.ListingAsOf), zeroTimePtr(r.OutcomeAsOf), r.LastUpdated.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: upsert row %s", r.PropertyID)
		}
	}
	return nil
}

const postgresSelectRow = `
SELECT property_id, address, state, zone, auction_date, opening_bid,
       est_market_value, final_bid, surplus, listing_status, sold_to,
       listing_as_of, outcome_as_of, last_updated
FROM reconciled_rows`

func (s *PostgresStore) GetRow(ctx context.Context, propertyID string) (*model.ReconciledRow, error) {
	row := s.pool.QueryRow(ctx, postgresSelectRow+` WHERE property_id = $1`, propertyID)
	r, err := scanPgRow(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get row %s", propertyID)
	}
	return r, nil
}

func (s *PostgresStore) ListRows(ctx context.Context, filter RowFilter) ([]model.ReconciledRow, error) {
	query := postgresSelectRow + ` WHERE 1=1`
	var args []any

	if filter.Zone != "" {
		args = append(args, filter.Zone)
		query += placeholder(` AND zone = `, len(args))
	}
	if filter.State != "" {
		args = append(args, filter.State)
		query += placeholder(` AND state = `, len(args))
	}
	if filter.SoldTo != "" {
		args = append(args, string(filter.SoldTo))
		query += placeholder(` AND sold_to = `, len(args))
	}
	query += ` ORDER BY property_id ASC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += placeholder(` LIMIT `, len(args))
		if filter.Offset > 0 {
			args = append(args, filter.Offset)
			query += placeholder(` OFFSET `, len(args))
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list rows")
	}
	defer rows.Close()

	var out []model.ReconciledRow
	for rows.Next() {
		r, err := scanPgRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan row")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list rows iterate")
}

func (s *PostgresStore) CountRows(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reconciled_rows`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count rows")
}

func (s *PostgresStore) MessageProcessed(ctx context.Context, messageID string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM processed_messages WHERE message_id = $1`, messageID,
	).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: message processed %s", messageID)
	}
	return true, nil
}

func (s *PostgresStore) MarkMessageProcessed(ctx context.Context, messageID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO processed_messages (message_id, processed_at) VALUES ($1, $2)
		 ON CONFLICT (message_id) DO NOTHING`,
		messageID, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: mark message processed %s", messageID)
}

func (s *PostgresStore) StartRun(ctx context.Context, kind model.RunKind) (*model.SyncRun, error) {
	run := &model.SyncRun{
		ID:        uuid.New().String(),
		Kind:      kind,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_runs (id, kind, started_at) VALUES ($1, $2, $3)`,
		run.ID, string(run.Kind), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: start run")
	}
	return run, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, ingested, rejected int, runErr error) error {
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE sync_runs SET finished_at = $1, ingested = $2, rejected = $3, error = $4 WHERE id = $5`,
		time.Now().UTC(), ingested, rejected, errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) LastRun(ctx context.Context, kind model.RunKind) (*model.SyncRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, kind, started_at, finished_at, ingested, rejected, error
		 FROM sync_runs WHERE kind = $1 ORDER BY started_at DESC LIMIT 1`,
		string(kind),
	)
	var (
		run      model.SyncRun
		kindStr  string
		finished *time.Time
	)
	err := row.Scan(&run.ID, &kindStr, &run.StartedAt, &finished,
		&run.Ingested, &run.Rejected, &run.Error)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: last run")
	}
	run.Kind = model.RunKind(kindStr)
	run.FinishedAt = finished
	return &run, nil
}

// helpers

func placeholder(prefix string, n int) string {
	return fmt.Sprintf("%s$%d", prefix, n)
}

func timePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func zeroTimePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func scanPgRow(row pgx.Row) (*model.ReconciledRow, error) {
	var (
		r                        model.ReconciledRow
		auctionDate              *time.Time
		listingAsOf, outcomeAsOf *time.Time
		listingStatus, soldTo    string
	)

	err := row.Scan(&r.PropertyID, &r.Address, &r.State, &r.Zone,
		&auctionDate, &r.OpeningBid, &r.EstMarketValue, &r.FinalBid, &r.Surplus,
		&listingStatus, &soldTo, &listingAsOf, &outcomeAsOf, &r.LastUpdated)
	if err != nil {
		return nil, err
	}

	r.AuctionDate = auctionDate
	r.ListingStatus = model.ListingStatus(listingStatus)
	r.SoldTo = model.BuyerType(soldTo)
	if listingAsOf != nil {
		r.ListingAsOf = *listingAsOf
	}
	if outcomeAsOf != nil {
		r.OutcomeAsOf = *outcomeAsOf
	}
	return &r, nil
}
