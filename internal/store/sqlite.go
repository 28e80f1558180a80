package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/nsyte-agents/auction-sync/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS reconciled_rows (
	property_id      TEXT PRIMARY KEY,
	address          TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL DEFAULT '',
	zone             TEXT NOT NULL DEFAULT '',
	auction_date     DATETIME,
	opening_bid      INTEGER,
	est_market_value INTEGER,
	final_bid        INTEGER,
	surplus          INTEGER,
	listing_status   TEXT NOT NULL DEFAULT 'unknown',
	sold_to          TEXT NOT NULL DEFAULT 'unsold',
	listing_as_of    DATETIME,
	outcome_as_of    DATETIME,
	last_updated     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS processed_messages (
	message_id   TEXT PRIMARY KEY,
	processed_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME,
	ingested    INTEGER NOT NULL DEFAULT 0,
	rejected    INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_kind ON sync_runs(kind, started_at);
CREATE INDEX IF NOT EXISTS idx_rows_zone ON reconciled_rows(zone);
CREATE INDEX IF NOT EXISTS idx_rows_state ON reconciled_rows(state);
CREATE INDEX IF NOT EXISTS idx_rows_sold_to ON reconciled_rows(sold_to);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteUpsertRow = `
INSERT INTO reconciled_rows (
	property_id, address, state, zone, auction_date, opening_bid,
	est_market_value, final_bid, surplus, listing_status, sold_to,
	listing_as_of, outcome_as_of, last_updated
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(property_id) DO UPDATE SET
	address          = excluded.address,
	state            = excluded.state,
	zone             = excluded.zone,
	auction_date     = excluded.auction_date,
	opening_bid      = excluded.opening_bid,
	est_market_value = excluded.est_market_value,
	final_bid        = excluded.final_bid,
	surplus          = excluded.surplus,
	listing_status   = excluded.listing_status,
	sold_to          = excluded.sold_to,
	listing_as_of    = excluded.listing_as_of,
	outcome_as_of    = excluded.outcome_as_of,
	last_updated     = excluded.last_updated`

func (s *SQLiteStore) UpsertRows(ctx context.Context, rows []model.ReconciledRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertRow)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, r := range rows {
		_, err := stmt.ExecContext(ctx,
			r.PropertyID, r.Address, r.State, r.Zone,
			nullTime(r.AuctionDate), nullCents(r.OpeningBid),
			nullCents(r.EstMarketValue), nullCents(r.FinalBid), nullCents(r.Surplus),
			string(r.ListingStatus), string(r.SoldTo),
			zeroTimeNull(r.ListingAsOf), zeroTimeNull(r.OutcomeAsOf), r.LastUpdated.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert row %s", r.PropertyID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit upsert")
}

const sqliteSelectRow = `
SELECT property_id, address, state, zone, auction_date, opening_bid,
       est_market_value, final_bid, surplus, listing_status, sold_to,
       listing_as_of, outcome_as_of, last_updated
FROM reconciled_rows`

func (s *SQLiteStore) GetRow(ctx context.Context, propertyID string) (*model.ReconciledRow, error) {
	row := s.db.QueryRowContext(ctx, sqliteSelectRow+` WHERE property_id = ?`, propertyID)
	r, err := scanRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get row %s", propertyID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRows(ctx context.Context, filter RowFilter) ([]model.ReconciledRow, error) {
	query := sqliteSelectRow + ` WHERE 1=1`
	var args []any

	if filter.Zone != "" {
		query += ` AND zone = ?`
		args = append(args, filter.Zone)
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, filter.State)
	}
	if filter.SoldTo != "" {
		query += ` AND sold_to = ?`
		args = append(args, string(filter.SoldTo))
	}
	query += ` ORDER BY property_id ASC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list rows")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ReconciledRow
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan row")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list rows iterate")
}

func (s *SQLiteStore) CountRows(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reconciled_rows`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count rows")
}

func (s *SQLiteStore) MessageProcessed(ctx context.Context, messageID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_messages WHERE message_id = ?`, messageID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: message processed %s", messageID)
	}
	return true, nil
}

func (s *SQLiteStore) MarkMessageProcessed(ctx context.Context, messageID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO processed_messages (message_id, processed_at) VALUES (?, ?)
		 ON CONFLICT(message_id) DO NOTHING`,
		messageID, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: mark message processed %s", messageID)
}

func (s *SQLiteStore) StartRun(ctx context.Context, kind model.RunKind) (*model.SyncRun, error) {
	run := &model.SyncRun{
		ID:        uuid.New().String(),
		Kind:      kind,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, kind, started_at) VALUES (?, ?, ?)`,
		run.ID, string(run.Kind), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: start run")
	}
	return run, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, ingested, rejected int, runErr error) error {
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_runs SET finished_at = ?, ingested = ?, rejected = ?, error = ? WHERE id = ?`,
		time.Now().UTC(), ingested, rejected, errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: run not found: %s", runID)
	}
	return nil
}

func (s *SQLiteStore) LastRun(ctx context.Context, kind model.RunKind) (*model.SyncRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, started_at, finished_at, ingested, rejected, error
		 FROM sync_runs WHERE kind = ? ORDER BY started_at DESC LIMIT 1`,
		string(kind),
	)
	var (
		run      model.SyncRun
		kindStr  string
		finished sql.NullTime
	)
	err := row.Scan(&run.ID, &kindStr, &run.StartedAt, &finished,
		&run.Ingested, &run.Rejected, &run.Error)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: last run")
	}
	run.Kind = model.RunKind(kindStr)
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

// helpers

func nullCents(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func zeroTimeNull(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRow(row scannable) (*model.ReconciledRow, error) {
	var (
		r                            model.ReconciledRow
		auctionDate                  sql.NullTime
		opening, estValue            sql.NullInt64
		finalBid, surplus            sql.NullInt64
		listingStatus, soldTo        string
		listingAsOf, outcomeAsOf     sql.NullTime
	)

	err := row.Scan(&r.PropertyID, &r.Address, &r.State, &r.Zone,
		&auctionDate, &opening, &estValue, &finalBid, &surplus,
		&listingStatus, &soldTo, &listingAsOf, &outcomeAsOf, &r.LastUpdated)
	if err != nil {
		return nil, err
	}

	if auctionDate.Valid {
		t := auctionDate.Time
		r.AuctionDate = &t
	}
	r.OpeningBid = centsPtr(opening)
	r.EstMarketValue = centsPtr(estValue)
	r.FinalBid = centsPtr(finalBid)
	r.Surplus = centsPtr(surplus)
	r.ListingStatus = model.ListingStatus(strings.TrimSpace(listingStatus))
	r.SoldTo = model.BuyerType(strings.TrimSpace(soldTo))
	if listingAsOf.Valid {
		r.ListingAsOf = listingAsOf.Time
	}
	if outcomeAsOf.Valid {
		r.OutcomeAsOf = outcomeAsOf.Time
	}
	return &r, nil
}

func centsPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
