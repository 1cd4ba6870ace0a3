package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/seenimoa/navcompare/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS index_fund_snapshots (
	id           UUID PRIMARY KEY,
	generated_at TIMESTAMPTZ NOT NULL,
	source       TEXT NOT NULL DEFAULT '',
	fund_count   INTEGER NOT NULL,
	funds        JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS index_fund_snapshots_generated_at_idx
	ON index_fund_snapshots (generated_at DESC);
`

// PostgresStore keeps every snapshot as a row with the fund list in JSONB.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects, verifies the connection and creates the table.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres store: empty DSN")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate snapshots table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) Save(ctx context.Context, snap *models.Snapshot) error {
	ensureID(snap)

	funds, err := json.Marshal(snap.Funds)
	if err != nil {
		return fmt.Errorf("encode funds: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO index_fund_snapshots (id, generated_at, source, fund_count, funds)
		VALUES ($1, $2, $3, $4, $5)
	`, snap.ID, snap.GeneratedAt, snap.Source, snap.Count, funds)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) Latest(ctx context.Context) (*models.Snapshot, error) {
	var (
		snap  models.Snapshot
		funds []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, generated_at, source, fund_count, funds
		FROM index_fund_snapshots
		ORDER BY generated_at DESC
		LIMIT 1
	`).Scan(&snap.ID, &snap.GeneratedAt, &snap.Source, &snap.Count, &funds)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}

	if err := json.Unmarshal(funds, &snap.Funds); err != nil {
		return nil, fmt.Errorf("decode funds: %w", err)
	}
	return &snap, nil
}

// Lookup filters the latest snapshot's funds inside the database.
func (s *PostgresStore) Lookup(ctx context.Context, isins []string) ([]models.IndexFundRecord, error) {
	set := isinSet(isins)
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT f
		FROM (
			SELECT funds FROM index_fund_snapshots
			ORDER BY generated_at DESC
			LIMIT 1
		) latest, jsonb_array_elements(latest.funds) AS f
		WHERE upper(f->>'isin') = ANY($1)
	`, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("lookup funds: %w", err)
	}
	defer rows.Close()

	var out []models.IndexFundRecord
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan fund: %w", err)
		}
		var rec models.IndexFundRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode fund: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
