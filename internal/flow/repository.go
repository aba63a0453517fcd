package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/moneyflow/internal/contracts"
)

// ErrNoSnapshots is returned when history is empty
var ErrNoSnapshots = errors.New("no snapshots stored")

// DefaultHistoryLimit is used when a non-positive limit is requested
const DefaultHistoryLimit = 20

const schemaSQL = `
	CREATE SCHEMA IF NOT EXISTS flow;

	CREATE TABLE IF NOT EXISTS flow.snapshots (
		id              BIGSERIAL PRIMARY KEY,
		generated_at    TIMESTAMPTZ NOT NULL,
		session_date    DATE,
		available       BOOLEAN NOT NULL,
		definition_hash TEXT NOT NULL,
		top_sectors     TEXT[] NOT NULL,
		watchlist       TEXT[] NOT NULL,
		payload         JSONB NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_generated_at
		ON flow.snapshots (generated_at DESC);
`

// Snapshot is one stored dashboard run
type Snapshot struct {
	ID             int64                `json:"id"`
	GeneratedAt    time.Time            `json:"generated_at"`
	SessionDate    *time.Time           `json:"session_date,omitempty"`
	Available      bool                 `json:"available"`
	DefinitionHash string               `json:"definition_hash"`
	TopSectors     []string             `json:"top_sectors"`
	Watchlist      []string             `json:"watchlist"`
	Dashboard      *contracts.Dashboard `json:"dashboard,omitempty"` // LatestSnapshot만 채움
}

// Repository stores dashboard snapshots
// ⭐ SSOT: 스냅샷 저장/조회는 여기서만 (파이프라인은 읽지 않음)
type Repository struct {
	pool           *pgxpool.Pool
	definitionHash string
}

// NewRepository creates a snapshot repository.
// definitionHash is stored with every snapshot (see Definition.Hash).
func NewRepository(pool *pgxpool.Pool, definitionHash string) *Repository {
	return &Repository{pool: pool, definitionHash: definitionHash}
}

// EnsureSchema creates the snapshot table if needed
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure snapshot schema: %w", err)
	}
	return nil
}

// SaveSnapshot stores a dashboard and returns its id
func (r *Repository) SaveSnapshot(ctx context.Context, d *contracts.Dashboard) (int64, error) {
	if d == nil {
		return 0, errors.New("nil dashboard")
	}

	payload, err := json.Marshal(d)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal dashboard: %w", err)
	}

	var sessionDate *time.Time
	if !d.Table.SessionDate.IsZero() {
		sd := d.Table.SessionDate
		sessionDate = &sd
	}

	query := `
		INSERT INTO flow.snapshots (
			generated_at, session_date, available, definition_hash,
			top_sectors, watchlist, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var id int64
	err = r.pool.QueryRow(ctx, query,
		d.GeneratedAt, sessionDate, d.Available, r.definitionHash,
		nonNil(d.TopLabels()), nonNil(d.Watchlist), payload,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save snapshot: %w", err)
	}

	return id, nil
}

// ListSnapshots returns the most recent snapshots without payload
func (r *Repository) ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	query := `
		SELECT id, generated_at, session_date, available, definition_hash,
		       top_sectors, watchlist
		FROM flow.snapshots
		ORDER BY generated_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]Snapshot, 0, limit)
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(
			&s.ID, &s.GeneratedAt, &s.SessionDate, &s.Available, &s.DefinitionHash,
			&s.TopSectors, &s.Watchlist,
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}

	return snapshots, nil
}

// LatestSnapshot returns the newest snapshot including its dashboard
func (r *Repository) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	query := `
		SELECT id, generated_at, session_date, available, definition_hash,
		       top_sectors, watchlist, payload
		FROM flow.snapshots
		ORDER BY generated_at DESC, id DESC
		LIMIT 1
	`

	var s Snapshot
	var payload []byte
	err := r.pool.QueryRow(ctx, query).Scan(
		&s.ID, &s.GeneratedAt, &s.SessionDate, &s.Available, &s.DefinitionHash,
		&s.TopSectors, &s.Watchlist, &payload,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSnapshots
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	var d contracts.Dashboard
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot payload: %w", err)
	}
	s.Dashboard = &d

	return &s, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// PruneSnapshots deletes snapshots generated before the cutoff
func (r *Repository) PruneSnapshots(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, "DELETE FROM flow.snapshots WHERE generated_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}
