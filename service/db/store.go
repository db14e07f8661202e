// Package db archives reconstructed transactions in Postgres.
package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/brojonat/rawtx/service/metrics"
	"github.com/brojonat/rawtx/service/txcodec"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when no archived reconstruction matches.
var ErrNotFound = errors.New("reconstruction not found")

const table = "reconstructions"

// Store provides database operations for the reconstruction archive.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given connection pool.
// If m is nil, no metrics are recorded.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{
		pool:    pool,
		metrics: m,
	}
}

// Reconstruction is an archived raw transaction.
type Reconstruction struct {
	Signature             string
	Network               string
	RawTransaction        []byte
	MessageVersion        string // "legacy" or the version number
	NumSignatures         int
	NumRequiredSignatures int
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// SaveReconstructionParams contains the fields written by SaveReconstruction.
type SaveReconstructionParams struct {
	Signature             string
	Network               string
	RawTransaction        []byte
	MessageVersion        string
	NumSignatures         int
	NumRequiredSignatures int
}

// ListReconstructionsParams contains pagination parameters.
type ListReconstructionsParams struct {
	Network string
	Limit   int32
	Offset  int32
}

// NewSaveParams derives the archive row for raw, which must be a serialized transaction.
func NewSaveParams(signature, network string, raw []byte) (SaveReconstructionParams, error) {
	tx, err := txcodec.Deserialize(raw)
	if err != nil {
		return SaveReconstructionParams{}, fmt.Errorf("inspect raw transaction: %w", err)
	}
	return SaveReconstructionParams{
		Signature:             signature,
		Network:               network,
		RawTransaction:        raw,
		MessageVersion:        tx.Message.Version.String(),
		NumSignatures:         len(tx.Signatures),
		NumRequiredSignatures: int(tx.Message.Header.NumRequiredSignatures),
	}, nil
}

// EnsureSchema creates the archive table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const saveReconstruction = `
INSERT INTO reconstructions (
    signature, network, raw_transaction, message_version, num_signatures, num_required_signatures
) VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (signature, network) DO UPDATE SET
    raw_transaction = EXCLUDED.raw_transaction,
    message_version = EXCLUDED.message_version,
    num_signatures = EXCLUDED.num_signatures,
    num_required_signatures = EXCLUDED.num_required_signatures,
    updated_at = now()
RETURNING signature, network, raw_transaction, message_version, num_signatures, num_required_signatures, created_at, updated_at`

// SaveReconstruction inserts or refreshes an archived reconstruction.
func (s *Store) SaveReconstruction(ctx context.Context, params SaveReconstructionParams) (*Reconstruction, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx, saveReconstruction,
		params.Signature,
		params.Network,
		params.RawTransaction,
		params.MessageVersion,
		int32(params.NumSignatures),
		int32(params.NumRequiredSignatures),
	)
	r, err := scanReconstruction(row)
	s.record("upsert", start, err)
	if err != nil {
		return nil, err
	}
	return r, nil
}

const getReconstruction = `
SELECT signature, network, raw_transaction, message_version, num_signatures, num_required_signatures, created_at, updated_at
FROM reconstructions
WHERE signature = $1 AND network = $2`

// GetReconstruction retrieves an archived reconstruction by signature and network.
func (s *Store) GetReconstruction(ctx context.Context, signature, network string) (*Reconstruction, error) {
	start := time.Now()
	r, err := scanReconstruction(s.pool.QueryRow(ctx, getReconstruction, signature, network))
	s.record("select", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

const listReconstructions = `
SELECT signature, network, raw_transaction, message_version, num_signatures, num_required_signatures, created_at, updated_at
FROM reconstructions
WHERE network = $1
ORDER BY created_at DESC, signature
LIMIT $2 OFFSET $3`

// ListReconstructions returns archived reconstructions for a network, newest first.
func (s *Store) ListReconstructions(ctx context.Context, params ListReconstructionsParams) ([]*Reconstruction, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, listReconstructions, params.Network, params.Limit, params.Offset)
	if err != nil {
		s.record("list", start, err)
		return nil, err
	}
	defer rows.Close()

	out := []*Reconstruction{}
	for rows.Next() {
		r, err := scanReconstruction(rows)
		if err != nil {
			s.record("list", start, err)
			return nil, err
		}
		out = append(out, r)
	}
	err = rows.Err()
	s.record("list", start, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteReconstruction removes an archived reconstruction.
func (s *Store) DeleteReconstruction(ctx context.Context, signature, network string) error {
	start := time.Now()
	tag, err := s.pool.Exec(ctx, `DELETE FROM reconstructions WHERE signature = $1 AND network = $2`, signature, network)
	s.record("delete", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) record(operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
	}
	s.metrics.RecordDBQuery(operation, table, time.Since(start).Seconds(), err)
}

func scanReconstruction(row pgx.Row) (*Reconstruction, error) {
	var (
		r                    Reconstruction
		numSigs, numRequired int32
		createdAt, updatedAt pgtype.Timestamptz
	)
	err := row.Scan(
		&r.Signature,
		&r.Network,
		&r.RawTransaction,
		&r.MessageVersion,
		&numSigs,
		&numRequired,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.NumSignatures = int(numSigs)
	r.NumRequiredSignatures = int(numRequired)
	r.CreatedAt = createdAt.Time
	r.UpdatedAt = updatedAt.Time
	return &r, nil
}
