package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrCorruptIndex is returned when persisted index artifacts disagree with each other.
var ErrCorruptIndex = errors.New("corrupt index artifacts")

// IndexStore persists per-tenant ANN graphs together with their record arrays.
type IndexStore interface {
	// Save replaces the tenant's artifacts in a single transaction.
	Save(ctx context.Context, artifacts *IndexArtifacts) error
	// Load returns the tenant's artifacts with records ordered by vector ID.
	// Returns ErrNotFound if the tenant has no index and ErrCorruptIndex if
	// the records do not line up with the stored count.
	Load(ctx context.Context, tenantID string) (*IndexArtifacts, error)
	// Delete removes the tenant's artifacts. Deleting a missing index is not an error.
	Delete(ctx context.Context, tenantID string) error
}

// IndexRepo stores index artifacts in SQLite.
// It implements the IndexStore interface.
type IndexRepo struct {
	db *sql.DB
}

// NewIndexRepo creates a new IndexRepo.
func NewIndexRepo(db *sql.DB) *IndexRepo {
	return &IndexRepo{db: db}
}

// Save writes the graph blob and every record, or nothing at all.
func (r *IndexRepo) Save(ctx context.Context, artifacts *IndexArtifacts) (err error) {
	for i, rec := range artifacts.Records {
		if rec.VectorID != i {
			return fmt.Errorf("%w: record %d has vector id %d", ErrCorruptIndex, i, rec.VectorID)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM vector_records WHERE tenant_id = ?", artifacts.TenantID); err != nil {
		return fmt.Errorf("failed to clear vector records: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tenant_indexes (tenant_id, schema_version, dimensions, record_count, graph, built_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id) DO UPDATE SET
		 schema_version = excluded.schema_version, dimensions = excluded.dimensions,
		 record_count = excluded.record_count, graph = excluded.graph, built_at = excluded.built_at`,
		artifacts.TenantID, artifacts.SchemaVersion, artifacts.Dimensions, len(artifacts.Records),
		artifacts.Graph, formatTime(artifacts.BuiltAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert tenant index: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO vector_records (tenant_id, vector_id, note_id, user_id, chunk_text, created_at, tags)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, rec := range artifacts.Records {
		var tags string
		tags, err = encodeTags(rec.Tags)
		if err != nil {
			return err
		}
		if _, err = stmt.ExecContext(ctx, artifacts.TenantID, rec.VectorID, rec.NoteID, rec.UserID,
			rec.ChunkText, formatTime(rec.CreatedAt), tags); err != nil {
			return fmt.Errorf("failed to insert vector record %d: %w", rec.VectorID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index: %w", err)
	}
	return nil
}

// Load reads a tenant's artifacts and checks that the records are contiguous.
func (r *IndexRepo) Load(ctx context.Context, tenantID string) (*IndexArtifacts, error) {
	artifacts := &IndexArtifacts{TenantID: tenantID}
	var (
		count   int
		builtAt string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT schema_version, dimensions, record_count, graph, built_at FROM tenant_indexes WHERE tenant_id = ?",
		tenantID,
	).Scan(&artifacts.SchemaVersion, &artifacts.Dimensions, &count, &artifacts.Graph, &builtAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tenant index: %w", err)
	}
	if artifacts.BuiltAt, err = parseTime(builtAt); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT vector_id, note_id, user_id, chunk_text, created_at, tags
		 FROM vector_records WHERE tenant_id = ? ORDER BY vector_id`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector records: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	artifacts.Records = make([]VectorRecord, 0, count)
	for rows.Next() {
		rec := VectorRecord{TenantID: tenantID}
		var createdAt, tags string
		if err := rows.Scan(&rec.VectorID, &rec.NoteID, &rec.UserID, &rec.ChunkText, &createdAt, &tags); err != nil {
			return nil, fmt.Errorf("failed to scan vector record: %w", err)
		}
		if rec.VectorID != len(artifacts.Records) {
			return nil, fmt.Errorf("%w: expected vector id %d, got %d", ErrCorruptIndex, len(artifacts.Records), rec.VectorID)
		}
		if rec.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if rec.Tags, err = decodeTags(tags); err != nil {
			return nil, err
		}
		artifacts.Records = append(artifacts.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	if len(artifacts.Records) != count {
		return nil, fmt.Errorf("%w: expected %d records, got %d", ErrCorruptIndex, count, len(artifacts.Records))
	}
	return artifacts, nil
}

// Delete removes the graph and its records together.
func (r *IndexRepo) Delete(ctx context.Context, tenantID string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM vector_records WHERE tenant_id = ?", tenantID); err != nil {
		return fmt.Errorf("failed to delete vector records: %w", err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM tenant_indexes WHERE tenant_id = ?", tenantID); err != nil {
		return fmt.Errorf("failed to delete tenant index: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index deletion: %w", err)
	}
	return nil
}
