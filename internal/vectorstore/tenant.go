package vectorstore

import (
	"fmt"
	"time"

	"diary-assistant/internal/storage"
)

// SchemaVersion identifies the layout of persisted graph blobs and records.
// Artifacts written with any other version are rejected on load.
const SchemaVersion = 1

// TenantIndex pairs a tenant's ANN index with the records parallel to its vector IDs.
// It is immutable once constructed.
type TenantIndex struct {
	tenantID string
	index    Index
	records  []storage.VectorRecord
	builtAt  time.Time
}

// NewTenantIndex pairs index with records. Record i must describe vector i.
func NewTenantIndex(tenantID string, index Index, records []storage.VectorRecord, builtAt time.Time) (*TenantIndex, error) {
	if index.Len() != len(records) {
		return nil, fmt.Errorf("%w: index has %d vectors, %d records", ErrCorruptIndex, index.Len(), len(records))
	}
	for i, rec := range records {
		if rec.VectorID != i {
			return nil, fmt.Errorf("%w: record %d has vector id %d", ErrCorruptIndex, i, rec.VectorID)
		}
	}
	return &TenantIndex{
		tenantID: tenantID,
		index:    index,
		records:  records,
		builtAt:  builtAt,
	}, nil
}

// TenantID returns the owning tenant.
func (t *TenantIndex) TenantID() string { return t.tenantID }

// Len returns the number of indexed chunks.
func (t *TenantIndex) Len() int { return len(t.records) }

// BuiltAt returns when the index was built.
func (t *TenantIndex) BuiltAt() time.Time { return t.builtAt }

// Record returns the record for a vector ID.
func (t *TenantIndex) Record(id int) (storage.VectorRecord, bool) {
	if id < 0 || id >= len(t.records) {
		return storage.VectorRecord{}, false
	}
	return t.records[id], true
}

// Search returns up to k neighbors of query, capped at the index size.
func (t *TenantIndex) Search(query []float32, k int) ([]Neighbor, error) {
	if k > len(t.records) {
		k = len(t.records)
	}
	return t.index.Search(query, k)
}

// artifacts converts the index into its persisted form.
func (t *TenantIndex) artifacts() (*storage.IndexArtifacts, error) {
	graph, err := t.index.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &storage.IndexArtifacts{
		TenantID:      t.tenantID,
		SchemaVersion: SchemaVersion,
		Dimensions:    t.index.Dimensions(),
		Graph:         graph,
		Records:       t.records,
		BuiltAt:       t.builtAt,
	}, nil
}

// tenantIndexFromArtifacts restores a persisted index.
func tenantIndexFromArtifacts(a *storage.IndexArtifacts) (*TenantIndex, error) {
	if a.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: schema version %d, want %d", ErrCorruptIndex, a.SchemaVersion, SchemaVersion)
	}
	index, err := LoadHNSWIndex(a.Graph, a.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	return NewTenantIndex(a.TenantID, index, a.Records, a.BuiltAt)
}
