package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_note_store.go -package=mocks diary-assistant/internal/storage NoteStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

const noteColumns = "id, tenant_id, user_id, title, content, tags, created_at, updated_at"

// NoteStore defines the interface for note storage operations.
type NoteStore interface {
	// Create inserts a new note. An empty ID is replaced with a fresh UUID.
	Create(ctx context.Context, note *Note) error
	// Update replaces title, content and tags of an existing note.
	// Returns ErrNotFound if the note does not exist in the tenant.
	Update(ctx context.Context, note *Note) error
	// Delete removes a note. Returns ErrNotFound if it does not exist in the tenant.
	Delete(ctx context.Context, tenantID, id string) error
	// Get gets a note by tenant and ID.
	// Returns nil and ErrNotFound if not found.
	Get(ctx context.Context, tenantID, id string) (*Note, error)
	// ListByTenant returns every note of a tenant ordered by creation time, then ID.
	ListByTenant(ctx context.Context, tenantID string) ([]*Note, error)
	// List returns the notes matching filter ordered by creation time, then ID.
	List(ctx context.Context, filter NoteFilter) ([]*Note, error)
	// ListTenantIDs returns every tenant that owns at least one note.
	ListTenantIDs(ctx context.Context) ([]string, error)
}

// NoteRepo provides methods for note operations.
// It implements the NoteStore interface.
type NoteRepo struct {
	db *sql.DB
}

// NewNoteRepo creates a new NoteRepo.
func NewNoteRepo(db *sql.DB) *NoteRepo {
	return &NoteRepo{db: db}
}

// DB returns the underlying database connection.
func (r *NoteRepo) DB() *sql.DB {
	return r.db
}

// Create inserts a new note, filling in ID and timestamps when unset.
func (r *NoteRepo) Create(ctx context.Context, note *Note) error {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	if note.UpdatedAt.IsZero() {
		note.UpdatedAt = note.CreatedAt
	}

	tags, err := encodeTags(note.Tags)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO notes (id, tenant_id, user_id, title, content, tags, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		note.ID, note.TenantID, note.UserID, note.Title, note.Content, tags,
		formatTime(note.CreatedAt), formatTime(note.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}

	return nil
}

// Update replaces the mutable fields of a note and bumps updated_at.
func (r *NoteRepo) Update(ctx context.Context, note *Note) error {
	tags, err := encodeTags(note.Tags)
	if err != nil {
		return err
	}
	note.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx,
		`UPDATE notes SET title = ?, content = ?, tags = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ?`,
		note.Title, note.Content, tags, formatTime(note.UpdatedAt), note.TenantID, note.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a note and, through the foreign key, its tasks.
func (r *NoteRepo) Delete(ctx context.Context, tenantID, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM notes WHERE tenant_id = ? AND id = ?", tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return expectAffected(res)
}

// Get gets a note by tenant and ID.
// Returns nil and ErrNotFound if not found.
func (r *NoteRepo) Get(ctx context.Context, tenantID, id string) (*Note, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+noteColumns+" FROM notes WHERE tenant_id = ? AND id = ?",
		tenantID, id,
	)
	note, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query note: %w", err)
	}
	return note, nil
}

// ListByTenant returns every note of a tenant in a stable order.
func (r *NoteRepo) ListByTenant(ctx context.Context, tenantID string) ([]*Note, error) {
	return r.List(ctx, NoteFilter{TenantID: tenantID})
}

// List returns the notes matching filter.
// Tags match with OR semantics; terms match title or content case-insensitively, also with OR semantics.
func (r *NoteRepo) List(ctx context.Context, filter NoteFilter) ([]*Note, error) {
	var (
		where strings.Builder
		args  []any
	)
	where.WriteString("tenant_id = ?")
	args = append(args, filter.TenantID)

	if filter.UserID != "" {
		where.WriteString(" AND user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Start != nil {
		where.WriteString(" AND created_at >= ?")
		args = append(args, formatTime(*filter.Start))
	}
	if filter.End != nil {
		where.WriteString(" AND created_at <= ?")
		args = append(args, formatTime(*filter.End))
	}
	if len(filter.Tags) > 0 {
		where.WriteString(" AND EXISTS (SELECT 1 FROM json_each(notes.tags) WHERE json_each.value IN (")
		where.WriteString(placeholders(len(filter.Tags)))
		where.WriteString("))")
		for _, tag := range filter.Tags {
			args = append(args, tag)
		}
	}
	if len(filter.Terms) > 0 {
		where.WriteString(" AND (")
		for i, term := range filter.Terms {
			if i > 0 {
				where.WriteString(" OR ")
			}
			where.WriteString(`LOWER(title) LIKE ? ESCAPE '\' OR LOWER(content) LIKE ? ESCAPE '\'`)
			pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
			args = append(args, pattern, pattern)
		}
		where.WriteString(")")
	}

	query := "SELECT " + noteColumns + " FROM notes WHERE " + where.String() + " ORDER BY created_at, id"
	switch {
	case filter.Limit > 0:
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	case filter.Offset > 0:
		query += " LIMIT -1 OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var notes []*Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return notes, nil
}

// ListTenantIDs returns every tenant that owns at least one note, sorted.
func (r *NoteRepo) ListTenantIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT tenant_id FROM notes ORDER BY tenant_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query tenants: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var tenants []string
	for rows.Next() {
		var tenantID string
		if err := rows.Scan(&tenantID); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, tenantID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tenants, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*Note, error) {
	var (
		note                 Note
		tags                 string
		createdAt, updatedAt string
	)
	if err := row.Scan(&note.ID, &note.TenantID, &note.UserID, &note.Title, &note.Content, &tags, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if note.Tags, err = decodeTags(tags); err != nil {
		return nil, err
	}
	if note.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if note.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &note, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
