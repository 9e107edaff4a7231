// Package files is the uploaded-file registry. It records metadata only;
// bytes live on disk under a per-deployment uploads directory with a
// generated stored name so an original name can never traverse paths.
package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"clearbill.io/internal/fault"
	"clearbill.io/internal/scope"
)

// Statuses of a registered file as it moves through import.
const (
	StatusUploaded  = "Uploaded"
	StatusProcessed = "Processed"
	StatusFailed    = "Failed"
)

// Record is one registered file.
type Record struct {
	ID           int64  `json:"id"`
	TenantID     int64  `json:"tenant_id"`
	StoredName   string `json:"stored_name"`
	OriginalName string `json:"original_name"`
	ContentType  string `json:"content_type"`
	SizeBytes    int64  `json:"size_bytes"`
	Category     string `json:"category"`
	Description  string `json:"description"`
	Status       string `json:"status"`
	RowCount     int64  `json:"row_count"`
	UploadedBy   string `json:"uploaded_by"`
	CreatedAt    string `json:"created_at"`
}

// Registry stores file records.
type Registry struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures the registry.
type Option func(*Registry)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(r *Registry) {
		if fn != nil {
			r.now = fn
		}
	}
}

// New constructs the registry over an open store handle.
func New(db *sql.DB, opts ...Option) *Registry {
	r := &Registry{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StoredName generates the on-disk name for an upload, keeping only the
// original extension.
func StoredName(originalName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	return uuid.NewString() + ext
}

// Register records an uploaded file. A missing stored name is generated from
// the original name; status defaults to Uploaded.
func (r *Registry) Register(ctx context.Context, rec Record) (Record, error) {
	if rec.TenantID <= 0 {
		return Record{}, fault.Invalid("tenant_id is required")
	}
	if strings.TrimSpace(rec.OriginalName) == "" {
		return Record{}, fault.Invalid("original_name is required")
	}
	if rec.StoredName == "" {
		rec.StoredName = StoredName(rec.OriginalName)
	}
	if rec.Status == "" {
		rec.Status = StatusUploaded
	}
	rec.CreatedAt = r.now().UTC().Format(time.RFC3339)
	res, err := r.db.ExecContext(ctx, `
		insert into files(tenant_id, stored_name, original_name, content_type, size_bytes,
			category, description, status, row_count, uploaded_by, created_at)
		values(?,?,?,?,?,?,?,?,?,?,?)`,
		rec.TenantID, rec.StoredName, rec.OriginalName, rec.ContentType, rec.SizeBytes,
		rec.Category, rec.Description, rec.Status, rec.RowCount, rec.UploadedBy, rec.CreatedAt)
	if err != nil {
		return Record{}, fault.Store(err)
	}
	if rec.ID, err = res.LastInsertId(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Get returns one record by id.
func (r *Registry) Get(ctx context.Context, id int64) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		select id, tenant_id, stored_name, original_name, content_type, size_bytes,
			category, description, status, row_count, uploaded_by, created_at
		from files where id = ?`, id)
	var rec Record
	err := row.Scan(&rec.ID, &rec.TenantID, &rec.StoredName, &rec.OriginalName, &rec.ContentType,
		&rec.SizeBytes, &rec.Category, &rec.Description, &rec.Status, &rec.RowCount,
		&rec.UploadedBy, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: file %d", fault.ErrNotFound, id)
	}
	if err != nil {
		return Record{}, fault.Store(err)
	}
	return rec, nil
}

// List returns records in scope, newest first.
func (r *Registry) List(ctx context.Context, sc scope.Scope) ([]Record, error) {
	conds := []string{}
	args := []any{}
	conds, args = sc.Where(conds, args, "tenant_id")
	query := `select id, tenant_id, stored_name, original_name, content_type, size_bytes,
		category, description, status, row_count, uploaded_by, created_at from files`
	if len(conds) > 0 {
		query += " where " + strings.Join(conds, " and ")
	}
	query += " order by created_at desc, id desc"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fault.Store(err)
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.StoredName, &rec.OriginalName,
			&rec.ContentType, &rec.SizeBytes, &rec.Category, &rec.Description, &rec.Status,
			&rec.RowCount, &rec.UploadedBy, &rec.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// MarkProcessed records the outcome of an import pass over the file.
func (r *Registry) MarkProcessed(ctx context.Context, id int64, rowCount int64, failed bool) error {
	status := StatusProcessed
	if failed {
		status = StatusFailed
	}
	if _, err := r.db.ExecContext(ctx,
		`update files set status = ?, row_count = ? where id = ?`, status, rowCount, id); err != nil {
		return fault.Store(err)
	}
	return nil
}

// Delete removes a record. Missing ids are not an error; on-disk bytes are
// the caller's to remove.
func (r *Registry) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `delete from files where id = ?`, id); err != nil {
		return fault.Store(err)
	}
	return nil
}
