package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/appr/pkg/apperrors"
	"github.com/platinummonkey/appr/pkg/observability"
	"github.com/platinummonkey/appr/pkg/storage"
	"github.com/platinummonkey/appr/pkg/storage/postgres"
)

var tracer = otel.Tracer("github.com/platinummonkey/appr/pkg/catalog")

const (
	DefaultPerPage = 20
	MaxPerPage     = 500
	MaxPage        = 1000000
)

// ListParams selects one page of a list
type ListParams struct {
	Page    int
	PerPage int
	Search  string
	Sort    string
	Order   string
	Filters map[string]interface{}
}

// Offset returns the number of rows to skip
func (p ListParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}

func (p ListParams) normalize() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	if p.Order != "desc" {
		p.Order = "asc"
	}
	return p
}

// Repository runs tenant-scoped CRUD for one entity type
type Repository[T any] struct {
	def *Definition[T]
	db  storage.DBTX
}

// NewRepository creates a repository for def
func NewRepository[T any](def *Definition[T], db storage.DBTX) *Repository[T] {
	return &Repository[T]{def: def, db: db}
}

// WithTx returns a copy of the repository that runs on q
func (r *Repository[T]) WithTx(q storage.DBTX) *Repository[T] {
	return &Repository[T]{def: r.def, db: q}
}

// Definition returns the entity definition
func (r *Repository[T]) Definition() *Definition[T] {
	return r.def
}

func (r *Repository[T]) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "catalog."+op,
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.sql.table", r.def.Table),
			attribute.String("appr.entity_type", string(r.def.Kind)),
		),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (r *Repository[T]) selectList() string {
	return strings.Join(r.def.Columns, ", ")
}

// Get returns the live entity or nil when it does not exist in the tenant
func (r *Repository[T]) Get(ctx context.Context, tenantID, id uuid.UUID) (_ *T, err error) {
	ctx, span := r.startSpan(ctx, "Get")
	defer func() { endSpan(span, err) }()

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL",
		r.selectList(), r.def.Table)
	entity, err := r.def.Scan(r.db.QueryRowContext(ctx, query, id, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", r.def.Kind, err)
	}
	return entity, nil
}

// GetOr404 is Get with a NotFound error instead of nil
func (r *Repository[T]) GetOr404(ctx context.Context, tenantID, id uuid.UUID) (*T, error) {
	entity, err := r.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, apperrors.EntityNotFound(r.def.Name(), id)
	}
	return entity, nil
}

func (r *Repository[T]) where(tenantID uuid.UUID, p ListParams) (string, []interface{}) {
	clauses := []string{"tenant_id = $1", "deleted_at IS NULL"}
	args := []interface{}{tenantID}

	if p.Search != "" && r.def.SearchColumn != "" {
		args = append(args, "%"+p.Search+"%")
		clauses = append(clauses, fmt.Sprintf("%s ILIKE $%d", r.def.SearchColumn, len(args)))
	}

	keys := make([]string, 0, len(p.Filters))
	for k := range p.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := p.Filters[k]
		if v == nil || !r.def.isFilterable(k) {
			continue
		}
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", k, len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

// List returns one page of live entities and the total matching count
func (r *Repository[T]) List(ctx context.Context, tenantID uuid.UUID, p ListParams) (_ []*T, _ int, err error) {
	ctx, span := r.startSpan(ctx, "List")
	defer func() { endSpan(span, err) }()

	p = p.normalize()
	where, args := r.where(tenantID, p)

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", r.def.Table, where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", r.def.Table, err)
	}

	n := len(args)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		r.selectList(), r.def.Table, where, r.def.sortColumn(p.Sort), strings.ToUpper(p.Order), n+1, n+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, p.PerPage, p.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list %s: %w", r.def.Table, err)
	}
	defer rows.Close()

	items := make([]*T, 0, p.PerPage)
	for rows.Next() {
		entity, err := r.def.Scan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan %s: %w", r.def.Kind, err)
		}
		items = append(items, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list %s: %w", r.def.Table, err)
	}
	span.SetAttributes(attribute.Int("appr.result_count", len(items)))
	return items, total, nil
}

// allowed drops keys outside the definition's allow-list and returns the
// remaining columns in a stable order
func (r *Repository[T]) allowed(values Values) []string {
	columns := make([]string, 0, len(values))
	for k := range values {
		if r.def.isMutable(k) {
			columns = append(columns, k)
		}
	}
	sort.Strings(columns)
	return columns
}

func (r *Repository[T]) conflict(ctx context.Context, values Values, err error) error {
	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"table":      r.def.Table,
		"constraint": postgres.ConstraintName(err),
	}).Warn("unique constraint violated")
	if v, ok := values[r.def.UniqueField]; ok && r.def.UniqueField != "" {
		return apperrors.Conflict(fmt.Sprintf("%s with %s '%v' already exists", r.def.Name(), r.def.UniqueField, deref(v)), err)
	}
	return apperrors.Conflict(fmt.Sprintf("%s already exists", r.def.Name()), err)
}

// Create inserts a new entity owned by tenantID
func (r *Repository[T]) Create(ctx context.Context, tenantID uuid.UUID, values Values, createdBy *uuid.UUID) (_ *T, err error) {
	ctx, span := r.startSpan(ctx, "Create")
	defer func() { endSpan(span, err) }()

	columns := []string{"tenant_id", "created_by", "updated_by"}
	args := []interface{}{tenantID, createdBy, createdBy}
	for _, c := range r.allowed(values) {
		columns = append(columns, c)
		args = append(args, values[c])
	}
	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		r.def.Table, strings.Join(columns, ", "), strings.Join(placeholders, ", "), r.selectList())
	entity, err := r.def.Scan(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, r.conflict(ctx, values, err)
		}
		return nil, fmt.Errorf("failed to create %s: %w", r.def.Kind, err)
	}
	return entity, nil
}

// Update applies the allow-listed values to a live entity. Unknown keys are
// ignored; updated_by and updated_at are always stamped.
func (r *Repository[T]) Update(ctx context.Context, tenantID, id uuid.UUID, values Values, updatedBy *uuid.UUID) (_ *T, err error) {
	ctx, span := r.startSpan(ctx, "Update")
	defer func() { endSpan(span, err) }()

	setClauses := []string{"updated_by = $3", "updated_at = NOW()"}
	args := []interface{}{id, tenantID, updatedBy}
	for _, c := range r.allowed(values) {
		args = append(args, values[c])
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", c, len(args)))
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL RETURNING %s",
		r.def.Table, strings.Join(setClauses, ", "), r.selectList())
	entity, err := r.def.Scan(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.EntityNotFound(r.def.Name(), id)
	}
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, r.conflict(ctx, values, err)
		}
		return nil, fmt.Errorf("failed to update %s: %w", r.def.Kind, err)
	}
	return entity, nil
}

// SoftDelete hides a live entity from every subsequent read
func (r *Repository[T]) SoftDelete(ctx context.Context, tenantID, id uuid.UUID, deletedBy *uuid.UUID) (err error) {
	ctx, span := r.startSpan(ctx, "SoftDelete")
	defer func() { endSpan(span, err) }()

	query := fmt.Sprintf("UPDATE %s SET deleted_at = NOW(), updated_by = $3 WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL",
		r.def.Table)
	result, err := r.db.ExecContext(ctx, query, id, tenantID, deletedBy)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", r.def.Kind, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", r.def.Kind, err)
	}
	if n == 0 {
		return apperrors.EntityNotFound(r.def.Name(), id)
	}
	return nil
}

func deref(v interface{}) interface{} {
	switch p := v.(type) {
	case *string:
		if p != nil {
			return *p
		}
	}
	return v
}
