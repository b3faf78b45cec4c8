package catalog

import (
	"reflect"
	"strings"

	"github.com/google/uuid"

	"github.com/platinummonkey/appr/pkg/audit"
	"github.com/platinummonkey/appr/pkg/storage"
)

// Values maps column names to values for inserts and updates
type Values map[string]interface{}

// Definition describes how one entity type maps onto its table. Column
// names in a Definition are trusted and interpolated into SQL, so they must
// never come from a request.
type Definition[T any] struct {
	Kind  audit.EntityKind
	Table string

	// Columns is the select list in Scan order
	Columns []string
	// Mutable is the allow-list applied to Create and Update values
	Mutable []string
	// Filterable columns accept exact-match list filters
	Filterable []string
	// Sortable columns may be named in ?sort=; created_at is always allowed
	Sortable []string
	// SearchColumn receives the ILIKE search; empty disables search
	SearchColumn string
	// UniqueField names the per-tenant natural key in conflict messages
	UniqueField string

	Scan     func(row storage.RowScanner) (*T, error)
	ID       func(*T) uuid.UUID
	Snapshot func(*T) map[string]interface{}
}

// Name is the entity's display name, e.g. "Service"
func (d *Definition[T]) Name() string {
	return d.Kind.TypeName()
}

func (d *Definition[T]) isMutable(column string) bool {
	return contains(d.Mutable, column)
}

// isNullable reports whether column is held in a pointer field of T. Pointer
// fields mirror the nullable columns of the table.
func (d *Definition[T]) isNullable(column string) bool {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous {
			continue
		}
		if strings.SplitN(f.Tag.Get("json"), ",", 2)[0] == column {
			return f.Type.Kind() == reflect.Pointer
		}
	}
	return false
}

// ClearNulls sets each named column to NULL when it is mutable and
// nullable. Explicit nulls on required columns are ignored, leaving the
// stored value in place.
func (d *Definition[T]) ClearNulls(values Values, columns []string) {
	for _, c := range columns {
		if d.isMutable(c) && d.isNullable(c) {
			values[c] = nil
		}
	}
}

func (d *Definition[T]) isFilterable(column string) bool {
	return contains(d.Filterable, column)
}

func (d *Definition[T]) sortColumn(requested string) string {
	if requested != "" && (requested == "created_at" || contains(d.Sortable, requested)) {
		return requested
	}
	return "created_at"
}

func (d *Definition[T]) snapshot(v *T) interface{} {
	if d.Snapshot == nil {
		return v
	}
	return d.Snapshot(v)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
