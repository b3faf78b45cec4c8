// Package catalog implements the tenant-scoped inventory entities.
//
// Every entity type is described by a Definition: its table, columns, the
// columns callers may write, filter and sort on, and how to scan a row. A
// generic Repository turns a Definition into CRUD queries that always filter
// on tenant_id and deleted_at, and a CachedService adds the audit trail and
// a Redis list cache on top.
//
// Usage:
//
//	services := catalog.NewCachedService(db, catalog.ServiceDefinition(), cache, auditWriter, metrics, time.Minute)
//	page, err := services.List(ctx, tenantID, catalog.ListParams{Page: 1, PerPage: 20})
//	created, err := services.Create(ctx, tenantID, userID, input.Values())
//
// Rows are never deleted; SoftDelete stamps deleted_at and the row disappears
// from every read.
package catalog
