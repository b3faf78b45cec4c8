// Package audit records immutable audit events and serves them back.
//
// # Writing
//
// Writer.Log inserts one audit_logs row through the caller's transaction so
// the event commits or rolls back together with the mutation it describes.
// The client IP, user agent and request ID are taken from the request
// context:
//
//	err := storage.WithTx(ctx, db, func(tx *sql.Tx) error {
//		// ... mutate ...
//		return writer.Log(ctx, tx, audit.Entry{
//			TenantID:  tenantID,
//			EventType: audit.MutationEvent(audit.KindService, audit.ActionUpdated),
//			ActorID:   &userID,
//			Entity:    &audit.EntityRef{Kind: audit.KindService, ID: id},
//			Before:    before,
//			After:     after,
//		})
//	})
//	if err == nil {
//		writer.Committed(audit.MutationEvent(audit.KindService, audit.ActionUpdated))
//	}
//
// Committed feeds the audit events metric, so rolled back events are never
// counted.
//
// # Reading
//
// Store.List filters by entity, actor, event type and date range, newest
// first. Exporter writes one NDJSON object per tenant and day to object
// storage for long-term retention.
package audit
