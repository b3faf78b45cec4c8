package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/appr/pkg/observability"
	"github.com/platinummonkey/appr/pkg/storage"
)

// NDJSONContentType is the content type of exported objects
const NDJSONContentType = "application/x-ndjson"

// ExportResult summarizes one export run
type ExportResult struct {
	Day     time.Time
	Tenants int
	Records int
	Keys    []string
}

// Exporter copies a day of audit logs per tenant to object storage
type Exporter struct {
	store   *Store
	objects storage.ObjectStore
	prefix  string
}

// NewExporter creates an exporter writing under prefix
func NewExporter(store *Store, objects storage.ObjectStore, prefix string) *Exporter {
	return &Exporter{store: store, objects: objects, prefix: prefix}
}

// ObjectKey returns {prefix}/{tenant}/{yyyy}/{mm}/{dd}.ndjson
func (e *Exporter) ObjectKey(tenantID uuid.UUID, day time.Time) string {
	day = day.UTC()
	return path.Join(e.prefix, tenantID.String(), day.Format("2006"), day.Format("01"), day.Format("02")+".ndjson")
}

// ExportDay uploads the UTC day containing day. Re-running a day
// overwrites the same keys.
func (e *Exporter) ExportDay(ctx context.Context, day time.Time) (*ExportResult, error) {
	day = day.UTC()
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	logger := observability.FromContext(ctx).WithField("day", from.Format("2006-01-02"))

	tenants, err := e.store.TenantsWithEvents(ctx, from, to)
	if err != nil {
		return nil, err
	}

	result := &ExportResult{Day: from}
	for _, tenantID := range tenants {
		records, err := e.store.Range(ctx, tenantID, from, to)
		if err != nil {
			return result, err
		}

		data, err := exportNDJSON(records)
		if err != nil {
			return result, err
		}

		key := e.ObjectKey(tenantID, from)
		if err := e.objects.PutObject(ctx, key, data, NDJSONContentType); err != nil {
			return result, fmt.Errorf("failed to export tenant %s: %w", tenantID, err)
		}

		logger.WithFields(map[string]interface{}{
			"tenant_id": tenantID.String(),
			"records":   len(records),
			"key":       key,
		}).Info("exported audit logs")

		result.Tenants++
		result.Records += len(records)
		result.Keys = append(result.Keys, key)
	}

	return result, nil
}

// exportNDJSON encodes records as newline-delimited JSON
func exportNDJSON(records []*Record) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)

	for _, rec := range records {
		if err := encoder.Encode(rec); err != nil {
			return nil, fmt.Errorf("failed to encode audit record: %w", err)
		}
	}

	return buf.Bytes(), nil
}
