package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Stamps holds the bookkeeping columns every entity carries
type Stamps struct {
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	CreatedBy *uuid.UUID `json:"created_by"`
	UpdatedBy *uuid.UUID `json:"updated_by"`
}

func (s *Stamps) dest() []interface{} {
	return []interface{}{&s.CreatedAt, &s.UpdatedAt, &s.CreatedBy, &s.UpdatedBy}
}

// withStamps appends the bookkeeping columns in dest order
func withStamps(columns ...string) []string {
	return append(columns, "created_at", "updated_at", "created_by", "updated_by")
}

func setIf[P any](v Values, column string, p *P) {
	if p != nil {
		v[column] = *p
	}
}

func orDefault[E ~string](value, fallback E) E {
	if value == "" {
		return fallback
	}
	return value
}

func setFromPtr[P any](dst *P, p *P) {
	if p != nil {
		*dst = *p
	}
}
