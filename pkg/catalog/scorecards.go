package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/appr/pkg/audit"
	"github.com/platinummonkey/appr/pkg/observability"
	"github.com/platinummonkey/appr/pkg/storage"
)

// Scorecard grades entities of one type against weighted criteria
type Scorecard struct {
	ID               uuid.UUID             `json:"id"`
	TenantID         uuid.UUID             `json:"tenant_id"`
	Name             string                `json:"name"`
	Slug             string                `json:"slug"`
	Description      *string               `json:"description"`
	EntityType       string                `json:"entity_type"`
	IsActive         bool                  `json:"is_active"`
	PassingThreshold int                   `json:"passing_threshold"`
	Criteria         []*ScorecardCriterion `json:"criteria,omitempty"`
	Stamps
}

// ScorecardCriterion is one weighted rule of a scorecard
type ScorecardCriterion struct {
	ID          uuid.UUID  `json:"id"`
	ScorecardID uuid.UUID  `json:"scorecard_id"`
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	Weight      int        `json:"weight"`
	RuleType    string     `json:"rule_type"`
	RuleConfig  JSONObject `json:"rule_config"`
	SortOrder   int        `json:"sort_order"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type CriterionCreate struct {
	Name        string     `json:"name" validate:"required,min=1,max=255"`
	Description *string    `json:"description"`
	Weight      *int       `json:"weight" validate:"omitempty,gte=1"`
	RuleType    string     `json:"rule_type" validate:"required,min=1,max=100"`
	RuleConfig  JSONObject `json:"rule_config"`
	SortOrder   int        `json:"sort_order"`
	IsActive    *bool      `json:"is_active"`
}

type ScorecardCreate struct {
	Name             string            `json:"name" validate:"required,min=1,max=255"`
	Slug             string            `json:"slug" validate:"required,min=1,max=100"`
	Description      *string           `json:"description"`
	EntityType       string            `json:"entity_type" validate:"required,min=1,max=50"`
	IsActive         *bool             `json:"is_active"`
	PassingThreshold *int              `json:"passing_threshold" validate:"omitempty,gte=0,lte=100"`
	Criteria         []CriterionCreate `json:"criteria" validate:"dive"`
}

func (in ScorecardCreate) Values() Values {
	active, threshold := true, 70
	setFromPtr(&active, in.IsActive)
	setFromPtr(&threshold, in.PassingThreshold)
	v := Values{
		"name":              in.Name,
		"slug":              in.Slug,
		"entity_type":       in.EntityType,
		"is_active":         active,
		"passing_threshold": threshold,
	}
	setIf(v, "description", in.Description)
	return v
}

type ScorecardUpdate struct {
	Name             *string `json:"name" validate:"omitempty,min=1,max=255"`
	Slug             *string `json:"slug" validate:"omitempty,min=1,max=100"`
	Description      *string `json:"description"`
	EntityType       *string `json:"entity_type" validate:"omitempty,min=1,max=50"`
	IsActive         *bool   `json:"is_active"`
	PassingThreshold *int    `json:"passing_threshold" validate:"omitempty,gte=0,lte=100"`
}

func (in ScorecardUpdate) Values() Values {
	v := Values{}
	setIf(v, "name", in.Name)
	setIf(v, "slug", in.Slug)
	setIf(v, "description", in.Description)
	setIf(v, "entity_type", in.EntityType)
	setIf(v, "is_active", in.IsActive)
	setIf(v, "passing_threshold", in.PassingThreshold)
	return v
}

func ScorecardDefinition() *Definition[Scorecard] {
	return &Definition[Scorecard]{
		Kind:         audit.KindScorecard,
		Table:        "scorecards",
		Columns:      withStamps("id", "tenant_id", "name", "slug", "description", "entity_type", "is_active", "passing_threshold"),
		Mutable:      []string{"name", "slug", "description", "entity_type", "is_active", "passing_threshold"},
		Filterable:   []string{"entity_type", "is_active"},
		Sortable:     []string{"name", "slug", "entity_type", "passing_threshold", "updated_at"},
		SearchColumn: "name",
		UniqueField:  "slug",
		Scan: func(row storage.RowScanner) (*Scorecard, error) {
			s := &Scorecard{}
			err := row.Scan(append([]interface{}{
				&s.ID, &s.TenantID, &s.Name, &s.Slug, &s.Description, &s.EntityType, &s.IsActive, &s.PassingThreshold,
			}, s.Stamps.dest()...)...)
			return s, err
		},
		ID: func(s *Scorecard) uuid.UUID { return s.ID },
		Snapshot: func(s *Scorecard) map[string]interface{} {
			return map[string]interface{}{"name": s.Name, "slug": s.Slug, "entity_type": s.EntityType, "is_active": s.IsActive}
		},
	}
}

// ScorecardService adds criteria handling to the generic service
type ScorecardService struct {
	*CachedService[Scorecard]
}

func NewScorecardService(db storage.DB, cache storage.Cache, auditWriter *audit.Writer, metrics *observability.Metrics, ttl time.Duration) *ScorecardService {
	return &ScorecardService{CachedService: NewCachedService(db, ScorecardDefinition(), cache, auditWriter, metrics, ttl)}
}

func insertCriterion(ctx context.Context, q storage.DBTX, scorecardID uuid.UUID, in CriterionCreate) (*ScorecardCriterion, error) {
	c := &ScorecardCriterion{
		ScorecardID: scorecardID,
		Name:        in.Name,
		Description: in.Description,
		Weight:      1,
		RuleType:    in.RuleType,
		RuleConfig:  in.RuleConfig,
		SortOrder:   in.SortOrder,
		IsActive:    true,
	}
	setFromPtr(&c.Weight, in.Weight)
	setFromPtr(&c.IsActive, in.IsActive)
	if c.RuleConfig == nil {
		c.RuleConfig = JSONObject{}
	}

	err := q.QueryRowContext(ctx, `
		INSERT INTO scorecard_criteria (scorecard_id, name, description, weight, rule_type, rule_config, sort_order, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		c.ScorecardID, c.Name, c.Description, c.Weight, c.RuleType, c.RuleConfig, c.SortOrder, c.IsActive,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert scorecard criterion: %w", err)
	}
	return c, nil
}

// CreateWithCriteria creates a scorecard and its inline criteria in one
// transaction
func (s *ScorecardService) CreateWithCriteria(ctx context.Context, tenantID, actorID uuid.UUID, in ScorecardCreate) (*Scorecard, error) {
	var created *Scorecard
	err := s.InTx(ctx, tenantID, func(tx *sql.Tx, repo *Repository[Scorecard]) error {
		var err error
		if created, err = repo.Create(ctx, tenantID, in.Values(), &actorID); err != nil {
			return err
		}
		created.Criteria = make([]*ScorecardCriterion, 0, len(in.Criteria))
		for _, c := range in.Criteria {
			criterion, err := insertCriterion(ctx, tx, created.ID, c)
			if err != nil {
				return err
			}
			created.Criteria = append(created.Criteria, criterion)
		}
		after := repo.Definition().Snapshot(created)
		after["criteria_count"] = len(created.Criteria)
		return s.Audit(ctx, tx, tenantID, actorID, audit.MutationEvent(audit.KindScorecard, audit.ActionCreated), created.ID, nil, after)
	})
	if err != nil {
		return nil, err
	}
	s.AuditCommitted(audit.MutationEvent(audit.KindScorecard, audit.ActionCreated))
	return created, nil
}

// AddCriterion appends a criterion to a live scorecard
func (s *ScorecardService) AddCriterion(ctx context.Context, tenantID, scorecardID, actorID uuid.UUID, in CriterionCreate) (*ScorecardCriterion, error) {
	var criterion *ScorecardCriterion
	err := s.InTx(ctx, tenantID, func(tx *sql.Tx, repo *Repository[Scorecard]) error {
		if _, err := repo.GetOr404(ctx, tenantID, scorecardID); err != nil {
			return err
		}
		var err error
		if criterion, err = insertCriterion(ctx, tx, scorecardID, in); err != nil {
			return err
		}
		return s.Audit(ctx, tx, tenantID, actorID, audit.EventScorecardCriterionAdd, scorecardID, nil,
			map[string]interface{}{"criterion_id": criterion.ID.String(), "name": criterion.Name, "rule_type": criterion.RuleType, "weight": criterion.Weight})
	})
	if err != nil {
		return nil, err
	}
	s.AuditCommitted(audit.EventScorecardCriterionAdd)
	return criterion, nil
}

// GetWithCriteria returns a live scorecard with its criteria in sort order
func (s *ScorecardService) GetWithCriteria(ctx context.Context, tenantID, id uuid.UUID) (*Scorecard, error) {
	scorecard, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scorecard_id, name, description, weight, rule_type, rule_config, sort_order, is_active, created_at, updated_at
		FROM scorecard_criteria
		WHERE scorecard_id = $1
		ORDER BY sort_order ASC, created_at ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list scorecard criteria: %w", err)
	}
	defer rows.Close()

	scorecard.Criteria = []*ScorecardCriterion{}
	for rows.Next() {
		c := &ScorecardCriterion{}
		if err := rows.Scan(&c.ID, &c.ScorecardID, &c.Name, &c.Description, &c.Weight, &c.RuleType,
			&c.RuleConfig, &c.SortOrder, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan scorecard criterion: %w", err)
		}
		scorecard.Criteria = append(scorecard.Criteria, c)
	}
	return scorecard, rows.Err()
}
