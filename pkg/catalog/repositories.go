package catalog

import (
	"github.com/google/uuid"

	"github.com/platinummonkey/appr/pkg/audit"
	"github.com/platinummonkey/appr/pkg/storage"
)

// CodeRepository is a source repository hosted by a git provider
type CodeRepository struct {
	ID            uuid.UUID          `json:"id"`
	TenantID      uuid.UUID          `json:"tenant_id"`
	Name          string             `json:"name"`
	FullName      string             `json:"full_name"`
	Description   *string            `json:"description"`
	Provider      RepositoryProvider `json:"provider"`
	CloneURL      *string            `json:"clone_url"`
	HTMLURL       *string            `json:"html_url"`
	DefaultBranch string             `json:"default_branch"`
	IsPrivate     bool               `json:"is_private"`
	IsArchived    bool               `json:"is_archived"`
	Language      *string            `json:"language"`
	ExternalID    *string            `json:"external_id"`
	Stamps
}

type RepositoryCreate struct {
	Name          string             `json:"name" validate:"required,min=1,max=255"`
	FullName      string             `json:"full_name" validate:"required,min=1,max=512"`
	Description   *string            `json:"description"`
	Provider      RepositoryProvider `json:"provider" validate:"required,oneof=github gitlab azure_devops bitbucket"`
	CloneURL      *string            `json:"clone_url"`
	HTMLURL       *string            `json:"html_url" validate:"omitempty,url"`
	DefaultBranch string             `json:"default_branch" validate:"omitempty,max=255"`
	IsPrivate     *bool              `json:"is_private"`
	IsArchived    *bool              `json:"is_archived"`
	Language      *string            `json:"language" validate:"omitempty,max=100"`
	ExternalID    *string            `json:"external_id"`
}

func (in RepositoryCreate) Values() Values {
	branch := in.DefaultBranch
	if branch == "" {
		branch = "main"
	}
	isPrivate, isArchived := true, false
	setFromPtr(&isPrivate, in.IsPrivate)
	setFromPtr(&isArchived, in.IsArchived)

	v := Values{
		"name":           in.Name,
		"full_name":      in.FullName,
		"provider":       in.Provider,
		"default_branch": branch,
		"is_private":     isPrivate,
		"is_archived":    isArchived,
	}
	setIf(v, "description", in.Description)
	setIf(v, "clone_url", in.CloneURL)
	setIf(v, "html_url", in.HTMLURL)
	setIf(v, "language", in.Language)
	setIf(v, "external_id", in.ExternalID)
	return v
}

type RepositoryUpdate struct {
	Name          *string             `json:"name" validate:"omitempty,min=1,max=255"`
	FullName      *string             `json:"full_name" validate:"omitempty,min=1,max=512"`
	Description   *string             `json:"description"`
	Provider      *RepositoryProvider `json:"provider" validate:"omitempty,oneof=github gitlab azure_devops bitbucket"`
	CloneURL      *string             `json:"clone_url"`
	HTMLURL       *string             `json:"html_url" validate:"omitempty,url"`
	DefaultBranch *string             `json:"default_branch" validate:"omitempty,min=1,max=255"`
	IsPrivate     *bool               `json:"is_private"`
	IsArchived    *bool               `json:"is_archived"`
	Language      *string             `json:"language" validate:"omitempty,max=100"`
	ExternalID    *string             `json:"external_id"`
}

func (in RepositoryUpdate) Values() Values {
	v := Values{}
	setIf(v, "name", in.Name)
	setIf(v, "full_name", in.FullName)
	setIf(v, "description", in.Description)
	setIf(v, "provider", in.Provider)
	setIf(v, "clone_url", in.CloneURL)
	setIf(v, "html_url", in.HTMLURL)
	setIf(v, "default_branch", in.DefaultBranch)
	setIf(v, "is_private", in.IsPrivate)
	setIf(v, "is_archived", in.IsArchived)
	setIf(v, "language", in.Language)
	setIf(v, "external_id", in.ExternalID)
	return v
}

// RepositoryDefinition maps CodeRepository onto the repositories table.
// full_name is the per-tenant natural key.
func RepositoryDefinition() *Definition[CodeRepository] {
	return &Definition[CodeRepository]{
		Kind:  audit.KindRepository,
		Table: "repositories",
		Columns: withStamps("id", "tenant_id", "name", "full_name", "description", "provider", "clone_url",
			"html_url", "default_branch", "is_private", "is_archived", "language", "external_id"),
		Mutable: []string{"name", "full_name", "description", "provider", "clone_url", "html_url",
			"default_branch", "is_private", "is_archived", "language", "external_id"},
		Filterable:   []string{"provider", "is_private", "is_archived", "language"},
		Sortable:     []string{"name", "full_name", "provider", "language", "updated_at"},
		SearchColumn: "name",
		UniqueField:  "full_name",
		Scan: func(row storage.RowScanner) (*CodeRepository, error) {
			r := &CodeRepository{}
			err := row.Scan(append([]interface{}{
				&r.ID, &r.TenantID, &r.Name, &r.FullName, &r.Description, &r.Provider, &r.CloneURL,
				&r.HTMLURL, &r.DefaultBranch, &r.IsPrivate, &r.IsArchived, &r.Language, &r.ExternalID,
			}, r.Stamps.dest()...)...)
			return r, err
		},
		ID: func(r *CodeRepository) uuid.UUID { return r.ID },
		Snapshot: func(r *CodeRepository) map[string]interface{} {
			return map[string]interface{}{"name": r.Name, "full_name": r.FullName, "provider": r.Provider, "is_archived": r.IsArchived}
		},
	}
}
