package catalog

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/appr/pkg/audit"
	"github.com/platinummonkey/appr/pkg/httputil"
	"github.com/platinummonkey/appr/pkg/observability"
	"github.com/platinummonkey/appr/pkg/storage"
)

// DefaultListTTL bounds how long a cached list page is served
const DefaultListTTL = 60 * time.Second

// Page is the list envelope returned to clients and stored in the cache
type Page[T any] struct {
	Data []*T              `json:"data"`
	Meta httputil.PageMeta `json:"meta"`
}

// CachedService combines a repository with the audit trail and a
// read-through list cache. Writes run the repository call and the audit
// insert in one transaction and invalidate the tenant's cached lists after
// commit.
type CachedService[T any] struct {
	db      storage.DB
	repo    *Repository[T]
	cache   storage.Cache
	audit   *audit.Writer
	metrics *observability.Metrics
	ttl     time.Duration
	group   singleflight.Group
}

// NewCachedService creates a service for def. cache and metrics may be nil.
func NewCachedService[T any](db storage.DB, def *Definition[T], cache storage.Cache, auditWriter *audit.Writer, metrics *observability.Metrics, ttl time.Duration) *CachedService[T] {
	if ttl <= 0 {
		ttl = DefaultListTTL
	}
	return &CachedService[T]{
		db:      db,
		repo:    NewRepository(def, db),
		cache:   cache,
		audit:   auditWriter,
		metrics: metrics,
		ttl:     ttl,
	}
}

// Repository returns the underlying repository
func (s *CachedService[T]) Repository() *Repository[T] {
	return s.repo
}

// DB returns the database the service writes to
func (s *CachedService[T]) DB() storage.DB {
	return s.db
}

func (s *CachedService[T]) kind() audit.EntityKind {
	return s.repo.def.Kind
}

// ListCacheKey returns tenant:{tid}:{entity_type}:list:{md5 of params}. The
// tenant's list generation is part of the hashed params.
func ListCacheKey(tenantID uuid.UUID, kind audit.EntityKind, generation int64, p ListParams) string {
	params := map[string]interface{}{
		"generation": generation,
		"page":       p.Page,
		"per_page":   p.PerPage,
		"search":     p.Search,
		"sort":       p.Sort,
		"order":      p.Order,
	}
	for k, v := range p.Filters {
		if v != nil {
			params["filter."+k] = v
		}
	}
	// encoding/json sorts map keys, so equal params hash equally
	raw, _ := json.Marshal(params)
	sum := md5.Sum(raw)
	return fmt.Sprintf("%s%s", ListCachePrefix(tenantID, kind), hex.EncodeToString(sum[:]))
}

// ListCachePrefix is the shared prefix of every cached list of one kind
func ListCachePrefix(tenantID uuid.UUID, kind audit.EntityKind) string {
	return fmt.Sprintf("tenant:%s:%s:list:", tenantID, kind)
}

// ListGenerationKey holds the counter bumped by every invalidation of one
// kind. It sits outside ListCachePrefix so pattern deletes keep it.
func ListGenerationKey(tenantID uuid.UUID, kind audit.EntityKind) string {
	return fmt.Sprintf("tenant:%s:%s:listgen", tenantID, kind)
}

// listFillTimeout bounds a shared list fill, which outlives the caller that
// started it
const listFillTimeout = 30 * time.Second

// List returns one page, served from the cache when possible. Cache
// failures are logged and treated as a miss. Concurrent misses on the same
// key share one database read; a caller whose context ends stops waiting
// without failing the others.
func (s *CachedService[T]) List(ctx context.Context, tenantID uuid.UUID, p ListParams) (*Page[T], error) {
	p = p.normalize()
	logger := observability.FromContext(ctx)

	cacheable := s.cache != nil
	var generation int64
	if cacheable {
		gen, err := s.cache.Generation(ctx, ListGenerationKey(tenantID, s.kind()))
		if err != nil {
			s.metrics.CacheError("get")
			logger.WithError(err).Warn("list cache generation read failed")
			cacheable = false
		}
		generation = gen
	}
	key := ListCacheKey(tenantID, s.kind(), generation, p)

	if cacheable {
		var cached Page[T]
		err := s.cache.GetJSON(ctx, key, &cached)
		switch {
		case err == nil:
			s.metrics.CacheHit(string(s.kind()))
			logger.Debugf("%s list served from cache", s.kind())
			return &cached, nil
		case errors.Is(err, storage.ErrCacheMiss):
			s.metrics.CacheMiss(string(s.kind()))
		default:
			s.metrics.CacheError("get")
			logger.WithError(err).WithField("key", key).Warn("list cache read failed")
		}
	}

	flight := key
	if !cacheable {
		flight = "uncached:" + key
	}
	ch := s.group.DoChan(flight, func() (interface{}, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), listFillTimeout)
		defer cancel()

		items, total, err := s.repo.List(fillCtx, tenantID, p)
		if err != nil {
			return nil, err
		}
		page := &Page[T]{Data: items, Meta: httputil.NewPageMeta(total, p.Page, p.PerPage)}
		if cacheable {
			if err := s.cache.SetJSON(fillCtx, key, page, s.ttl); err != nil {
				s.metrics.CacheError("set")
				logger.WithError(err).WithField("key", key).Warn("list cache write failed")
			}
		}
		return page, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Page[T]), nil
	}
}

// Get returns a live entity or a NotFound error. Single reads are not cached.
func (s *CachedService[T]) Get(ctx context.Context, tenantID, id uuid.UUID) (*T, error) {
	return s.repo.GetOr404(ctx, tenantID, id)
}

// InTx runs fn in a transaction with a repository bound to it, then
// invalidates the tenant's cached lists if the transaction committed.
func (s *CachedService[T]) InTx(ctx context.Context, tenantID uuid.UUID, fn func(tx *sql.Tx, repo *Repository[T]) error) error {
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(tx, s.repo.WithTx(tx))
	})
	if err != nil {
		return err
	}
	s.Invalidate(ctx, tenantID)
	return nil
}

// Invalidate moves the tenant's lists of this kind to a new generation and
// drops the pages cached so far
func (s *CachedService[T]) Invalidate(ctx context.Context, tenantID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.BumpGeneration(ctx, ListGenerationKey(tenantID, s.kind())); err != nil {
		s.metrics.CacheError("invalidate")
		observability.FromContext(ctx).WithError(err).Warn("list cache generation bump failed")
	}
	if err := s.cache.InvalidatePatterns(ctx, ListCachePrefix(tenantID, s.kind())+"*"); err != nil {
		s.metrics.CacheError("invalidate")
		observability.FromContext(ctx).WithError(err).Warn("list cache invalidation failed")
	}
}

// Audit writes a mutation event for entity inside tx
func (s *CachedService[T]) Audit(ctx context.Context, tx storage.DBTX, tenantID, actorID uuid.UUID, eventType string, id uuid.UUID, before, after interface{}) error {
	return s.audit.Log(ctx, tx, audit.Entry{
		TenantID:  tenantID,
		EventType: eventType,
		ActorID:   &actorID,
		Entity:    &audit.EntityRef{Kind: s.kind(), ID: id},
		Before:    before,
		After:     after,
	})
}

// Create inserts an entity and records {kind}.created with an after snapshot
func (s *CachedService[T]) Create(ctx context.Context, tenantID, actorID uuid.UUID, values Values) (*T, error) {
	var created *T
	err := s.InTx(ctx, tenantID, func(tx *sql.Tx, repo *Repository[T]) error {
		var err error
		if created, err = repo.Create(ctx, tenantID, values, &actorID); err != nil {
			return err
		}
		return s.Audit(ctx, tx, tenantID, actorID, audit.MutationEvent(s.kind(), audit.ActionCreated),
			s.repo.def.ID(created), nil, s.repo.def.snapshot(created))
	})
	if err != nil {
		return nil, err
	}
	s.mutationCommitted(ctx, audit.ActionCreated, s.repo.def.ID(created), actorID)
	return created, nil
}

// Update applies values and records {kind}.updated with both snapshots
func (s *CachedService[T]) Update(ctx context.Context, tenantID, id, actorID uuid.UUID, values Values) (*T, error) {
	var updated *T
	err := s.InTx(ctx, tenantID, func(tx *sql.Tx, repo *Repository[T]) error {
		before, err := repo.GetOr404(ctx, tenantID, id)
		if err != nil {
			return err
		}
		beforeSnapshot := s.repo.def.snapshot(before)
		if updated, err = repo.Update(ctx, tenantID, id, values, &actorID); err != nil {
			return err
		}
		return s.Audit(ctx, tx, tenantID, actorID, audit.MutationEvent(s.kind(), audit.ActionUpdated),
			id, beforeSnapshot, s.repo.def.snapshot(updated))
	})
	if err != nil {
		return nil, err
	}
	s.mutationCommitted(ctx, audit.ActionUpdated, id, actorID)
	return updated, nil
}

// Delete soft-deletes an entity and records {kind}.deleted with a before
// snapshot
func (s *CachedService[T]) Delete(ctx context.Context, tenantID, id, actorID uuid.UUID) error {
	err := s.InTx(ctx, tenantID, func(tx *sql.Tx, repo *Repository[T]) error {
		before, err := repo.GetOr404(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if err := repo.SoftDelete(ctx, tenantID, id, &actorID); err != nil {
			return err
		}
		return s.Audit(ctx, tx, tenantID, actorID, audit.MutationEvent(s.kind(), audit.ActionDeleted),
			id, s.repo.def.snapshot(before), nil)
	})
	if err != nil {
		return err
	}
	s.mutationCommitted(ctx, audit.ActionDeleted, id, actorID)
	return nil
}

// AuditCommitted counts audit events once the transaction that wrote them
// has committed
func (s *CachedService[T]) AuditCommitted(eventTypes ...string) {
	s.audit.Committed(eventTypes...)
}

func (s *CachedService[T]) mutationCommitted(ctx context.Context, action audit.Action, id, actorID uuid.UUID) {
	s.AuditCommitted(audit.MutationEvent(s.kind(), action))
	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"entity_type": string(s.kind()),
		"entity_id":   id.String(),
		"actor_id":    actorID.String(),
	}).Infof("%s %s", s.kind(), action)
}
