// Package directory resolves participant identifiers to display names using
// the Pulse employee directory. Messages reference user ids, while the
// directory keys employees by both a record id and an optional user_id, so
// two lookup maps are kept per tenant. A miss is never an error — callers
// get a truncated identifier instead.
package directory

import (
	"context"
	"sync"
	"time"

	"github.com/pulsehq/comms-gateway/internal/aggregate"
	"github.com/pulsehq/comms-gateway/internal/domain"
	"github.com/pulsehq/comms-gateway/pkg/cache"
	"github.com/pulsehq/comms-gateway/pkg/logger"
)

// Source fetches the employee list (implemented by upstream.Client)
type Source interface {
	GetEmployees(ctx context.Context, token string, limit int) ([]domain.Employee, error)
}

// tenantDirectory is one company's resolved name maps
type tenantDirectory struct {
	byEmployeeID map[string]string
	byUserID     map[string]string
	refreshedAt  time.Time
}

// Resolver caches per-tenant name maps, refreshed lazily with a TTL and
// shared across gateway replicas through Redis when available.
type Resolver struct {
	source Source
	cache  cache.Service
	ttl    time.Duration
	limit  int

	mu      sync.RWMutex
	tenants map[string]*tenantDirectory
}

// NewResolver creates a directory resolver. cacheService may be nil.
func NewResolver(source Source, cacheService cache.Service, ttl time.Duration, limit int) *Resolver {
	if ttl <= 0 {
		ttl = cache.TTLDirectory
	}
	if limit <= 0 {
		limit = 200
	}
	return &Resolver{
		source:  source,
		cache:   cacheService,
		ttl:     ttl,
		limit:   limit,
		tenants: make(map[string]*tenantDirectory),
	}
}

// Ensure makes the tenant's directory usable, refreshing it when stale.
// Failures degrade: the previous maps (or the bare fallback) keep serving.
func (r *Resolver) Ensure(ctx context.Context, token, companyID string) {
	r.mu.RLock()
	dir, ok := r.tenants[companyID]
	r.mu.RUnlock()
	if ok && time.Since(dir.refreshedAt) < r.ttl {
		return
	}

	// Try the shared cache before hitting the upstream
	if r.cache != nil && r.cache.IsAvailable() {
		var employees []domain.Employee
		if err := r.cache.GetDirectory(ctx, companyID, &employees); err == nil {
			r.install(companyID, employees)
			return
		}
	}

	employees, err := r.source.GetEmployees(ctx, token, r.limit)
	if err != nil {
		dlog := logger.WithComponent("directory")
		dlog.Warn().
			Err(err).
			Str("company_id", companyID).
			Msg("directory refresh failed, keeping previous names")
		return
	}

	r.install(companyID, employees)

	if r.cache != nil && r.cache.IsAvailable() {
		if err := r.cache.SetDirectory(ctx, companyID, employees); err != nil {
			dlog := logger.WithComponent("directory")
			dlog.Warn().Err(err).Msg("directory cache write failed")
		}
	}
}

func (r *Resolver) install(companyID string, employees []domain.Employee) {
	dir := &tenantDirectory{
		byEmployeeID: make(map[string]string, len(employees)),
		byUserID:     make(map[string]string, len(employees)),
		refreshedAt:  time.Now(),
	}
	for i := range employees {
		e := &employees[i]
		name := e.FullName()
		if name == "" {
			continue
		}
		if e.ID != "" {
			dir.byEmployeeID[e.ID] = name
		}
		if e.UserID != "" {
			dir.byUserID[e.UserID] = name
		}
	}

	r.mu.Lock()
	r.tenants[companyID] = dir
	r.mu.Unlock()
}

// DisplayNameIn resolves a participant id within one tenant, falling back
// to a truncated identifier on any miss.
func (r *Resolver) DisplayNameIn(companyID, participantID string) string {
	r.mu.RLock()
	dir, ok := r.tenants[companyID]
	r.mu.RUnlock()
	if !ok {
		return aggregate.FallbackName(participantID)
	}
	if name, ok := dir.byUserID[participantID]; ok {
		return name
	}
	if name, ok := dir.byEmployeeID[participantID]; ok {
		return name
	}
	return aggregate.FallbackName(participantID)
}

// Bind returns a NameResolver scoped to one tenant
func (r *Resolver) Bind(companyID string) aggregate.NameResolver {
	return boundResolver{resolver: r, companyID: companyID}
}

type boundResolver struct {
	resolver  *Resolver
	companyID string
}

func (b boundResolver) DisplayName(participantID string) string {
	return b.resolver.DisplayNameIn(b.companyID, participantID)
}
