package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos"
	refrepo "github.com/saarzint/AI-Agents-Geoferry/internal/data/repos/reference"
	types "github.com/saarzint/AI-Agents-Geoferry/internal/domain"
	"github.com/saarzint/AI-Agents-Geoferry/internal/modules/freshness"
	"github.com/saarzint/AI-Agents-Geoferry/internal/observability"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
	"github.com/saarzint/AI-Agents-Geoferry/internal/realtime"
	"github.com/saarzint/AI-Agents-Geoferry/internal/realtime/bus"
)

// ErrRefetchQueued is returned by fetchers that only schedule the refresh. The caller
// is served whatever is cached, marked stale.
var ErrRefetchQueued = errors.New("reference refetch queued")

const (
	refKindRequirements = "application_requirements"
	refKindVisa         = "visa_requirements"
)

type RequirementsFetcher interface {
	FetchRequirements(ctx context.Context, university, program string) (*types.ApplicationRequirement, error)
}

type VisaFetcher interface {
	FetchVisa(ctx context.Context, citizenship, destination string) (*types.VisaRequirement, error)
}

// Lookup is a freshness-checked read of cached external data. Record is nil only when
// nothing was cached and the refresh was queued.
type Lookup[T any] struct {
	Record           *T            `json:"record"`
	Stale            bool          `json:"stale"`
	RefreshRequested bool          `json:"refresh_requested"`
	Refetched        bool          `json:"refetched"`
	Age              time.Duration `json:"age_ns"`
}

type ReferenceService interface {
	GetRequirements(ctx context.Context, university, program string) (*Lookup[types.ApplicationRequirement], error)
	GetVisa(ctx context.Context, citizenship, destination string) (*Lookup[types.VisaRequirement], error)
}

type referenceService struct {
	log          *logger.Logger
	requirements repos.ApplicationRequirementRepo
	visas        repos.VisaRequirementRepo
	reqFetcher   RequirementsFetcher
	visaFetcher  VisaFetcher
	policy       freshness.Policy
	metrics      *observability.Metrics
	flight       singleflight.Group
}

type ReferenceServiceDeps struct {
	Requirements repos.ApplicationRequirementRepo
	Visas        repos.VisaRequirementRepo
	ReqFetcher   RequirementsFetcher
	VisaFetcher  VisaFetcher
	Freshness    freshness.Policy
	Metrics      *observability.Metrics
}

func NewReferenceService(log *logger.Logger, deps ReferenceServiceDeps) ReferenceService {
	return &referenceService{
		log:          log.With("service", "ReferenceService"),
		requirements: deps.Requirements,
		visas:        deps.Visas,
		reqFetcher:   deps.ReqFetcher,
		visaFetcher:  deps.VisaFetcher,
		policy:       deps.Freshness,
		metrics:      deps.Metrics,
	}
}

func (s *referenceService) GetRequirements(ctx context.Context, university, program string) (*Lookup[types.ApplicationRequirement], error) {
	const op = "ReferenceService.GetRequirements"
	university, program = strings.TrimSpace(university), strings.TrimSpace(program)
	if university == "" || program == "" {
		return nil, aggregates.MapError(op, aggregates.ValidationError("university and program required"))
	}
	cached, err := s.requirements.Get(ctx, nil, university, program)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, aggregates.MapError(op, err)
	}
	if cached != nil && s.policy.Fresh(cached.FetchedAt) {
		return &Lookup[types.ApplicationRequirement]{Record: cached, Age: s.policy.Age(cached.FetchedAt)}, nil
	}

	key := refKindRequirements + "|" + refrepo.NormalizeKey(university) + "|" + refrepo.NormalizeKey(program)
	v, err, _ := s.flight.Do(key, func() (any, error) {
		if s.reqFetcher == nil {
			return nil, errNoFetcher
		}
		rec, err := s.reqFetcher.FetchRequirements(ctx, university, program)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, fmt.Errorf("fetcher returned no record")
		}
		rec.University, rec.Program = university, program
		if rec.FetchedAt.IsZero() {
			rec.FetchedAt = time.Now().UTC()
		}
		return s.requirements.Upsert(ctx, nil, rec)
	})
	out := &Lookup[types.ApplicationRequirement]{Record: cached}
	if cached != nil {
		out.Age = s.policy.Age(cached.FetchedAt)
	}
	if err := s.refetchOutcome(op, refKindRequirements, cached != nil, err); err != nil {
		return nil, err
	}
	if v == nil {
		out.Stale = cached != nil
		out.RefreshRequested = true
		return out, nil
	}
	stored := v.(*types.ApplicationRequirement)
	return &Lookup[types.ApplicationRequirement]{Record: stored, Refetched: true, Age: s.policy.Age(stored.FetchedAt)}, nil
}

func (s *referenceService) GetVisa(ctx context.Context, citizenship, destination string) (*Lookup[types.VisaRequirement], error) {
	const op = "ReferenceService.GetVisa"
	citizenship, destination = strings.TrimSpace(citizenship), strings.TrimSpace(destination)
	if citizenship == "" || destination == "" {
		return nil, aggregates.MapError(op, aggregates.ValidationError("citizenship and destination required"))
	}
	cached, err := s.visas.Get(ctx, nil, citizenship, destination)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, aggregates.MapError(op, err)
	}
	if cached != nil && s.policy.Fresh(cached.FetchedAt) {
		return &Lookup[types.VisaRequirement]{Record: cached, Age: s.policy.Age(cached.FetchedAt)}, nil
	}

	key := refKindVisa + "|" + refrepo.NormalizeKey(citizenship) + "|" + refrepo.NormalizeKey(destination)
	v, err, _ := s.flight.Do(key, func() (any, error) {
		if s.visaFetcher == nil {
			return nil, errNoFetcher
		}
		rec, err := s.visaFetcher.FetchVisa(ctx, citizenship, destination)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, fmt.Errorf("fetcher returned no record")
		}
		rec.Citizenship, rec.Destination = citizenship, destination
		if rec.FetchedAt.IsZero() {
			rec.FetchedAt = time.Now().UTC()
		}
		return s.visas.Upsert(ctx, nil, rec)
	})
	out := &Lookup[types.VisaRequirement]{Record: cached}
	if cached != nil {
		out.Age = s.policy.Age(cached.FetchedAt)
	}
	if err := s.refetchOutcome(op, refKindVisa, cached != nil, err); err != nil {
		return nil, err
	}
	if v == nil {
		out.Stale = cached != nil
		out.RefreshRequested = true
		return out, nil
	}
	stored := v.(*types.VisaRequirement)
	return &Lookup[types.VisaRequirement]{Record: stored, Refetched: true, Age: s.policy.Age(stored.FetchedAt)}, nil
}

var errNoFetcher = errors.New("no fetcher configured")

// refetchOutcome records the refetch result and turns a failed refetch into the
// caller-facing error: stale_data when something was cached, not_found otherwise.
// A queued refetch is not a failure.
func (s *referenceService) refetchOutcome(op, kind string, hadCache bool, err error) error {
	switch {
	case err == nil:
		s.metrics.IncRefetch(kind, "fetched")
		return nil
	case errors.Is(err, ErrRefetchQueued):
		s.metrics.IncRefetch(kind, "queued")
		return nil
	}
	s.metrics.IncRefetch(kind, "error")
	s.log.Warn("reference refetch failed", "kind", kind, "had_cache", hadCache, "error", err)
	if !hadCache {
		return aggregates.MapError(op, aggregates.NotFoundError(fmt.Sprintf("%s not cached and refetch failed: %v", kind, err)))
	}
	return aggregates.MapError(op, aggregates.StaleDataError(fmt.Sprintf("%s is stale and refetch failed: %v", kind, err)))
}

// BusRefetcher hands refresh requests to the owning fetch collaborator over the event
// bus. It never returns data, only ErrRefetchQueued.
type BusRefetcher struct {
	Bus bus.Bus
}

func (b BusRefetcher) FetchRequirements(ctx context.Context, university, program string) (*types.ApplicationRequirement, error) {
	return nil, b.queue(ctx, map[string]any{"kind": refKindRequirements, "university": university, "program": program})
}

func (b BusRefetcher) FetchVisa(ctx context.Context, citizenship, destination string) (*types.VisaRequirement, error) {
	return nil, b.queue(ctx, map[string]any{"kind": refKindVisa, "citizenship": citizenship, "destination": destination})
}

func (b BusRefetcher) queue(ctx context.Context, data map[string]any) error {
	if b.Bus == nil {
		return errNoFetcher
	}
	if err := b.Bus.Publish(ctx, realtime.NewEvent(realtime.EventReferenceRefetch, 0, data)); err != nil {
		return fmt.Errorf("queue refetch: %w", err)
	}
	return ErrRefetchQueued
}
