package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos"
	types "github.com/saarzint/AI-Agents-Geoferry/internal/domain"
	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/modules/reconcile"
	"github.com/saarzint/AI-Agents-Geoferry/internal/observability"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
	"github.com/saarzint/AI-Agents-Geoferry/internal/realtime"
	"github.com/saarzint/AI-Agents-Geoferry/internal/realtime/bus"
)

type StageUpdateInput struct {
	UserID        uint           `json:"user_id" validate:"required"`
	Stage         string         `json:"stage" validate:"required,max=128"`
	ProgressScore *float64       `json:"progress_score,omitempty" validate:"omitempty,gte=0,lte=100"`
	StressFlags   map[string]any `json:"stress_flags,omitempty"`
	Advice        string         `json:"advice,omitempty" validate:"max=4000"`
}

// SummaryService is the reconciler. The stored summary is a cache; every write goes
// through Recompute over the full report and change history.
type SummaryService interface {
	// Get returns the summary, recomputing first when history has moved past the cache.
	Get(ctx context.Context, userID uint) (*types.AdmissionsSummary, error)
	Recompute(ctx context.Context, userID uint) (*types.AdmissionsSummary, error)
	// Refresh is Recompute for callers that just committed a write: it never joins a run
	// that may have read history before that write.
	Refresh(ctx context.Context, userID uint) (*types.AdmissionsSummary, error)
	// UpdateStage records an explicit stage event and recomputes in one transaction.
	UpdateStage(ctx context.Context, in StageUpdateInput) (*types.AdmissionsSummary, error)
	NextSteps(ctx context.Context, userID uint) ([]types.NextStep, error)
	// RecomputeAll refreshes every cached summary and returns how many changed.
	RecomputeAll(ctx context.Context) (int, error)
}

type summaryService struct {
	log       *logger.Logger
	reports   repos.AgentReportRepo
	changes   repos.ProfileChangeRepo
	summaries repos.AdmissionsSummaryRepo
	agg       domainagg.SummaryAggregate
	policy    PolicySource
	inferer   reconcile.StageInferer
	metrics   *observability.Metrics
	events    eventPublisher
	now       func() time.Time
	flight    singleflight.Group
}

type SummaryServiceDeps struct {
	Reports   repos.AgentReportRepo
	Changes   repos.ProfileChangeRepo
	Summaries repos.AdmissionsSummaryRepo
	Aggregate domainagg.SummaryAggregate
	Policy    PolicySource
	// Inferer overrides the policy's rule-based stage inference when set.
	Inferer reconcile.StageInferer
	Metrics *observability.Metrics
	Bus     bus.Bus
	Now     func() time.Time
}

func NewSummaryService(log *logger.Logger, deps SummaryServiceDeps) SummaryService {
	serviceLog := log.With("service", "SummaryService")
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &summaryService{
		log:       serviceLog,
		reports:   deps.Reports,
		changes:   deps.Changes,
		summaries: deps.Summaries,
		agg:       deps.Aggregate,
		policy:    deps.Policy,
		inferer:   deps.Inferer,
		metrics:   deps.Metrics,
		events:    eventPublisher{bus: deps.Bus, log: serviceLog, metrics: deps.Metrics},
		now:       now,
	}
}

func (s *summaryService) Get(ctx context.Context, userID uint) (*types.AdmissionsSummary, error) {
	const op = "SummaryService.Get"
	if userID == 0 {
		return nil, aggregates.MapError(op, aggregates.ValidationError("user_id required"))
	}
	sum, err := s.summaries.GetByUserID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.Recompute(ctx, userID)
		}
		return nil, aggregates.MapError(op, err)
	}
	stale, err := s.behindHistory(ctx, sum)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	if stale {
		return s.Recompute(ctx, userID)
	}
	return sum, nil
}

// behindHistory reports whether reports or profile changes exist that the cached row has not folded.
func (s *summaryService) behindHistory(ctx context.Context, sum *types.AdmissionsSummary) (bool, error) {
	lastReport, err := s.reports.MaxIDByUser(ctx, nil, sum.UserProfileID)
	if err != nil {
		return false, err
	}
	if lastReport > sum.LastReportID {
		return true, nil
	}
	lastChange, err := s.changes.MaxIDByUser(ctx, nil, sum.UserProfileID)
	if err != nil {
		return false, err
	}
	return lastChange > sum.LastChangeID, nil
}

// Recompute collapses concurrent calls for one user into a single projection run.
func (s *summaryService) Recompute(ctx context.Context, userID uint) (*types.AdmissionsSummary, error) {
	const op = "SummaryService.Recompute"
	if userID == 0 {
		return nil, aggregates.MapError(op, aggregates.ValidationError("user_id required"))
	}
	return s.shared(ctx, userID)
}

func (s *summaryService) Refresh(ctx context.Context, userID uint) (*types.AdmissionsSummary, error) {
	const op = "SummaryService.Refresh"
	if userID == 0 {
		return nil, aggregates.MapError(op, aggregates.ValidationError("user_id required"))
	}
	var (
		sum *types.AdmissionsSummary
		err error
	)
	// A run started after the write can still lose the version race to one that started
	// before it; the second attempt reads the winner's row and folds the write on top.
	for attempt := 0; attempt < 2; attempt++ {
		s.flight.Forget(flightKey(userID))
		sum, err = s.shared(ctx, userID)
		if !domainagg.IsCode(err, domainagg.CodeConflict) {
			break
		}
	}
	return sum, err
}

func (s *summaryService) shared(ctx context.Context, userID uint) (*types.AdmissionsSummary, error) {
	v, err, _ := s.flight.Do(flightKey(userID), func() (any, error) {
		return s.recompute(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.AdmissionsSummary), nil
}

func flightKey(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}

func (s *summaryService) projection() domainagg.ProjectFunc {
	doc := s.policy.Current()
	return reconcile.NewProjector(doc.Reconcile, s.inferer).Func()
}

func (s *summaryService) recompute(ctx context.Context, userID uint) (*types.AdmissionsSummary, error) {
	ctx, span := observability.StartSpan(ctx, "SummaryService.Recompute", attribute.Int64("user_id", int64(userID)))
	defer span.End()

	res, err := s.agg.Recompute(ctx, domainagg.RecomputeSummaryInput{
		UserID:  userID,
		Now:     s.now(),
		Project: s.projection(),
	})
	if err != nil {
		span.RecordError(err)
		s.metrics.IncSummaryRecompute("error")
		return nil, err
	}
	s.recorded(ctx, userID, res)
	return res.Summary, nil
}

func (s *summaryService) recorded(ctx context.Context, userID uint, res domainagg.RecomputeSummaryResult) {
	switch {
	case res.Created:
		s.metrics.IncSummaryRecompute("created")
	case res.Changed:
		s.metrics.IncSummaryRecompute("updated")
	default:
		s.metrics.IncSummaryRecompute("unchanged")
	}
	if res.Changed {
		flags := res.Summary.StressFlags.Data()
		s.events.publish(ctx, realtime.EventSummaryUpdated, userID, map[string]any{
			"version":         res.Summary.Version,
			"current_stage":   res.Summary.CurrentStage,
			"progress_score":  res.Summary.ProgressScore,
			"agent_conflicts": flags.AgentConflicts,
		})
	}
}

func (s *summaryService) UpdateStage(ctx context.Context, in StageUpdateInput) (*types.AdmissionsSummary, error) {
	const op = "SummaryService.UpdateStage"
	in.Stage = strings.TrimSpace(in.Stage)
	if err := validateInput(op, in); err != nil {
		return nil, err
	}
	payload := map[string]any{
		types.PayloadEventKey: types.EventStageUpdate,
		"stage":               in.Stage,
	}
	if in.ProgressScore != nil {
		payload["progress_score"] = *in.ProgressScore
	}
	if len(in.StressFlags) > 0 {
		payload["stress_flags"] = in.StressFlags
	}
	if a := strings.TrimSpace(in.Advice); a != "" {
		payload["advice"] = a
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, aggregates.MapError(op, aggregates.ValidationError(fmt.Sprintf("stage update payload: %v", err)))
	}

	ctx, span := observability.StartSpan(ctx, op, attribute.Int64("user_id", int64(in.UserID)))
	defer span.End()

	var res domainagg.RecordStageResult
	// The event and its summary commit together, so losing the version race leaves
	// nothing behind and the retry cannot duplicate the event.
	for attempt := 0; attempt < 2; attempt++ {
		res, err = s.agg.RecordStage(ctx, domainagg.RecordStageInput{
			UserID:  in.UserID,
			Payload: datatypes.JSON(raw),
			At:      s.now(),
			Project: s.projection(),
		})
		if !domainagg.IsCode(err, domainagg.CodeConflict) {
			break
		}
	}
	if err != nil {
		span.RecordError(err)
		s.metrics.IncSummaryRecompute("error")
		return nil, err
	}
	// runs already in flight read history before this event
	s.flight.Forget(flightKey(in.UserID))
	s.recorded(ctx, in.UserID, res.RecomputeSummaryResult)
	s.log.Info("stage updated", "user_id", in.UserID, "stage", in.Stage, "report_id", res.Event.ID)
	return res.Summary, nil
}

func (s *summaryService) NextSteps(ctx context.Context, userID uint) ([]types.NextStep, error) {
	sum, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]types.NextStep, 0, len(sum.NextSteps))
	out = append(out, sum.NextSteps...)
	return out, nil
}

func (s *summaryService) RecomputeAll(ctx context.Context) (int, error) {
	const op = "SummaryService.RecomputeAll"
	ids, err := s.summaries.ListUserIDs(ctx, nil)
	if err != nil {
		return 0, aggregates.MapError(op, err)
	}
	changed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return changed, aggregates.MapError(op, err)
		}
		before, err := s.summaries.GetByUserID(ctx, nil, id)
		if err != nil {
			return changed, aggregates.MapError(op, err)
		}
		after, err := s.Recompute(ctx, id)
		if err != nil {
			return changed, err
		}
		if after.Version != before.Version {
			changed++
		}
	}
	return changed, nil
}
