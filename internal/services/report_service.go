package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/data/repos"
	types "github.com/saarzint/AI-Agents-Geoferry/internal/domain"
	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/observability"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
	"github.com/saarzint/AI-Agents-Geoferry/internal/realtime"
	"github.com/saarzint/AI-Agents-Geoferry/internal/realtime/bus"
)

type SubmitReportInput struct {
	AgentName string         `json:"agent_name" validate:"required,max=128"`
	UserID    uint           `json:"user_id" validate:"required"`
	Payload   datatypes.JSON `json:"payload" validate:"required"`
	Timestamp time.Time      `json:"timestamp"`
}

// SubmitResult carries the stored report after conflict detection, the detected
// disagreements and the refreshed summary. Summary is nil when the recompute failed;
// the report itself is already committed at that point.
type SubmitResult struct {
	Report    *types.AgentReport       `json:"report"`
	Conflicts []*types.ReportConflict  `json:"conflicts"`
	Summary   *types.AdmissionsSummary `json:"summary,omitempty"`
}

type ReportService interface {
	Submit(ctx context.Context, in SubmitReportInput) (*SubmitResult, error)
	MarkVerified(ctx context.Context, reportID uint) (*types.AgentReport, error)
	Get(ctx context.Context, reportID uint) (*types.AgentReport, error)
	ListByUser(ctx context.Context, userID uint) ([]*types.AgentReport, error)
	Conflicts(ctx context.Context, userID uint) ([]*types.ReportConflict, error)
}

type reportService struct {
	log       *logger.Logger
	reports   repos.AgentReportRepo
	conflicts repos.ReportConflictRepo
	agg       domainagg.ReportAggregate
	summaries SummaryService
	policy    PolicySource
	window    time.Duration
	metrics   *observability.Metrics
	events    eventPublisher
}

type ReportServiceDeps struct {
	Reports   repos.AgentReportRepo
	Conflicts repos.ReportConflictRepo
	Aggregate domainagg.ReportAggregate
	Summaries SummaryService
	Policy    PolicySource
	// Window overrides the policy's conflict window when positive.
	Window  time.Duration
	Metrics *observability.Metrics
	Bus     bus.Bus
}

func NewReportService(log *logger.Logger, deps ReportServiceDeps) ReportService {
	serviceLog := log.With("service", "ReportService")
	return &reportService{
		log:       serviceLog,
		reports:   deps.Reports,
		conflicts: deps.Conflicts,
		agg:       deps.Aggregate,
		summaries: deps.Summaries,
		policy:    deps.Policy,
		window:    deps.Window,
		metrics:   deps.Metrics,
		events:    eventPublisher{bus: deps.Bus, log: serviceLog, metrics: deps.Metrics},
	}
}

// Submit stores the report, then runs conflict detection and the summary recompute.
// Only the append is required to succeed: detection is advisory and the summary can be
// rebuilt on the next read, so their failures are logged and the committed report returned.
func (s *reportService) Submit(ctx context.Context, in SubmitReportInput) (*SubmitResult, error) {
	const op = "ReportService.Submit"
	if err := validateInput(op, in); err != nil {
		return nil, err
	}
	ctx, span := observability.StartSpan(ctx, op,
		attribute.Int64("user_id", int64(in.UserID)),
		attribute.String("agent_name", in.AgentName),
	)
	defer span.End()

	res, err := s.agg.Submit(ctx, domainagg.SubmitReportInput{
		AgentName: in.AgentName,
		UserID:    in.UserID,
		Payload:   in.Payload,
		Timestamp: in.Timestamp,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	report := res.Report
	s.metrics.IncReportSubmitted(report.AgentName)
	s.log.Info("report submitted", "report_id", report.ID, "user_id", report.UserProfileID, "agent_name", report.AgentName)

	out := &SubmitResult{Report: report, Conflicts: []*types.ReportConflict{}}
	doc := s.policy.Current()
	window := s.window
	if window <= 0 {
		window = conflictWindow(doc.Conflicts.WindowDays)
	}
	flagged, err := s.agg.FlagConflicts(ctx, domainagg.FlagConflictsInput{
		UserID:   report.UserProfileID,
		ReportID: report.ID,
		Window:   window,
		Compare:  doc.Conflicts.Comparator(),
	})
	if err != nil {
		s.log.Warn("conflict detection failed", "report_id", report.ID, "user_id", report.UserProfileID, "error", err)
	} else if len(flagged.Conflicts) > 0 {
		out.Conflicts = flagged.Conflicts
		if fresh, gerr := s.reports.GetByID(ctx, nil, report.ID); gerr == nil {
			out.Report = fresh
		} else {
			out.Report.ConflictFlag = true
		}
		fields := make([]string, 0, len(flagged.Conflicts))
		for _, c := range flagged.Conflicts {
			s.metrics.IncReportConflict(c.Field)
			fields = append(fields, c.Field)
		}
		s.events.publish(ctx, realtime.EventReportConflict, report.UserProfileID, map[string]any{
			"report_id":              report.ID,
			"conflicting_report_ids": flagged.ConflictingReportIDs,
			"fields":                 fields,
		})
	}

	s.events.publish(ctx, realtime.EventReportSubmitted, report.UserProfileID, map[string]any{
		"report_id":     report.ID,
		"agent_name":    report.AgentName,
		"conflict_flag": out.Report.ConflictFlag,
	})

	if s.summaries != nil {
		sum, err := s.summaries.Refresh(ctx, report.UserProfileID)
		if err != nil {
			s.log.Warn("summary recompute after submit failed", "report_id", report.ID, "user_id", report.UserProfileID, "error", err)
		} else {
			out.Summary = sum
		}
	}
	return out, nil
}

func (s *reportService) MarkVerified(ctx context.Context, reportID uint) (*types.AgentReport, error) {
	res, err := s.agg.MarkVerified(ctx, domainagg.MarkVerifiedInput{ReportID: reportID})
	if err != nil {
		return nil, err
	}
	if res.Changed {
		s.log.Info("report verified", "report_id", reportID, "user_id", res.Report.UserProfileID)
		if s.summaries != nil {
			if _, err := s.summaries.Refresh(ctx, res.Report.UserProfileID); err != nil {
				s.log.Warn("summary recompute after verify failed", "report_id", reportID, "error", err)
			}
		}
	}
	return res.Report, nil
}

func (s *reportService) Get(ctx context.Context, reportID uint) (*types.AgentReport, error) {
	const op = "ReportService.Get"
	if reportID == 0 {
		return nil, aggregates.MapError(op, aggregates.ValidationError("report_id required"))
	}
	r, err := s.reports.GetByID(ctx, nil, reportID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	return r, nil
}

func (s *reportService) ListByUser(ctx context.Context, userID uint) ([]*types.AgentReport, error) {
	const op = "ReportService.ListByUser"
	if userID == 0 {
		return nil, aggregates.MapError(op, aggregates.ValidationError("user_id required"))
	}
	out, err := s.reports.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	return out, nil
}

func (s *reportService) Conflicts(ctx context.Context, userID uint) ([]*types.ReportConflict, error) {
	const op = "ReportService.Conflicts"
	if userID == 0 {
		return nil, aggregates.MapError(op, aggregates.ValidationError("user_id required"))
	}
	out, err := s.conflicts.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	return out, nil
}

func conflictWindow(days int) time.Duration {
	if days <= 0 {
		return aggregates.DefaultConflictWindow
	}
	return time.Duration(days) * 24 * time.Hour
}
