package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/aggregates"
	types "github.com/saarzint/AI-Agents-Geoferry/internal/domain"
	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/observability"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
)

const defaultRunConcurrency = 4

// AgentOutput is what one agent invocation produced and what it cost.
type AgentOutput struct {
	Payload    map[string]any
	TokensUsed int64
	Provider   string
}

// AgentWork performs an agent's external work. It may return a non-zero TokensUsed
// together with an error when billable work happened before the failure.
type AgentWork func(ctx context.Context, profile *types.UserProfile) (AgentOutput, error)

type AgentTask struct {
	AgentName     string
	Endpoint      string
	EstimatedCost int64
	// Overdraft runs the work even when the reservation is denied.
	Overdraft bool
	Work      AgentWork
}

type AgentRunResult struct {
	AgentName   string        `json:"agent_name"`
	Reservation *Reservation  `json:"reservation,omitempty"`
	Settlement  *Settlement   `json:"settlement,omitempty"`
	Submitted   *SubmitResult `json:"submitted,omitempty"`
	Err         error         `json:"-"`
}

// AgentRunner drives one agent invocation through reserve, work, settle and submit.
// It never retries; a failed step is returned to the caller with whatever already committed.
type AgentRunner struct {
	log         *logger.Logger
	profiles    ProfileService
	ledger      LedgerService
	reports     ReportService
	summaries   SummaryService
	concurrency int
}

func NewAgentRunner(log *logger.Logger, profiles ProfileService, ledger LedgerService, reports ReportService, summaries SummaryService) *AgentRunner {
	return &AgentRunner{
		log:         log.With("service", "AgentRunner"),
		profiles:    profiles,
		ledger:      ledger,
		reports:     reports,
		summaries:   summaries,
		concurrency: defaultRunConcurrency,
	}
}

func (r *AgentRunner) Run(ctx context.Context, userID uint, task AgentTask) (*AgentRunResult, error) {
	const op = "AgentRunner.Run"
	task.AgentName = strings.TrimSpace(task.AgentName)
	if task.AgentName == "" || task.Work == nil {
		return nil, aggregates.MapError(op, aggregates.ValidationError("agent name and work required"))
	}
	if task.Endpoint == "" {
		task.Endpoint = task.AgentName
	}
	ctx, span := observability.StartSpan(ctx, op,
		attribute.Int64("user_id", int64(userID)),
		attribute.String("agent_name", task.AgentName),
	)
	defer span.End()

	res := &AgentRunResult{AgentName: task.AgentName}
	resv, err := r.ledger.Reserve(ctx, userID, task.Endpoint, task.EstimatedCost)
	res.Reservation = resv
	if err != nil {
		if !domainagg.IsCode(err, domainagg.CodeInsufficientBalance) || !task.Overdraft {
			return res, err
		}
		r.log.Warn("running agent past denied reservation", "user_id", userID, "agent_name", task.AgentName, "balance", resv.Balance, "estimated_cost", task.EstimatedCost)
	}

	profile, err := r.profiles.Get(ctx, userID)
	if err != nil {
		return res, err
	}
	out, workErr := task.Work(ctx, profile)
	if out.Provider == "" {
		out.Provider = "unknown"
	}

	if workErr == nil || out.TokensUsed != 0 {
		settled, err := r.ledger.Settle(ctx, SettleInput{
			UserID:     userID,
			Endpoint:   task.Endpoint,
			Provider:   out.Provider,
			TokensUsed: &out.TokensUsed,
		})
		if err != nil {
			return res, errors.Join(workErr, err)
		}
		res.Settlement = settled
	}
	if workErr != nil {
		span.RecordError(workErr)
		return res, fmt.Errorf("%s: agent work: %w", task.AgentName, workErr)
	}

	payload := out.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return res, aggregates.MapError(op, aggregates.ValidationError(fmt.Sprintf("agent payload: %v", err)))
	}
	submitted, err := r.reports.Submit(ctx, SubmitReportInput{
		AgentName: task.AgentName,
		UserID:    userID,
		Payload:   datatypes.JSON(raw),
	})
	if err != nil {
		return res, err
	}
	res.Submitted = submitted
	return res, nil
}

// RunAll fans the tasks out concurrently for one user. A failing task does not cancel
// the others; every result is returned in task order along with the joined errors and
// the summary as it stands after all of them.
func (r *AgentRunner) RunAll(ctx context.Context, userID uint, tasks []AgentTask) ([]*AgentRunResult, *types.AdmissionsSummary, error) {
	results := make([]*AgentRunResult, len(tasks))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, task := range tasks {
		g.Go(func() error {
			res, err := r.Run(ctx, userID, task)
			if res == nil {
				res = &AgentRunResult{AgentName: task.AgentName}
			}
			res.Err = err
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	var summary *types.AdmissionsSummary
	if r.summaries != nil {
		sum, err := r.summaries.Get(ctx, userID)
		if err != nil {
			errs = append(errs, err)
		}
		summary = sum
	}
	return results, summary, errors.Join(errs...)
}
