package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"forgeai/fitness-agent/internal/domain"
	"forgeai/fitness-agent/internal/metrics"
	"forgeai/fitness-agent/internal/plan"
)

const (
	stageLocal     = "local"
	stageReextract = "reextract"
)

// Archiver keeps raw agent replies that could not be turned into a plan.
// It returns a key that identifies the stored copy.
type Archiver interface {
	Archive(ctx context.Context, raw string) (string, error)
}

// Generation is a structured plan together with the agent text it came from.
type Generation struct {
	Plan    domain.WorkoutPlan
	RawText string
}

// Generator runs the two-stage pipeline: local parse, then at most one
// re-extraction round trip through the same agent.
type Generator struct {
	completer      Completer
	archiver       Archiver
	metricsManager *metrics.Manager
}

// NewGenerator wires the pipeline. archiver may be nil.
func NewGenerator(completer Completer, archiver Archiver, metricsManager *metrics.Manager) *Generator {
	return &Generator{
		completer:      completer,
		archiver:       archiver,
		metricsManager: metricsManager,
	}
}

// Generate builds the prompt, calls the agent and structures its reply.
func (g *Generator) Generate(
	ctx context.Context,
	userInput string,
	profile *domain.UserProfile,
	history []domain.HistoryEntry,
	state domain.AgentState,
) (*Generation, error) {
	raw, err := g.ask(ctx, BuildPrompt(userInput, profile, history, state))
	if err != nil {
		return nil, err
	}

	res := g.Resolve(ctx, raw)
	if res.Outcome != plan.OutcomeParsed {
		return nil, res.Err
	}
	return &Generation{Plan: res.Plan, RawText: raw}, nil
}

// Resolve turns raw agent text into a plan. The result is either
// OutcomeParsed or OutcomeFailed, never OutcomeNeedsFallback.
func (g *Generator) Resolve(ctx context.Context, raw string) plan.Result {
	local := plan.Parse(raw)
	g.observe(stageLocal, local.Outcome)
	if local.Outcome == plan.OutcomeParsed {
		return local
	}

	log.Warnf("local workout parse failed, re-extracting: %s", local.Err)

	text, err := g.ask(ctx, ReextractPrompt(raw))
	if err != nil {
		g.observe(stageReextract, plan.OutcomeFailed)
		return g.fail(ctx, raw, fmt.Errorf("%w: %v; re-extraction request: %w", ErrParseWorkout, local.Err, err))
	}

	second := plan.Parse(text)
	if second.Outcome != plan.OutcomeParsed {
		g.observe(stageReextract, plan.OutcomeFailed)
		return g.fail(ctx, raw, fmt.Errorf("%w: %v; re-extraction: %v", ErrParseWorkout, local.Err, second.Err))
	}

	g.observe(stageReextract, plan.OutcomeParsed)
	return second
}

// Ask forwards a prompt verbatim. It serves the proxy endpoint.
func (g *Generator) Ask(ctx context.Context, prompt string) (string, error) {
	return g.ask(ctx, prompt)
}

func (g *Generator) ask(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := g.completer.Complete(ctx, prompt)
	g.metricsManager.HistAgentCallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		g.metricsManager.CounterAgentErrors.WithLabelValues(errorKind(err)).Inc()
		return "", err
	}
	return text, nil
}

func (g *Generator) fail(ctx context.Context, raw string, err error) plan.Result {
	if g.archiver != nil {
		key, archiveErr := g.archiver.Archive(ctx, raw)
		if archiveErr != nil {
			log.Errorf("archive unparseable agent reply: %s", archiveErr)
		} else {
			log.Warnf("unparseable agent reply archived as %s", key)
		}
	}
	log.Errorf("workout parse failed terminally: %s", err)
	return plan.Result{Outcome: plan.OutcomeFailed, Err: err}
}

func (g *Generator) observe(stage string, outcome plan.Outcome) {
	g.metricsManager.CounterParseOutcomes.WithLabelValues(stage, outcome.String()).Inc()
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrUpstreamAuth):
		return "auth"
	case errors.Is(err, ErrEmptyReply):
		return "empty"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "transport"
	}
}
