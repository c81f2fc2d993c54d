// Package pipeline reconciles source queries against a target catalog one at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cratedigger/internal/core"
	"cratedigger/internal/i18n"
	"cratedigger/internal/search"
)

// Searcher finds the best candidate for a query.
type Searcher interface {
	Search(ctx context.Context, query core.Query) (search.Result, error)
}

// Config holds per-run pipeline settings.
type Config struct {
	// Target labels metrics and log lines, e.g. "discogs-wantlist"
	Target string
	// TargetName is shown to the operator, e.g. "Discogs wantlist"
	TargetName   string
	Interactive  bool
	WriteTimeout time.Duration
	// MaxQueries limits how many queries are attempted; 0 means all
	MaxQueries int
}

// Deps are the collaborators of one pipeline. Confirmer and Prompter are optional.
type Deps struct {
	Searcher      Searcher
	Writer        core.TargetWriter
	Resolver      core.IDResolver
	WriteGovernor search.Governor
	Dedup         core.DedupStore
	Confirmer     core.SemanticConfirmer
	Prompter      core.Prompter
	Recorder      core.Recorder
	Localizer     *i18n.Localizer
	Logger        *zap.Logger
}

// Pipeline drives queries through search, confirmation, dedup and commit.
type Pipeline struct {
	config    Config
	searcher  Searcher
	writer    core.TargetWriter
	resolver  core.IDResolver
	governor  search.Governor
	dedup     core.DedupStore
	confirmer core.SemanticConfirmer
	prompter  core.Prompter
	recorder  core.Recorder
	localizer *i18n.Localizer
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a pipeline.
func New(config Config, deps Deps) *Pipeline {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = core.DefaultRequestTimeout
	}
	if config.TargetName == "" {
		config.TargetName = config.Target
	}
	if deps.Recorder == nil {
		deps.Recorder = core.NopRecorder{}
	}
	if deps.Localizer == nil {
		deps.Localizer = i18n.NewLocalizer(i18n.DefaultLanguage)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Pipeline{
		config:    config,
		searcher:  deps.Searcher,
		writer:    deps.Writer,
		resolver:  deps.Resolver,
		governor:  deps.WriteGovernor,
		dedup:     deps.Dedup,
		confirmer: deps.Confirmer,
		prompter:  deps.Prompter,
		recorder:  deps.Recorder,
		localizer: deps.Localizer,
		logger:    deps.Logger,
		now:       time.Now,
	}
}

// Seed loads the identifiers already present in the target into the dedup set.
func (p *Pipeline) Seed(ctx context.Context) error {
	ids, err := p.writer.FetchExistingTargetIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch existing %s entries: %w", p.config.Target, err)
	}

	p.dedup.Load(ids)
	p.recorder.SetDedupSize(p.config.Target, p.dedup.Size())

	p.logger.Info("Seeded duplicate set",
		zap.String("target", p.config.Target),
		zap.Int("existing", p.dedup.Size()))
	return nil
}

// Run processes queries strictly in order. Cancellation is checked before each query; the
// summary always reflects what was completed. A quota error stops the run and is recorded
// in RunSummary.Aborted.
func (p *Pipeline) Run(ctx context.Context, queries []core.Query) *core.RunSummary {
	summary := &core.RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: p.now(),
		Total:     len(queries),
	}
	defer func() {
		summary.FinishedAt = p.now()
	}()

	logger := p.logger.With(zap.String("run_id", summary.RunID), zap.String("target", p.config.Target))
	logger.Info("Starting run", zap.Int("queries", len(queries)))

	for i, query := range queries {
		if ctx.Err() != nil {
			summary.Cancelled = true
			logger.Info("Run cancelled", zap.Int("remaining", len(queries)-i))
			break
		}
		if p.config.MaxQueries > 0 && i >= p.config.MaxQueries {
			logger.Info("Reached query limit", zap.Int("max_queries", p.config.MaxQueries))
			break
		}

		start := p.now()
		result, err := p.process(ctx, query)
		if err != nil && ctx.Err() != nil {
			// interrupted mid-query: not attempted
			summary.Cancelled = true
			logger.Info("Run cancelled", zap.Int("remaining", len(queries)-i))
			break
		}

		summary.Record(result)
		p.recorder.RecordOutcome(p.config.Target, result.Outcome)
		p.recorder.RecordProcessingTime(p.config.Target, p.now().Sub(start))
		p.logResult(logger, i, len(queries), result)

		if err != nil {
			summary.Aborted = err
			logger.Error("Stopping run", zap.Error(err))
			break
		}
	}

	logger.Info("Run finished",
		zap.Int("attempted", summary.Attempted),
		zap.Int("written", summary.Written),
		zap.Int("duplicates", summary.SkippedDuplicate),
		zap.Int("unresolved", len(summary.Unresolved)))
	return summary
}

// process returns a non-nil error only when the run must stop.
func (p *Pipeline) process(ctx context.Context, query core.Query) (core.QueryResult, error) {
	result := core.QueryResult{Query: query, Stage: core.StageSearch}

	found, err := p.searcher.Search(ctx, query)
	if err != nil {
		return failed(result, err), stopErr(ctx, err)
	}

	if found.Best == nil {
		if len(found.Candidates) == 0 {
			if found.Err != nil {
				result.Decision = core.DecisionNoResult
				return failed(result, found.Err), nil
			}
			result.Outcome = core.OutcomeNoMatch
			result.Decision = core.DecisionNoResult
			result.Reason = "no candidates"
			return result, nil
		}

		result.Outcome = core.OutcomeNoMatch
		result.Decision = core.DecisionBelowThreshold
		result.Reason = fmt.Sprintf("best of %d candidates below threshold", len(found.Candidates))
		if found.Err != nil {
			result.Reason += "; another attempt failed: " + found.Err.Error()
		}
		return result, nil
	}

	best := *found.Best
	result.Match = &best
	result.Decision = core.DecisionAwaitingConfirmation
	p.recorder.RecordScore(p.config.Target, best.Score)

	if p.confirmer != nil {
		result.Stage = core.StageSemanticConfirm
		same, err := p.confirmer.ConfirmMatch(ctx, query.String(), best.Candidate.String())
		if err != nil {
			return failed(result, err), stopErr(ctx, err)
		}
		if !same {
			result.Outcome = core.OutcomeRejected
			result.Decision = core.DecisionRejected
			result.Reason = "semantic confirmation declined"
			return result, nil
		}
	}

	if p.config.Interactive && p.prompter != nil {
		result.Stage = core.StageUserConfirm
		decision, err := p.prompter.AskYesNo(ctx, p.confirmPrompt(query, best))
		if err != nil {
			return failed(result, err), stopErr(ctx, err)
		}
		if decision != core.DecisionYes {
			result.Outcome = core.OutcomeSkipped
			result.Decision = core.DecisionRejected
			result.Reason = "declined by operator"
			return result, nil
		}
	}

	result.Decision = core.DecisionConfirmed
	result.Stage = core.StageCommit
	return p.commit(ctx, result)
}

func (p *Pipeline) commit(ctx context.Context, result core.QueryResult) (core.QueryResult, error) {
	id, err := p.resolve(ctx, result.Match.Candidate.ID)
	if err != nil {
		return failed(result, err), stopErr(ctx, err)
	}
	result.TargetID = id

	if p.dedup.Has(id) {
		result.Outcome = core.OutcomeDuplicate
		result.Reason = "already in " + p.config.TargetName
		return result, nil
	}

	var written core.WriteResult
	err = p.governor.Do(ctx, func(ctx context.Context) (core.RateInfo, error) {
		callCtx, cancel := context.WithTimeout(ctx, p.config.WriteTimeout)
		defer cancel()

		res, err := p.writer.CommitWrite(callCtx, id)
		if res.Status == core.WriteRateLimited {
			res.RateInfo.Limited = true
		}
		p.recorder.RecordRemoteCall(p.governor.Name(), core.CallStatus(res.RateInfo, err))
		written = res
		return res.RateInfo, err
	})
	if err != nil {
		return failed(result, err), stopErr(ctx, err)
	}

	switch written.Status {
	case core.WriteCreated:
		result.Outcome = core.OutcomeDone
	case core.WriteDuplicate:
		result.Outcome = core.OutcomeDuplicate
		result.Reason = "target reported duplicate"
	default:
		return failed(result, fmt.Errorf("unexpected write status %s", written.Status)), nil
	}

	p.dedup.Add(id)
	p.recorder.SetDedupSize(p.config.Target, p.dedup.Size())
	return result, nil
}

// resolve maps a candidate ID to the identifier stored by the target, bounded by the write timeout.
func (p *Pipeline) resolve(ctx context.Context, id string) (string, error) {
	if p.resolver == nil {
		return id, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, p.config.WriteTimeout)
	defer cancel()

	resolved, err := p.resolver.ResolveID(callCtx, id)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", id, err)
	}
	return resolved, nil
}

func (p *Pipeline) confirmPrompt(query core.Query, best core.ScoredCandidate) string {
	return p.localizer.T("prompt.confirm_match",
		query.String(), best.Candidate.String(), best.Score, best.Candidate.URL, p.config.TargetName)
}

func (p *Pipeline) logResult(logger *zap.Logger, index, total int, result core.QueryResult) {
	fields := []zap.Field{
		zap.Int("position", index+1),
		zap.Int("total", total),
		zap.String("query", result.Query.String()),
		zap.String("outcome", result.Outcome.String()),
	}
	if result.Match != nil {
		fields = append(fields,
			zap.String("candidate", result.Match.Candidate.String()),
			zap.String("candidate_id", result.Match.Candidate.ID),
			zap.String("target_id", result.TargetID),
			zap.Float64("score", result.Match.Score))
	}

	switch result.Outcome {
	case core.OutcomeDone, core.OutcomeDuplicate, core.OutcomeSkipped:
		logger.Info("Query resolved", fields...)
	case core.OutcomeFailed:
		logger.Warn("Query failed", append(fields,
			zap.String("stage", string(result.Stage)),
			zap.String("reason", result.Reason))...)
	default:
		logger.Info("Query unresolved", append(fields, zap.String("reason", result.Reason))...)
	}
}

func failed(result core.QueryResult, err error) core.QueryResult {
	result.Outcome = core.OutcomeFailed
	result.Reason = err.Error()
	return result
}

// stopErr returns err when it must end the run: cancellation or an exhausted quota.
func stopErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, core.ErrQuotaExceeded) {
		return err
	}
	return nil
}
