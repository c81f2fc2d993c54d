// Package search runs ordered, rate-governed catalog search attempts for one query.
package search

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"cratedigger/internal/core"
)

const (
	// DefaultTimeoutRetries is how often one attempt is repeated after a search timeout
	DefaultTimeoutRetries = 2
)

// Selector picks the best candidate for a query.
type Selector interface {
	SelectBest(
		ctx context.Context,
		query core.Query,
		candidates []core.Candidate,
		threshold float64,
	) (*core.ScoredCandidate, []core.ScoredCandidate)
}

// Governor spaces remote calls and retries rate-limited ones.
type Governor interface {
	Name() string
	Do(ctx context.Context, op func(ctx context.Context) (core.RateInfo, error)) error
}

// Config holds the search settings shared by every query of a run.
type Config struct {
	// Modes are the attempts in order, e.g. "release" then "master"
	Modes          []string
	Threshold      float64
	Timeout        time.Duration
	TimeoutRetries int
}

// Result is the outcome of searching one query.
type Result struct {
	Best       *core.ScoredCandidate
	Mode       string
	Candidates []core.Candidate
	Scored     []core.ScoredCandidate
	Attempts   int
	// Err is the last failed attempt's error, if any attempt failed
	Err        error
}

// Strategy tries each mode in order and stops at the first one yielding a match above threshold.
type Strategy struct {
	config   Config
	searcher core.CatalogSearcher
	selector Selector
	governor Governor
	recorder core.Recorder
	logger   *zap.Logger
}

// New creates a search strategy. recorder may be nil.
func New(
	config Config,
	searcher core.CatalogSearcher,
	selector Selector,
	governor Governor,
	recorder core.Recorder,
	logger *zap.Logger,
) *Strategy {
	if len(config.Modes) == 0 {
		config.Modes = []string{""}
	}
	if config.Timeout <= 0 {
		config.Timeout = core.DefaultRequestTimeout
	}
	if config.TimeoutRetries < 0 {
		config.TimeoutRetries = 0
	}
	if recorder == nil {
		recorder = core.NopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Strategy{
		config:   config,
		searcher: searcher,
		selector: selector,
		governor: governor,
		recorder: recorder,
		logger:   logger,
	}
}

// Search runs the attempts for query. Remote failures end an attempt without a result and are
// kept in Result.Err; the only errors returned are cancellation, retry exhaustion and quota
// exhaustion.
func (s *Strategy) Search(ctx context.Context, query core.Query) (Result, error) {
	var result Result

	for i, mode := range s.config.Modes {
		result.Attempts = i + 1

		candidates, err := s.attempt(ctx, query, mode)
		if err != nil {
			if fatal(ctx, err) {
				return result, err
			}
			s.logger.Warn("Search attempt failed",
				zap.String("query", query.String()),
				zap.String("mode", mode),
				zap.Error(err))
			result.Err = err
			continue
		}

		best, scored := s.selector.SelectBest(ctx, query, candidates, s.config.Threshold)

		// An empty attempt never hides the candidates of an earlier one.
		if len(candidates) > 0 || len(result.Candidates) == 0 {
			result.Mode = mode
			result.Candidates = candidates
			result.Scored = scored
		}

		if best != nil {
			result.Best = best
			s.logger.Debug("Search matched",
				zap.String("query", query.String()),
				zap.String("mode", mode),
				zap.String("candidate", best.Candidate.String()),
				zap.Float64("score", best.Score))
			return result, nil
		}

		s.logger.Debug("No candidate above threshold",
			zap.String("query", query.String()),
			zap.String("mode", mode),
			zap.Int("candidates", len(candidates)))
	}

	return result, nil
}

// attempt fetches one mode's candidates, repeating on timeouts. Rate-limit retries happen
// inside the governor.
func (s *Strategy) attempt(ctx context.Context, query core.Query, mode string) ([]core.Candidate, error) {
	for try := 0; ; try++ {
		var fetched core.FetchResult

		err := s.governor.Do(ctx, func(ctx context.Context) (core.RateInfo, error) {
			callCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
			defer cancel()

			res, err := s.searcher.FetchCandidates(callCtx, query, mode)
			s.recorder.RecordRemoteCall(s.governor.Name(), core.CallStatus(res.RateInfo, err))
			fetched = res
			return res.RateInfo, err
		})
		if err == nil {
			return fetched.Candidates, nil
		}

		if ctx.Err() == nil && core.IsTimeout(err) && try < s.config.TimeoutRetries {
			s.logger.Info("Search timed out, retrying",
				zap.String("query", query.String()),
				zap.String("mode", mode),
				zap.Int("attempt", try+1))
			continue
		}

		return nil, err
	}
}

func fatal(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, core.ErrRetriesExhausted) || errors.Is(err, core.ErrQuotaExceeded)
}
