package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Query is one source track whose catalog match is being sought.
type Query struct {
	Title  string
	Artist string
	// Album and SourceID are informational and never used for scoring.
	Album    string
	SourceID string
}

func (q Query) String() string {
	if q.Artist == "" {
		return q.Title
	}
	return q.Artist + " - " + q.Title
}

// Candidate is a record returned by an external catalog search for one query.
type Candidate struct {
	ID      string
	Title   string
	Artists []string
	Year    string
	Label   string
	URL     string
	Mode    string
	Query   Query
}

// ArtistLine joins the candidate artists the way they are displayed.
func (c Candidate) ArtistLine() string {
	return strings.Join(c.Artists, ", ")
}

func (c Candidate) String() string {
	s := c.Title
	if artists := c.ArtistLine(); artists != "" {
		s = artists + " - " + s
	}
	if c.Year != "" {
		s += " (" + c.Year + ")"
	}
	return s
}

// ScoredCandidate pairs a candidate with its similarity score in [0,100].
type ScoredCandidate struct {
	Candidate Candidate
	Score     float64
}

type MatchDecision int

const (
	// DecisionNoResult means the search returned nothing to score
	DecisionNoResult MatchDecision = iota
	// DecisionBelowThreshold means candidates exist but none cleared the threshold
	DecisionBelowThreshold
	// DecisionAwaitingConfirmation means a candidate cleared the threshold and waits for a gate
	DecisionAwaitingConfirmation
	// DecisionConfirmed means every configured gate accepted the candidate
	DecisionConfirmed
	// DecisionRejected means a gate refused the candidate
	DecisionRejected
)

func (d MatchDecision) String() string {
	switch d {
	case DecisionNoResult:
		return "no_result"
	case DecisionBelowThreshold:
		return "below_threshold"
	case DecisionAwaitingConfirmation:
		return "awaiting_confirmation"
	case DecisionConfirmed:
		return "confirmed"
	case DecisionRejected:
		return "rejected"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Outcome is the terminal state of one query in a run.
type Outcome int

const (
	OutcomeDone Outcome = iota
	OutcomeDuplicate
	OutcomeSkipped
	OutcomeNoMatch
	OutcomeRejected
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeNoMatch:
		return "no_match"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Unresolved reports whether the operator should review the query.
func (o Outcome) Unresolved() bool {
	return o == OutcomeNoMatch || o == OutcomeRejected || o == OutcomeFailed
}

// Stage names the pipeline step a query reached.
type Stage string

const (
	StageSearch          Stage = "search"
	StageSemanticConfirm Stage = "semantic-confirm"
	StageUserConfirm     Stage = "user-confirm"
	StageCommit          Stage = "commit"
)

// QueryResult is the per-query record kept in a RunSummary.
type QueryResult struct {
	Query    Query
	Outcome  Outcome
	Decision MatchDecision
	Stage    Stage
	Match    *ScoredCandidate
	// TargetID is the identifier written to the target; it differs from the candidate ID when a
	// resolver maps it, e.g. a Discogs master to its main release.
	TargetID string
	Reason   string
}

// UnresolvedQuery is a query that ended NoMatch, Rejected or Failed.
type UnresolvedQuery struct {
	Query   Query
	Outcome Outcome
	Stage   Stage
	Reason  string
}

// RunSummary aggregates the outcomes of one pipeline run.
type RunSummary struct {
	RunID            string
	StartedAt        time.Time
	FinishedAt       time.Time
	Total            int
	Attempted        int
	Matched          int
	Written          int
	SkippedDuplicate int
	Skipped          int
	NotFound         int
	Rejected         int
	Failed           int
	Cancelled        bool
	Aborted          error
	Results          []QueryResult
	Unresolved       []UnresolvedQuery
}

// Record folds one query result into the summary counters.
func (s *RunSummary) Record(r QueryResult) {
	s.Attempted++
	if r.Match != nil {
		s.Matched++
	}

	switch r.Outcome {
	case OutcomeDone:
		s.Written++
	case OutcomeDuplicate:
		s.SkippedDuplicate++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeNoMatch:
		s.NotFound++
	case OutcomeRejected:
		s.Rejected++
	case OutcomeFailed:
		s.Failed++
	}

	s.Results = append(s.Results, r)
	if r.Outcome.Unresolved() {
		s.Unresolved = append(s.Unresolved, UnresolvedQuery{
			Query:   r.Query,
			Outcome: r.Outcome,
			Stage:   r.Stage,
			Reason:  r.Reason,
		})
	}
}

// RateInfo is the rate-limit signal carried by a remote response.
type RateInfo struct {
	Remaining  *int
	RetryAfter time.Duration
	Limited    bool
}

// FetchResult is the answer of one catalog search attempt.
type FetchResult struct {
	Candidates []Candidate
	RateInfo   RateInfo
}

type WriteStatus int

const (
	WriteCreated WriteStatus = iota
	WriteDuplicate
	WriteRateLimited
)

func (s WriteStatus) String() string {
	switch s {
	case WriteCreated:
		return "created"
	case WriteDuplicate:
		return "duplicate"
	case WriteRateLimited:
		return "rate_limited"
	default:
		return fmt.Sprintf("write_status(%d)", int(s))
	}
}

// WriteResult is the answer of one write call. Transport and HTTP failures are returned as errors.
type WriteResult struct {
	Status   WriteStatus
	RateInfo RateInfo
}

// Decision is the operator's answer at the interactive confirmation boundary.
type Decision int

const (
	DecisionYes Decision = iota
	DecisionNo
)

type CatalogSearcher interface {
	FetchCandidates(ctx context.Context, query Query, mode string) (FetchResult, error)
}

type TargetWriter interface {
	CommitWrite(ctx context.Context, candidateID string) (WriteResult, error)
	FetchExistingTargetIDs(ctx context.Context) ([]string, error)
}

// IDResolver maps a candidate ID to the identifier the target stores. Dedup and writes use the
// resolved identifier.
type IDResolver interface {
	ResolveID(ctx context.Context, candidateID string) (string, error)
}

type SemanticConfirmer interface {
	ConfirmMatch(ctx context.Context, descriptionA, descriptionB string) (bool, error)
}

type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

type Prompter interface {
	AskYesNo(ctx context.Context, prompt string) (Decision, error)
}

type TrackSource interface {
	PlaylistQueries(ctx context.Context, playlistID string) ([]Query, error)
	PlaylistInfo(ctx context.Context, playlistID string) (*Playlist, error)
	NowPlaying(ctx context.Context) (*Query, error)
}

type Playlist struct {
	ID          string
	Name        string
	Description string
	TrackCount  int
	Owner       string
}

type DedupStore interface {
	Has(id string) bool
	Add(id string)
	Load(ids []string)
	Size() int
	Clear()
}

// Recorder receives pipeline events for metrics.
type Recorder interface {
	RecordOutcome(target string, outcome Outcome)
	RecordRemoteCall(dependency, status string)
	RecordScore(target string, score float64)
	RecordProcessingTime(target string, d time.Duration)
	SetDedupSize(target string, size int)
}

// NopRecorder discards every event.
type NopRecorder struct{}

func (NopRecorder) RecordOutcome(string, Outcome) {}
func (NopRecorder) RecordRemoteCall(string, string) {}
func (NopRecorder) RecordScore(string, float64) {}
func (NopRecorder) RecordProcessingTime(string, time.Duration) {}
func (NopRecorder) SetDedupSize(string, int) {}
