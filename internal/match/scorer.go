// Package match scores catalog candidates against source tracks.
package match

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"cratedigger/internal/core"
	"cratedigger/pkg/fuzzy"
)

const (
	// maxScore is the top of the similarity scale
	maxScore = 100.0
)

// Scorer computes title/artist similarity between a query and a candidate.
type Scorer struct {
	normalizer   *fuzzy.Normalizer
	fold         bool
	translator   core.Translator
	translations *lru.Cache[string, string]
	logger       *zap.Logger
}

// NewScorer creates a scorer. translator may be nil; fold enables diacritic and punctuation
// folding on top of lower-casing.
func NewScorer(config core.MatchConfig, translator core.Translator, logger *zap.Logger) *Scorer {
	size := config.CacheSize
	if size <= 0 {
		size = core.DefaultTranslationCacheSize
	}
	cache, _ := lru.New[string, string](size)

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scorer{
		normalizer:   fuzzy.NewNormalizer(),
		fold:         config.Fold,
		translator:   translator,
		translations: cache,
		logger:       logger,
	}
}

// Score returns the average of title and artist similarity in [0,100].
func (s *Scorer) Score(ctx context.Context, query core.Query, candidate core.Candidate) float64 {
	title := s.fieldScore(ctx, query.Title, []string{candidate.Title}, s.normalizer.NormalizeTitle)
	artist := s.fieldScore(ctx, query.Artist, artistVariants(candidate.Artists), s.normalizer.NormalizeArtist)

	return (title + artist) / 2
}

// SelectBest scores every candidate and returns the highest-scoring one when its score is above
// threshold. Ties keep the first-seen candidate. All scores are returned for diagnostics.
func (s *Scorer) SelectBest(
	ctx context.Context,
	query core.Query,
	candidates []core.Candidate,
	threshold float64,
) (*core.ScoredCandidate, []core.ScoredCandidate) {
	scored := make([]core.ScoredCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		scored = append(scored, core.ScoredCandidate{
			Candidate: candidate,
			Score:     s.Score(ctx, query, candidate),
		})
	}

	return PickBest(scored, threshold), scored
}

// PickBest returns the first highest-scoring entry if it is strictly above threshold.
func PickBest(scored []core.ScoredCandidate, threshold float64) *core.ScoredCandidate {
	bestIndex := -1
	for i := range scored {
		if bestIndex < 0 || scored[i].Score > scored[bestIndex].Score {
			bestIndex = i
		}
	}

	if bestIndex < 0 || scored[bestIndex].Score <= threshold {
		return nil
	}

	best := scored[bestIndex]
	return &best
}

// fieldScore compares one query field against every variant of the candidate field and keeps
// the best raw or translated similarity.
func (s *Scorer) fieldScore(ctx context.Context, queryText string, variants []string, folder func(string) string) float64 {
	queryNorm := s.normalize(queryText, folder)

	best := 0.0
	for _, variant := range variants {
		score := s.similarity(queryNorm, s.normalize(variant, folder))

		if s.translator != nil && fuzzy.HasNonLatinLetters(variant) {
			if translated := s.translate(ctx, variant); translated != variant {
				score = max(score, s.similarity(queryNorm, s.normalize(translated, folder)))
			}
		}

		best = max(best, score)
	}

	return best
}

func (s *Scorer) similarity(a, b string) float64 {
	return s.normalizer.CalculateSimilarity(a, b) * maxScore
}

// normalize lower-cases text; with folding enabled the field-specific folder also strips
// diacritics, featuring credits and version suffixes.
func (s *Scorer) normalize(text string, folder func(string) string) string {
	if s.fold {
		return folder(text)
	}
	return strings.TrimSpace(strings.ToLower(text))
}

// translate fails open: any translator error keeps the original text.
func (s *Scorer) translate(ctx context.Context, text string) string {
	if cached, ok := s.translations.Get(text); ok {
		return cached
	}

	translated, err := s.translator.Translate(ctx, text)
	if err != nil {
		s.logger.Debug("Translation failed, scoring raw text",
			zap.String("text", text),
			zap.Error(err))
		return text
	}

	translated = strings.TrimSpace(translated)
	if translated == "" {
		return text
	}

	s.translations.Add(text, translated)
	return translated
}

// artistVariants yields the joined artist line followed by each individual artist.
func artistVariants(artists []string) []string {
	if len(artists) == 0 {
		return []string{""}
	}
	if len(artists) == 1 {
		return artists
	}

	variants := make([]string, 0, len(artists)+1)
	variants = append(variants, strings.Join(artists, ", "))
	variants = append(variants, artists...)
	return variants
}
