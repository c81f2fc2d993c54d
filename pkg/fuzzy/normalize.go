package fuzzy

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"
	"golang.org/x/text/unicode/norm"
)

var (
	featRegex       = regexp.MustCompile(`(?i)\s*[\(\[]\s*(?:feat\.?|ft\.?|featuring|with)\s+[^\)\]]*[\)\]]`)
	trailingFeat    = regexp.MustCompile(`(?i)\s+(?:feat\.?|ft\.?|featuring)\s+.*$`)
	versionRegex    = regexp.MustCompile(`(?i)\s*[\(\[][^\)\]]*(?:remaster|remastered|deluxe|extended|radio edit|clean|explicit|mono|stereo|remix|version|edit)[^\)\]]*[\)\]]`)
	dashSuffixRegex = regexp.MustCompile(`(?i)\s+-\s+(?:\d{4}\s+)?(?:remaster|remastered|live|mono|stereo|single version|radio edit|remix|bonus track|acoustic|demo|edit|version).*$`)
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s&]+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

func (n *Normalizer) NormalizeArtist(artist string) string {
	artist = n.Fold(artist)

	artist = strings.ReplaceAll(artist, " and ", " & ")
	artist = strings.TrimPrefix(artist, "the ")

	return artist
}

// NormalizeTitle folds a title and drops featuring credits and version suffixes
// such as "(Remastered 2011)" or " - Live".
func (n *Normalizer) NormalizeTitle(title string) string {
	title = dashSuffixRegex.ReplaceAllString(title, "")
	title = featRegex.ReplaceAllString(title, "")
	title = versionRegex.ReplaceAllString(title, "")
	title = trailingFeat.ReplaceAllString(title, "")

	return n.Fold(title)
}

// Fold lower-cases text, strips diacritics and replaces punctuation with spaces.
func (n *Normalizer) Fold(text string) string {
	text = norm.NFKD.String(text)

	var result strings.Builder
	for _, r := range text {
		if !unicode.IsMark(r) {
			result.WriteRune(r)
		}
	}
	text = result.String()

	text = punctRegex.ReplaceAllString(text, " ")
	text = whitespaceRegex.ReplaceAllString(text, " ")

	text = strings.ToLower(text)
	text = strings.TrimSpace(text)

	return text
}

// CalculateSimilarity returns the Levenshtein similarity of s1 and s2 in [0,1].
func (n *Normalizer) CalculateSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}

	if len(s1) == 0 || len(s2) == 0 {
		return 0.0
	}

	similarity, err := edlib.StringsSimilarity(s1, s2, edlib.Levenshtein)
	if err != nil {
		return 0.0
	}

	return clamp01(float64(similarity))
}

// HasNonLatinLetters reports whether text contains letters outside the Latin script,
// e.g. Cyrillic, Greek, Han, Hangul or Kana.
func HasNonLatinLetters(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
