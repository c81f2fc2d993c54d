package fuzzy

import (
	"testing"
)

// runStringTransformationTest is a helper to run tests for string transformation functions.
func runStringTransformationTest(t *testing.T, testName string,
	transformFunc func(string) string, testCases []struct {
		name     string
		input    string
		expected string
	}) {
	t.Helper()
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			result := transformFunc(tt.input)
			if result != tt.expected {
				t.Errorf("%s() = %q, want %q", testName, result, tt.expected)
			}
		})
	}
}

func TestNormalizer_NormalizeArtist(t *testing.T) {
	normalizer := NewNormalizer()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Simple artist name",
			input:    "Nirvana",
			expected: "nirvana",
		},
		{
			name:     "Leading article",
			input:    "The Beatles",
			expected: "beatles",
		},
		{
			name:     "Artist with feat",
			input:    "Artist feat. Someone",
			expected: "artist feat someone",
		},
		{
			name:     "Artist with and",
			input:    "Simon and Garfunkel",
			expected: "simon & garfunkel",
		},
		{
			name:     "Artist with punctuation",
			input:    "P!nk",
			expected: "p nk",
		},
		{
			name:     "Artist with accents",
			input:    "Björk",
			expected: "bjork",
		},
	}

	runStringTransformationTest(t, "NormalizeArtist", normalizer.NormalizeArtist, tests)
}

func TestNormalizer_NormalizeTitle(t *testing.T) {
	normalizer := NewNormalizer()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Simple title",
			input:    "Hey Jude",
			expected: "hey jude",
		},
		{
			name:     "Title with featuring",
			input:    "Song Title (feat. Artist)",
			expected: "song title",
		},
		{
			name:     "Title with remix",
			input:    "Song Title (Remix)",
			expected: "song title",
		},
		{
			name:     "Title with remaster",
			input:    "Song Title (Remastered)",
			expected: "song title",
		},
		{
			name:     "Title with version info",
			input:    "Song Title - Radio Edit",
			expected: "song title",
		},
		{
			name:     "Title with punctuation",
			input:    "Don't Stop Me Now!",
			expected: "don t stop me now",
		},
		{
			name:     "Title with multiple spaces",
			input:    "Song    Title",
			expected: "song title",
		},
		{
			name:     "Spotify remaster suffix",
			input:    "Come Together - Remastered 2009",
			expected: "come together",
		},
		{
			name:     "Spotify year remaster suffix",
			input:    "Heroes - 2017 Remaster",
			expected: "heroes",
		},
		{
			name:     "Trailing featuring credit",
			input:    "Song Title feat. Someone Else",
			expected: "song title",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := normalizer.NormalizeTitle(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeTitle() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestNormalizer_CalculateSimilarity(t *testing.T) {
	normalizer := NewNormalizer()
	tests := createSimilarityTestCases()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := normalizer.CalculateSimilarity(tt.s1, tt.s2)
			if abs64(result-tt.expected) > tt.delta {
				t.Errorf("CalculateSimilarity() = %f, want %f (±%f)", result, tt.expected, tt.delta)
			}
		})
	}
}

// similarityTestCase represents a test case for similarity calculation.
type similarityTestCase struct {
	name     string
	s1       string
	s2       string
	expected float64
	delta    float64
}

// createSimilarityTestCases creates all test cases for similarity calculation.
func createSimilarityTestCases() []similarityTestCase {
	return []similarityTestCase{
		{"Identical strings", "hello", "hello", 1.0, 0.0},
		{"Completely different strings", "hello", "world", 0.2, 0.1},
		{"Similar strings", "hello", "hallo", 0.8, 0.1},
		{"Empty strings", "", "", 1.0, 0.0},
		{"One empty string", "hello", "", 0.0, 0.0},
		{"Substring", "hello world", "hello", 0.45, 0.1},
		{"Non-Latin strings", "ネヴァーマインド", "ネヴァーマインド", 1.0, 0.0},
		{"One rune apart", "nevermind", "nevermine", 0.89, 0.01},
	}
}

func TestNormalizer_Fold(t *testing.T) {
	normalizer := NewNormalizer()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Simple text",
			input:    "Hello World",
			expected: "hello world",
		},
		{
			name:     "Text with punctuation",
			input:    "Hello, World!",
			expected: "hello world",
		},
		{
			name:     "Text with accents",
			input:    "Café",
			expected: "cafe",
		},
		{
			name:     "Text with multiple spaces",
			input:    "Hello    World",
			expected: "hello world",
		},
		{
			name:     "Text with leading/trailing spaces",
			input:    "  Hello World  ",
			expected: "hello world",
		},
		{
			name:     "Mixed punctuation and spaces",
			input:    "Hello,  World!!!",
			expected: "hello world",
		},
	}

	runStringTransformationTest(t, "Fold", normalizer.Fold, tests)
}

func TestHasNonLatinLetters(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"Nevermind", false},
		{"Björk", false},
		{"1991", false},
		{"", false},
		{"Кино", true},
		{"ネヴァーマインド", true},
		{"소녀시대", true},
		{"Mixed Кино", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := HasNonLatinLetters(tt.input); got != tt.expected {
				t.Errorf("HasNonLatinLetters(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func BenchmarkNormalizer_NormalizeArtist(b *testing.B) {
	normalizer := NewNormalizer()
	artist := "The Beatles feat. John Lennon & Paul McCartney"

	b.ResetTimer()
	for range b.N {
		normalizer.NormalizeArtist(artist)
	}
}

func BenchmarkNormalizer_NormalizeTitle(b *testing.B) {
	normalizer := NewNormalizer()
	title := "Hey Jude (Remastered 2009) [feat. Orchestra] - Radio Edit"

	b.ResetTimer()
	for range b.N {
		normalizer.NormalizeTitle(title)
	}
}

func BenchmarkNormalizer_CalculateSimilarity(b *testing.B) {
	normalizer := NewNormalizer()
	s1 := "hey jude remastered"
	s2 := "hey jude original"

	b.ResetTimer()
	for range b.N {
		normalizer.CalculateSimilarity(s1, s2)
	}
}

// Helper function for floating point comparison.
func abs64(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
