package core

import (
	"time"
)

const (
	// DefaultMatchThreshold sits in the 65-80 band the wantlist and playlist variants were tuned to
	DefaultMatchThreshold = 70.0
	// DefaultDiscogsCallsPerMinute is the authenticated Discogs budget
	DefaultDiscogsCallsPerMinute = 60
	// DefaultSpotifyCallsPerMinute keeps playlist paging well below Spotify's window
	DefaultSpotifyCallsPerMinute = 100
	// DefaultYouTubeCallsPerMinute spaces YouTube Data API calls
	DefaultYouTubeCallsPerMinute = 60
	// DefaultLLMCallsPerMinute spaces confirmation and translation calls
	DefaultLLMCallsPerMinute = 30
	// DefaultRateLimitCooldown is the pause after a 429 without Retry-After
	DefaultRateLimitCooldown = 60 * time.Second
	// DefaultLowWaterCooldown is the proactive pause when the remaining quota runs low
	DefaultLowWaterCooldown = 30 * time.Second
	// DefaultLowWaterMark is the remaining-quota value that triggers the proactive pause
	DefaultLowWaterMark = 5
	// DefaultRequestTimeout bounds every remote call
	DefaultRequestTimeout = 30 * time.Second
	// DefaultTranslationCacheSize bounds the memoized translations
	DefaultTranslationCacheSize = 1024
)

type Config struct {
	Spotify SpotifyConfig
	Discogs DiscogsConfig
	YouTube YouTubeConfig
	LLM     LLMConfig
	Match   MatchConfig
	Rate    RateConfig
	Server  ServerConfig
	Log     LogConfig
	App     AppConfig
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenPath    string
	// MatchBy selects which Spotify field becomes the query title: "track" or "album"
	MatchBy string
}

type DiscogsConfig struct {
	Token     string
	Username  string
	UserAgent string
	BaseURL   string
	Format    string
	// Modes are the ordered search attempts, e.g. release then master
	Modes []string
}

type YouTubeConfig struct {
	CredentialsPath string
	TokenPath       string
	RedirectURL     string
	PlaylistID      string
	PlaylistPrefix  string
	Privacy         string
	Modes           []string
	MaxResults      int64
}

type LLMConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

type MatchConfig struct {
	Threshold float64
	// Fold strips diacritics, punctuation, featuring credits and version suffixes before scoring
	Fold            bool
	SemanticConfirm bool
	Translate       bool
	CacheSize       int
}

type RateConfig struct {
	DiscogsCallsPerMinute int
	SpotifyCallsPerMinute int
	YouTubeCallsPerMinute int
	LLMCallsPerMinute     int
	Cooldown              time.Duration
	LowWaterCooldown      time.Duration
	LowWaterMark          int
	// MaxRetries bounds 429 retries per call; 0 retries until the remote recovers
	MaxRetries int
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
	// File receives a copy of every log entry when set
	File string
}

type AppConfig struct {
	Interactive    bool
	MaxTracks      int
	RequestTimeout time.Duration
	LockFile       string
	Language       string
}

func DefaultConfig() *Config {
	return &Config{
		Spotify: SpotifyConfig{
			RedirectURL: "http://127.0.0.1:8080/callback",
			TokenPath:   "./spotify_token.json",
			MatchBy:     "track",
		},
		Discogs: DiscogsConfig{
			UserAgent: "CrateDigger/1.0",
			BaseURL:   "https://api.discogs.com",
			Format:    "vinyl",
			Modes:     []string{"release", "master"},
		},
		YouTube: YouTubeConfig{
			CredentialsPath: "./credentials.json",
			TokenPath:       "./youtube_token.json",
			RedirectURL:     "http://127.0.0.1:8080/callback",
			PlaylistPrefix:  "Spotify: ",
			Privacy:         "private",
			Modes:           []string{"music", "video"},
			MaxResults:      5,
		},
		LLM: LLMConfig{
			Provider: "none",
		},
		Match: MatchConfig{
			Threshold: DefaultMatchThreshold,
			CacheSize: DefaultTranslationCacheSize,
		},
		Rate: RateConfig{
			DiscogsCallsPerMinute: DefaultDiscogsCallsPerMinute,
			SpotifyCallsPerMinute: DefaultSpotifyCallsPerMinute,
			YouTubeCallsPerMinute: DefaultYouTubeCallsPerMinute,
			LLMCallsPerMinute:     DefaultLLMCallsPerMinute,
			Cooldown:              DefaultRateLimitCooldown,
			LowWaterCooldown:      DefaultLowWaterCooldown,
			LowWaterMark:          DefaultLowWaterMark,
		},
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         0,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		App: AppConfig{
			RequestTimeout: DefaultRequestTimeout,
			LockFile:       "./cratedigger.lock",
			Language:       "en",
		},
	}
}
