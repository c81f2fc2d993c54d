// Package main provides the CrateDigger CLI application entry point.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cratedigger/internal/core"
	"cratedigger/internal/i18n"
	"cratedigger/internal/spotify"
)

const (
	envPrefix    = "CRATEDIGGER"
	noneProvider = "none"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cratedigger",
	Short: "CrateDigger - Spotify → Discogs wantlist / YouTube playlist",
	Long: `CrateDigger reads a Spotify playlist or the track currently playing, finds each track on
Discogs or YouTube with fuzzy matching, and adds the matches to your Discogs wantlist or to a
YouTube playlist while staying inside every API's rate limits.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if viper.GetBool("generate-env-example") {
			return generateEnvExample(cmd)
		}
		return cmd.Help()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := core.DefaultConfig()
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&cfgFile, "config", "", "config file (default is .env)")
	flags.String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	flags.String("log-format", defaults.Log.Format, "log format (console, json)")
	flags.String("log-file", defaults.Log.File, "also append log entries to this file")
	supportedLangs := strings.Join(i18n.GetSupportedLanguages(), ", ")
	flags.String("language", i18n.DefaultLanguage, fmt.Sprintf("Operator message language (%s)", supportedLangs))

	flags.String("spotify-client-id", "", "Spotify client ID")
	flags.String("spotify-client-secret", "", "Spotify client secret")
	flags.String("spotify-redirect-url", defaults.Spotify.RedirectURL, "Spotify OAuth redirect URL")
	flags.String("spotify-token-path", defaults.Spotify.TokenPath, "Spotify token storage path")
	flags.String("match-by", defaults.Spotify.MatchBy, "Spotify field used as the search title (track, album)")

	flags.String("discogs-token", "", "Discogs personal access token")
	flags.String("discogs-username", "", "Discogs username owning the wantlist")
	flags.String("discogs-user-agent", defaults.Discogs.UserAgent, "User-Agent sent to Discogs")
	flags.String("discogs-base-url", defaults.Discogs.BaseURL, "Discogs API base URL")
	flags.String("discogs-format", defaults.Discogs.Format, "Discogs format filter (empty for any)")
	flags.StringSlice("discogs-modes", defaults.Discogs.Modes, "Discogs search attempts in order (release, master)")

	flags.String("youtube-credentials-path", defaults.YouTube.CredentialsPath, "Google OAuth client credentials file")
	flags.String("youtube-token-path", defaults.YouTube.TokenPath, "YouTube token storage path")
	flags.String("youtube-redirect-url", defaults.YouTube.RedirectURL, "YouTube OAuth redirect URL")
	flags.String("youtube-playlist-id", "", "Existing YouTube playlist to fill (default creates a new one)")
	flags.String("youtube-playlist-prefix", defaults.YouTube.PlaylistPrefix, "Prefix of created YouTube playlist names")
	flags.String("youtube-privacy", defaults.YouTube.Privacy, "Privacy of created YouTube playlists (private, unlisted, public)")
	flags.StringSlice("youtube-modes", defaults.YouTube.Modes, "YouTube search attempts in order (music, video)")
	flags.Int64("youtube-max-results", defaults.YouTube.MaxResults, "Videos requested per YouTube search")

	flags.String("llm-provider", noneProvider, "LLM provider (openai, anthropic, ollama, none)")
	flags.String("llm-model", "", "LLM model name")
	flags.String("llm-api-key", "", "LLM API key")
	flags.String("llm-base-url", "", "LLM API base URL")

	flags.Float64("match-threshold", defaults.Match.Threshold, "Minimum similarity score (0-100) a match must exceed")
	flags.Bool("match-fold", false, "Strip diacritics and punctuation before scoring")
	flags.Bool("semantic-confirm", false, "Ask the LLM to confirm every match")
	flags.Bool("translate", false, "Translate non-Latin titles with the LLM before scoring")
	flags.Int("translation-cache-size", defaults.Match.CacheSize, "Number of memoized translations")

	flags.Int("rate-discogs-per-minute", defaults.Rate.DiscogsCallsPerMinute, "Discogs calls per minute")
	flags.Int("rate-spotify-per-minute", defaults.Rate.SpotifyCallsPerMinute, "Spotify calls per minute")
	flags.Int("rate-youtube-per-minute", defaults.Rate.YouTubeCallsPerMinute, "YouTube calls per minute")
	flags.Int("rate-llm-per-minute", defaults.Rate.LLMCallsPerMinute, "LLM calls per minute")
	flags.Duration("rate-cooldown", defaults.Rate.Cooldown, "Pause after a 429 without Retry-After")
	flags.Duration("rate-low-water-cooldown", defaults.Rate.LowWaterCooldown, "Pause when the remaining quota runs low")
	flags.Int("rate-low-water-mark", defaults.Rate.LowWaterMark, "Remaining quota that triggers the low-water pause")
	flags.Int("max-retries", 0, "Rate-limit retries per call (0 retries until the API recovers)")

	flags.String("metrics-host", defaults.Server.Host, "Metrics server host")
	flags.Int("metrics-port", defaults.Server.Port, "Metrics server port (0 disables the server)")

	flags.Bool("interactive", false, "Ask before every write")
	flags.Int("max-tracks", 0, "Process at most this many tracks (0 for all)")
	flags.Duration("request-timeout", defaults.App.RequestTimeout, "Timeout of every remote call")
	flags.String("lock-file", defaults.App.LockFile, "Lock file preventing concurrent runs")
	flags.Bool("generate-env-example", false, "Generate .env.example file from current configuration and exit")

	if err := viper.BindPFlags(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(wantlistCmd, nowPlayingCmd, youtubeCmd)
}

func initConfig() {
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(config.Log)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	configureSpotify(cfg)
	configureDiscogs(cfg)
	configureYouTube(cfg)
	configureLLM(cfg)
	configureMatch(cfg)
	configureRate(cfg)
	configureServer(cfg)
	configureApp(cfg)

	return cfg
}

func configureSpotify(cfg *core.Config) {
	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = viper.GetString("spotify-client-secret")
	cfg.Spotify.RedirectURL = viper.GetString("spotify-redirect-url")
	cfg.Spotify.TokenPath = viper.GetString("spotify-token-path")
	cfg.Spotify.MatchBy = strings.ToLower(viper.GetString("match-by"))
}

func configureDiscogs(cfg *core.Config) {
	cfg.Discogs.Token = viper.GetString("discogs-token")
	cfg.Discogs.Username = viper.GetString("discogs-username")
	cfg.Discogs.UserAgent = viper.GetString("discogs-user-agent")
	cfg.Discogs.BaseURL = viper.GetString("discogs-base-url")
	cfg.Discogs.Format = viper.GetString("discogs-format")
	if modes := splitList(viper.GetStringSlice("discogs-modes")); len(modes) > 0 {
		cfg.Discogs.Modes = modes
	}
}

func configureYouTube(cfg *core.Config) {
	cfg.YouTube.CredentialsPath = viper.GetString("youtube-credentials-path")
	cfg.YouTube.TokenPath = viper.GetString("youtube-token-path")
	cfg.YouTube.RedirectURL = viper.GetString("youtube-redirect-url")
	cfg.YouTube.PlaylistID = viper.GetString("youtube-playlist-id")
	cfg.YouTube.PlaylistPrefix = viper.GetString("youtube-playlist-prefix")
	cfg.YouTube.Privacy = viper.GetString("youtube-privacy")
	if modes := splitList(viper.GetStringSlice("youtube-modes")); len(modes) > 0 {
		cfg.YouTube.Modes = modes
	}
	if maxResults := viper.GetInt64("youtube-max-results"); maxResults > 0 {
		cfg.YouTube.MaxResults = maxResults
	}
}

func configureLLM(cfg *core.Config) {
	cfg.LLM.Provider = strings.ToLower(viper.GetString("llm-provider"))
	cfg.LLM.Model = viper.GetString("llm-model")
	cfg.LLM.APIKey = viper.GetString("llm-api-key")
	cfg.LLM.BaseURL = viper.GetString("llm-base-url")
}

func configureMatch(cfg *core.Config) {
	cfg.Match.Threshold = viper.GetFloat64("match-threshold")
	cfg.Match.Fold = viper.GetBool("match-fold")
	cfg.Match.SemanticConfirm = viper.GetBool("semantic-confirm")
	cfg.Match.Translate = viper.GetBool("translate")
	if size := viper.GetInt("translation-cache-size"); size > 0 {
		cfg.Match.CacheSize = size
	}
}

func configureRate(cfg *core.Config) {
	setPositive(&cfg.Rate.DiscogsCallsPerMinute, viper.GetInt("rate-discogs-per-minute"))
	setPositive(&cfg.Rate.SpotifyCallsPerMinute, viper.GetInt("rate-spotify-per-minute"))
	setPositive(&cfg.Rate.YouTubeCallsPerMinute, viper.GetInt("rate-youtube-per-minute"))
	setPositive(&cfg.Rate.LLMCallsPerMinute, viper.GetInt("rate-llm-per-minute"))
	setPositive(&cfg.Rate.LowWaterMark, viper.GetInt("rate-low-water-mark"))

	if cooldown := viper.GetDuration("rate-cooldown"); cooldown > 0 {
		cfg.Rate.Cooldown = cooldown
	}
	if cooldown := viper.GetDuration("rate-low-water-cooldown"); cooldown > 0 {
		cfg.Rate.LowWaterCooldown = cooldown
	}
	cfg.Rate.MaxRetries = viper.GetInt("max-retries")
}

func configureServer(cfg *core.Config) {
	cfg.Server.Host = viper.GetString("metrics-host")
	cfg.Server.Port = viper.GetInt("metrics-port")
	cfg.Log.Level = viper.GetString("log-level")
	cfg.Log.Format = strings.ToLower(viper.GetString("log-format"))
	cfg.Log.File = viper.GetString("log-file")
}

func configureApp(cfg *core.Config) {
	cfg.App.Interactive = viper.GetBool("interactive")
	cfg.App.MaxTracks = viper.GetInt("max-tracks")
	if timeout := viper.GetDuration("request-timeout"); timeout > 0 {
		cfg.App.RequestTimeout = timeout
	}
	cfg.App.LockFile = viper.GetString("lock-file")

	language := viper.GetString("language")
	cfg.App.Language = i18n.NewLocalizer(language).Language()
	if language != "" && !i18n.Supported(language) {
		fmt.Fprintf(os.Stderr, "Warning: Unsupported language '%s', falling back to '%s'. Supported languages: %s\n",
			language, i18n.DefaultLanguage, strings.Join(i18n.GetSupportedLanguages(), ", "))
	}
}

func setPositive(target *int, value int) {
	if value > 0 {
		*target = value
	}
}

// splitList accepts both repeated flags and comma separated environment values.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func buildLogger(logConfig core.LogConfig) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(logConfig.Level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if logConfig.Format != "json" {
		cfg = zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	if logConfig.File != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, logConfig.File)
		cfg.ErrorOutputPaths = append(cfg.ErrorOutputPaths, logConfig.File)
	}

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func validateConfig() error {
	if err := validateSpotifyConfig(); err != nil {
		return err
	}
	if err := validateMatchConfig(); err != nil {
		return err
	}
	if err := validateLLMConfig(); err != nil {
		return err
	}
	return nil
}

func validateSpotifyConfig() error {
	if config.Spotify.ClientID == "" {
		return fmt.Errorf("spotify client ID is required")
	}
	if config.Spotify.ClientSecret == "" {
		return fmt.Errorf("spotify client secret is required")
	}
	if config.Spotify.MatchBy != spotify.MatchByTrack && config.Spotify.MatchBy != spotify.MatchByAlbum {
		return fmt.Errorf("match-by must be %q or %q, got %q", spotify.MatchByTrack, spotify.MatchByAlbum, config.Spotify.MatchBy)
	}
	return nil
}

func validateMatchConfig() error {
	if config.Match.Threshold < 0 || config.Match.Threshold >= 100 {
		return fmt.Errorf("match threshold must be in [0, 100), got %v", config.Match.Threshold)
	}
	if config.Rate.MaxRetries < 0 {
		return fmt.Errorf("max-retries must not be negative")
	}
	return nil
}

func validateLLMConfig() error {
	llmEnabled := config.LLM.Provider != noneProvider && config.LLM.Provider != ""
	if (config.Match.SemanticConfirm || config.Match.Translate) && !llmEnabled {
		return fmt.Errorf("semantic-confirm and translate need an LLM provider")
	}
	if llmEnabled && config.LLM.APIKey == "" && config.LLM.Provider != "ollama" {
		return fmt.Errorf("LLM API key is required for provider: %s", config.LLM.Provider)
	}
	return nil
}

func validateDiscogsConfig() error {
	if config.Discogs.Token == "" {
		return fmt.Errorf("discogs token is required")
	}
	if config.Discogs.Username == "" {
		return fmt.Errorf("discogs username is required")
	}
	return nil
}

func validateYouTubeConfig() error {
	if config.YouTube.CredentialsPath == "" {
		return fmt.Errorf("youtube credentials path is required")
	}
	switch config.YouTube.Privacy {
	case "private", "unlisted", "public":
		return nil
	default:
		return fmt.Errorf("youtube privacy must be private, unlisted or public, got %q", config.YouTube.Privacy)
	}
}
