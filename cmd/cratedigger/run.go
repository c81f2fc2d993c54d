package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cratedigger/internal/core"
	"cratedigger/internal/discogs"
	httpserver "cratedigger/internal/http"
	"cratedigger/internal/i18n"
	"cratedigger/internal/llm"
	"cratedigger/internal/match"
	"cratedigger/internal/pipeline"
	"cratedigger/internal/prompt"
	"cratedigger/internal/ratelimit"
	"cratedigger/internal/report"
	"cratedigger/internal/search"
	"cratedigger/internal/spotify"
	"cratedigger/internal/store"
	"cratedigger/internal/youtube"
)

var wantlistCmd = &cobra.Command{
	Use:   "wantlist <spotify-playlist>",
	Short: "Add the Discogs releases of a Spotify playlist to your wantlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return execute(validateDiscogsConfig, func(ctx context.Context, rt *session) error {
			return runWantlist(ctx, rt, args[0])
		})
	},
}

var nowPlayingCmd = &cobra.Command{
	Use:   "now-playing",
	Short: "Find the record currently playing on Spotify and add it to your Discogs wantlist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// The single-track command asks by default and searches by album.
		if !flagSet(cmd, "interactive") {
			config.App.Interactive = true
		}
		if !flagSet(cmd, "match-by") {
			config.Spotify.MatchBy = spotify.MatchByAlbum
		}
		return execute(validateDiscogsConfig, runNowPlaying)
	},
}

var youtubeCmd = &cobra.Command{
	Use:   "youtube <spotify-playlist>",
	Short: "Copy a Spotify playlist into a YouTube playlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return execute(validateYouTubeConfig, func(ctx context.Context, rt *session) error {
			return runYouTube(ctx, rt, args[0])
		})
	},
}

// session holds what every command shares: one governor per remote dependency, the metrics
// recorder and the authenticated Spotify source.
type session struct {
	registry  *prometheus.Registry
	recorder  core.Recorder
	localizer *i18n.Localizer

	spotifyGovernor *ratelimit.Governor
	discogsGovernor *ratelimit.Governor
	youtubeGovernor *ratelimit.Governor
	llmGovernor     *ratelimit.Governor

	spotify *spotify.Client
}

func newSession() *session {
	registry := httpserver.NewRegistry()
	governor := func(name string, callsPerMinute int) *ratelimit.Governor {
		return ratelimit.New(name, ratelimit.ConfigFrom(config.Rate, callsPerMinute), logger.Named("ratelimit"))
	}

	return &session{
		registry:        registry,
		recorder:        httpserver.NewMetrics(registry),
		localizer:       i18n.NewLocalizer(config.App.Language),
		spotifyGovernor: governor("spotify", config.Rate.SpotifyCallsPerMinute),
		discogsGovernor: governor("discogs", config.Rate.DiscogsCallsPerMinute),
		youtubeGovernor: governor("youtube", config.Rate.YouTubeCallsPerMinute),
		llmGovernor:     governor("llm", config.Rate.LLMCallsPerMinute),
	}
}

func flagSet(cmd *cobra.Command, name string) bool {
	if cmd.Flags().Changed(name) {
		return true
	}
	_, ok := os.LookupEnv(flagToEnvVar(name))
	return ok
}

// execute validates the configuration, takes the run lock and runs fn beside the optional
// metrics server until fn returns or the process is signalled.
func execute(validate func() error, fn func(ctx context.Context, rt *session) error) error {
	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	lock := flock.New(config.App.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", config.App.LockFile, err)
	}
	if !locked {
		return fmt.Errorf("another cratedigger run holds %s", config.App.LockFile)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("Failed to release lock", zap.Error(err))
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt := newSession()

	g, gCtx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gCtx)
	defer stop()

	if config.Server.Port > 0 {
		server := httpserver.NewServer(&config.Server, rt.registry, logger.Named("http"))
		g.Go(func() error {
			return server.Start(runCtx)
		})
	}

	g.Go(func() error {
		defer stop()

		rt.spotify = spotify.NewClient(&config.Spotify, config.App.RequestTimeout, rt.spotifyGovernor, logger.Named("spotify"))
		if err := rt.spotify.Authenticate(runCtx); err != nil {
			return fmt.Errorf("failed to authenticate with Spotify: %w", err)
		}
		return fn(runCtx, rt)
	})

	if err := g.Wait(); err != nil {
		logger.Error("CrateDigger stopped with error", zap.Error(err))
		return err
	}

	logStats(rt)
	return nil
}

func runWantlist(ctx context.Context, rt *session, playlist string) error {
	queries, err := rt.spotify.PlaylistQueries(ctx, playlist)
	if err != nil {
		fmt.Println(rt.localizer.T("error.playlist_missing"))
		return err
	}

	p, err := newPipeline(rt, wantlistTarget(rt))
	if err != nil {
		return err
	}
	if err := p.Seed(ctx); err != nil {
		return err
	}

	summary := p.Run(ctx, queries)
	printSummary(rt, summary)
	return nil
}

func runNowPlaying(ctx context.Context, rt *session) error {
	query, err := rt.spotify.NowPlaying(ctx)
	if errors.Is(err, core.ErrNothingPlaying) {
		fmt.Println(rt.localizer.T("error.nothing_playing"))
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Println(rt.localizer.T("nowplaying.track", query.String()))

	p, err := newPipeline(rt, wantlistTarget(rt))
	if err != nil {
		return err
	}
	if err := p.Seed(ctx); err != nil {
		return err
	}

	summary := p.Run(ctx, []core.Query{*query})
	if len(summary.Results) == 1 && summary.Results[0].Match != nil {
		fmt.Println(rt.localizer.T("nowplaying.link", summary.Results[0].Match.Candidate.URL))
	} else {
		fmt.Println(rt.localizer.T("nowplaying.no_match", query.String()))
	}

	printSummary(rt, summary)
	return nil
}

func runYouTube(ctx context.Context, rt *session, playlist string) error {
	client := youtube.NewClient(&config.YouTube, config.App.RequestTimeout, rt.youtubeGovernor, logger.Named("youtube"))
	if err := client.Authenticate(ctx); err != nil {
		return fmt.Errorf("failed to authenticate with YouTube: %w", err)
	}

	info, err := rt.spotify.PlaylistInfo(ctx, playlist)
	if err != nil {
		fmt.Println(rt.localizer.T("error.playlist_missing"))
		return err
	}
	queries, err := rt.spotify.PlaylistQueries(ctx, playlist)
	if err != nil {
		fmt.Println(rt.localizer.T("error.playlist_missing"))
		return err
	}

	if client.PlaylistID() == "" {
		if _, err := client.CreatePlaylist(ctx, info); err != nil {
			if errors.Is(err, core.ErrQuotaExceeded) {
				fmt.Println(rt.localizer.T("error.quota_exceeded"))
			}
			return err
		}
		fmt.Println(rt.localizer.T("summary.playlist_create", client.PlaylistTitle(info)))
	}

	p, err := newPipeline(rt, pipelineTarget{
		name:     "youtube-playlist",
		label:    "YouTube playlist",
		modes:    config.YouTube.Modes,
		searcher: client,
		writer:   client,
		governor: rt.youtubeGovernor,
	})
	if err != nil {
		return err
	}
	if err := p.Seed(ctx); err != nil {
		return err
	}

	summary := p.Run(ctx, queries)
	printSummary(rt, summary)
	fmt.Println(rt.localizer.T("summary.playlist", youtube.PlaylistURL(client.PlaylistID())))
	return nil
}

type pipelineTarget struct {
	name     string
	label    string
	modes    []string
	searcher core.CatalogSearcher
	writer   core.TargetWriter
	resolver core.IDResolver
	governor *ratelimit.Governor
}

func wantlistTarget(rt *session) pipelineTarget {
	client := discogs.NewClient(&config.Discogs, config.App.RequestTimeout, rt.discogsGovernor, logger.Named("discogs"))
	return pipelineTarget{
		name:     "discogs-wantlist",
		label:    "Discogs wantlist",
		modes:    config.Discogs.Modes,
		searcher: client,
		writer:   client,
		resolver: client,
		governor: rt.discogsGovernor,
	}
}

func newPipeline(rt *session, target pipelineTarget) (*pipeline.Pipeline, error) {
	var confirmer core.SemanticConfirmer
	var translator core.Translator

	if config.Match.SemanticConfirm || config.Match.Translate {
		provider, err := llm.NewProvider(&config.LLM, config.App.RequestTimeout, rt.llmGovernor, logger.Named("llm"))
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM provider: %w", err)
		}
		if config.Match.SemanticConfirm {
			confirmer = provider
		}
		if config.Match.Translate {
			translator = provider
		}
	}

	var prompter core.Prompter
	if config.App.Interactive {
		terminal, err := prompt.NewStdio(rt.localizer)
		if err != nil {
			return nil, err
		}
		prompter = terminal
	}

	scorer := match.NewScorer(config.Match, translator, logger.Named("match"))
	strategy := search.New(search.Config{
		Modes:          target.modes,
		Threshold:      config.Match.Threshold,
		Timeout:        config.App.RequestTimeout,
		TimeoutRetries: search.DefaultTimeoutRetries,
	}, target.searcher, scorer, target.governor, rt.recorder, logger.Named("search"))

	return pipeline.New(pipeline.Config{
		Target:       target.name,
		TargetName:   target.label,
		Interactive:  config.App.Interactive,
		WriteTimeout: config.App.RequestTimeout,
		MaxQueries:   config.App.MaxTracks,
	}, pipeline.Deps{
		Searcher:      strategy,
		Writer:        target.writer,
		Resolver:      target.resolver,
		WriteGovernor: target.governor,
		Dedup:         store.NewDedupStore(store.DefaultExpectedIDs, store.DefaultFalsePositiveRate),
		Confirmer:     confirmer,
		Prompter:      prompter,
		Recorder:      rt.recorder,
		Localizer:     rt.localizer,
		Logger:        logger.Named("pipeline"),
	}), nil
}

func printSummary(rt *session, summary *core.RunSummary) {
	fmt.Println()
	fmt.Print(report.Render(summary, rt.localizer))

	if errors.Is(summary.Aborted, core.ErrQuotaExceeded) {
		fmt.Println(rt.localizer.T("error.quota_exceeded"))
	}
}

func logStats(rt *session) {
	for _, governor := range []*ratelimit.Governor{
		rt.spotifyGovernor, rt.discogsGovernor, rt.youtubeGovernor, rt.llmGovernor,
	} {
		stats := governor.GetStats()
		if stats.Calls == 0 {
			continue
		}
		logger.Debug("Rate governor stats",
			zap.String("dependency", stats.Name),
			zap.Int("calls", stats.Calls),
			zap.Int("rateLimited", stats.RateLimited),
			zap.Int("retries", stats.Retries),
			zap.Duration("waited", stats.TotalWaitTime))
	}
}
