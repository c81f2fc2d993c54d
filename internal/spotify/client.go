// Package spotify reads playlists and the currently playing track from the Spotify Web API.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"cratedigger/internal/core"
	"cratedigger/internal/oauth"
)

const (
	// PlaylistPageSize is the maximum page size of the playlist items endpoint
	PlaylistPageSize = 100
	// MatchByTrack uses the track name as the query title
	MatchByTrack = "track"
	// MatchByAlbum uses the album name as the query title
	MatchByAlbum = "album"

	authState = "cratedigger-auth-state"
)

var (
	playlistURLRegex = regexp.MustCompile(`(?:https?://)?open\.spotify\.com/(?:[a-z-]+/)?playlist/([a-zA-Z0-9]+)`)
	playlistURIRegex = regexp.MustCompile(`spotify:playlist:([a-zA-Z0-9]+)`)
	playlistIDRegex  = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
)

// Pacer runs one remote call under the Spotify rate governor.
type Pacer interface {
	Do(ctx context.Context, op func(ctx context.Context) (core.RateInfo, error)) error
}

// Client implements core.TrackSource.
type Client struct {
	config  *core.SpotifyConfig
	timeout time.Duration
	logger  *zap.Logger
	client  *spotify.Client
	auth    *spotifyauth.Authenticator
	pacer   Pacer
}

func NewClient(config *core.SpotifyConfig, timeout time.Duration, pacer Pacer, logger *zap.Logger) *Client {
	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(config.RedirectURL),
		spotifyauth.WithScopes(
			spotifyauth.ScopePlaylistReadPrivate,
			spotifyauth.ScopePlaylistReadCollaborative,
			spotifyauth.ScopeUserReadCurrentlyPlaying,
			spotifyauth.ScopeUserReadPlaybackState,
		),
		spotifyauth.WithClientID(config.ClientID),
		spotifyauth.WithClientSecret(config.ClientSecret),
	)

	if timeout <= 0 {
		timeout = core.DefaultRequestTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		config:  config,
		timeout: timeout,
		logger:  logger,
		auth:    auth,
		pacer:   pacer,
	}
}

// Authenticate restores the saved token or runs the OAuth flow.
func (c *Client) Authenticate(ctx context.Context) error {
	token, err := oauth.LoadToken(c.config.TokenPath)
	if err != nil {
		c.logger.Info("No saved Spotify token found, starting OAuth flow")
		return c.startOAuthFlow(ctx)
	}

	client := spotify.New(c.httpClient(ctx, token))
	c.client = client

	user, err := client.CurrentUser(ctx)
	if err != nil {
		c.logger.Warn("Saved Spotify token invalid, starting OAuth flow", zap.Error(err))
		return c.startOAuthFlow(ctx)
	}

	c.logger.Info("Authenticated with Spotify", zap.String("user", user.DisplayName))
	return nil
}

// PlaylistInfo returns the playlist's name and metadata.
func (c *Client) PlaylistInfo(ctx context.Context, playlistID string) (*core.Playlist, error) {
	if c.client == nil {
		return nil, core.ErrNotAuthenticated
	}

	id, err := ExtractPlaylistID(playlistID)
	if err != nil {
		return nil, err
	}

	var playlist *spotify.FullPlaylist
	err = c.paced(ctx, func(ctx context.Context) error {
		var callErr error
		playlist, callErr = c.client.GetPlaylist(ctx, spotify.ID(id))
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist %s: %w", id, err)
	}

	return &core.Playlist{
		ID:          string(playlist.ID),
		Name:        playlist.Name,
		Description: playlist.Description,
		TrackCount:  int(playlist.Tracks.Total),
		Owner:       playlist.Owner.DisplayName,
	}, nil
}

// PlaylistQueries pages through a playlist and returns one query per track, in playlist order.
// Episodes and local files without metadata are skipped.
func (c *Client) PlaylistQueries(ctx context.Context, playlistID string) ([]core.Query, error) {
	if c.client == nil {
		return nil, core.ErrNotAuthenticated
	}

	id, err := ExtractPlaylistID(playlistID)
	if err != nil {
		return nil, err
	}

	var queries []core.Query
	skipped := 0
	offset := 0

	for {
		var page *spotify.PlaylistItemPage
		err := c.paced(ctx, func(ctx context.Context) error {
			var callErr error
			page, callErr = c.client.GetPlaylistItems(ctx, spotify.ID(id),
				spotify.Limit(PlaylistPageSize), spotify.Offset(offset))
			return callErr
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get playlist items: %w", err)
		}

		for i := range page.Items {
			track := page.Items[i].Track.Track
			if track == nil || track.Name == "" {
				skipped++
				continue
			}
			queries = append(queries, c.toQuery(track))
		}

		if len(page.Items) < PlaylistPageSize {
			break
		}
		offset += PlaylistPageSize
	}

	c.logger.Info("Retrieved playlist tracks",
		zap.String("playlistID", id),
		zap.Int("count", len(queries)),
		zap.Int("skipped", skipped))

	return queries, nil
}

// NowPlaying returns the query for the track currently playing, or core.ErrNothingPlaying.
func (c *Client) NowPlaying(ctx context.Context) (*core.Query, error) {
	if c.client == nil {
		return nil, core.ErrNotAuthenticated
	}

	var current *spotify.CurrentlyPlaying
	err := c.paced(ctx, func(ctx context.Context) error {
		var callErr error
		current, callErr = c.client.PlayerCurrentlyPlaying(ctx)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get currently playing: %w", err)
	}

	if current == nil || current.Item == nil || !current.Playing {
		return nil, core.ErrNothingPlaying
	}

	query := c.toQuery(current.Item)
	return &query, nil
}

// ExtractPlaylistID accepts a playlist URL, a spotify:playlist: URI or a bare ID.
func ExtractPlaylistID(input string) (string, error) {
	input = strings.TrimSpace(input)

	if matches := playlistURLRegex.FindStringSubmatch(input); len(matches) > 1 {
		return matches[1], nil
	}
	if matches := playlistURIRegex.FindStringSubmatch(input); len(matches) > 1 {
		return matches[1], nil
	}
	if playlistIDRegex.MatchString(input) {
		return input, nil
	}

	return "", fmt.Errorf("couldn't extract Spotify playlist ID from %q", input)
}

func (c *Client) toQuery(track *spotify.FullTrack) core.Query {
	artist := ""
	if len(track.Artists) > 0 {
		artist = track.Artists[0].Name
	}

	title := track.Name
	if c.config.MatchBy == MatchByAlbum && track.Album.Name != "" {
		title = track.Album.Name
	}

	return core.Query{
		Title:    title,
		Artist:   artist,
		Album:    track.Album.Name,
		SourceID: string(track.ID),
	}
}

// paced runs op under the pacer, reporting Spotify 429s as rate limiting.
// paced runs op under the pacer. Every attempt gets its own deadline.
func (c *Client) paced(ctx context.Context, op func(ctx context.Context) error) error {
	call := func(ctx context.Context) (core.RateInfo, error) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		err := op(ctx)
		var spotifyErr spotify.Error
		if errors.As(err, &spotifyErr) && spotifyErr.Status == http.StatusTooManyRequests {
			return core.RateInfo{Limited: true}, nil
		}
		return core.RateInfo{}, err
	}

	if c.pacer == nil {
		info, err := call(ctx)
		if err == nil && info.Limited {
			return core.ErrRateLimited
		}
		return err
	}
	return c.pacer.Do(ctx, call)
}

func (c *Client) httpClient(ctx context.Context, token *oauth2.Token) *http.Client {
	client := c.auth.Client(ctx, token)
	client.Timeout = c.timeout
	return client
}

func (c *Client) startOAuthFlow(ctx context.Context) error {
	code, err := oauth.PromptCode(os.Stdin, os.Stdout, "Spotify", c.auth.AuthURL(authState))
	if err != nil {
		return err
	}

	token, err := c.auth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code for token: %w", err)
	}

	if saveErr := oauth.SaveToken(c.config.TokenPath, token); saveErr != nil {
		c.logger.Warn("Failed to save token", zap.Error(saveErr))
	}

	client := spotify.New(c.httpClient(ctx, token))
	c.client = client

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}

	c.logger.Info("OAuth flow completed successfully", zap.String("user", user.DisplayName))
	return nil
}
