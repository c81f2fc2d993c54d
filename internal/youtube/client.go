// Package youtube searches YouTube videos and fills a playlist with the matches.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"cratedigger/internal/core"
	"cratedigger/internal/oauth"
)

const (
	// ModeMusic restricts the search to the Music video category
	ModeMusic = "music"
	// ModeVideo searches every video
	ModeVideo = "video"
	// MusicCategoryID is the YouTube video category for music
	MusicCategoryID = "10"
	// PlaylistItemsPageSize is the maximum page size of playlistItems.list
	PlaylistItemsPageSize = 50
	// DefaultPlaylistPrefix is prepended to the Spotify playlist name
	DefaultPlaylistPrefix = "Spotify: "

	authState     = "cratedigger-auth-state"
	topicSuffix   = " - Topic"
	watchURL      = "https://www.youtube.com/watch?v="
	playlistURL   = "https://www.youtube.com/playlist?list="
	videoResource = "youtube#video"
)

var (
	// bracketedNoise matches "(Official Video)", "[HD]" and similar title decorations
	bracketedNoise = regexp.MustCompile(`\s*[\(\[][^\)\]]*[\)\]]`)

	quotaReasons     = map[string]bool{"quotaExceeded": true, "dailyLimitExceeded": true}
	rateLimitReasons = map[string]bool{"rateLimitExceeded": true, "userRateLimitExceeded": true}
)

// Pacer runs one remote call under the YouTube rate governor.
type Pacer interface {
	Do(ctx context.Context, op func(ctx context.Context) (core.RateInfo, error)) error
}

// Client implements core.CatalogSearcher and core.TargetWriter against the YouTube Data API.
type Client struct {
	config     *core.YouTubeConfig
	timeout    time.Duration
	service    *youtube.Service
	pacer      Pacer
	logger     *zap.Logger
	playlistID string
}

func NewClient(config *core.YouTubeConfig, timeout time.Duration, pacer Pacer, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = core.DefaultRequestTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		config:     config,
		timeout:    timeout,
		pacer:      pacer,
		logger:     logger,
		playlistID: config.PlaylistID,
	}
}

// Authenticate loads the OAuth client credentials, restores the saved token or runs the
// OAuth flow, and builds the API service.
func (c *Client) Authenticate(ctx context.Context) error {
	data, err := os.ReadFile(c.config.CredentialsPath)
	if err != nil {
		return fmt.Errorf("failed to read YouTube credentials %s: %w", c.config.CredentialsPath, err)
	}

	oauthConfig, err := google.ConfigFromJSON(data, youtube.YoutubeScope)
	if err != nil {
		return fmt.Errorf("failed to parse YouTube credentials: %w", err)
	}
	if c.config.RedirectURL != "" {
		oauthConfig.RedirectURL = c.config.RedirectURL
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: c.timeout})

	token, err := oauth.LoadToken(c.config.TokenPath)
	if err != nil {
		c.logger.Info("No saved YouTube token found, starting OAuth flow")
		token, err = c.startOAuthFlow(ctx, oauthConfig)
		if err != nil {
			return err
		}
	}

	// oauth2 keeps only the transport of the context client.
	httpClient := oauthConfig.Client(ctx, token)
	httpClient.Timeout = c.timeout

	service, err := youtube.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return fmt.Errorf("failed to create YouTube service: %w", err)
	}
	c.service = service

	c.logger.Info("Authenticated with YouTube")
	return nil
}

// FetchCandidates runs one video search. ModeMusic restricts it to the music category.
func (c *Client) FetchCandidates(ctx context.Context, query core.Query, mode string) (core.FetchResult, error) {
	if c.service == nil {
		return core.FetchResult{}, core.ErrNotAuthenticated
	}

	call := c.service.Search.List([]string{"id", "snippet"}).
		Q(query.String()).
		Type("video").
		MaxResults(c.config.MaxResults).
		Context(ctx)
	if mode == ModeMusic {
		call = call.VideoCategoryId(MusicCategoryID)
	}

	resp, err := call.Do()
	if err != nil {
		info, err := classify(err)
		return core.FetchResult{RateInfo: info}, err
	}

	candidates := make([]core.Candidate, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		candidates = append(candidates, toCandidate(item, mode, query))
	}

	c.logger.Debug("YouTube search",
		zap.String("query", query.String()),
		zap.String("mode", mode),
		zap.Int("results", len(candidates)))

	return core.FetchResult{Candidates: candidates}, nil
}

// CreatePlaylist creates the playlist the run writes into and makes it the write target.
func (c *Client) CreatePlaylist(ctx context.Context, source *core.Playlist) (string, error) {
	if c.service == nil {
		return "", core.ErrNotAuthenticated
	}

	privacy := c.config.Privacy
	if privacy == "" {
		privacy = "private"
	}

	playlist := &youtube.Playlist{
		Snippet: &youtube.PlaylistSnippet{
			Title:       c.PlaylistTitle(source),
			Description: fmt.Sprintf("Converted from Spotify playlist: %s\n\n%s", source.Name, source.Description),
		},
		Status: &youtube.PlaylistStatus{
			PrivacyStatus: privacy,
		},
	}

	var created *youtube.Playlist
	err := c.paced(ctx, func(ctx context.Context) (core.RateInfo, error) {
		var callErr error
		created, callErr = c.service.Playlists.Insert([]string{"snippet", "status"}, playlist).Context(ctx).Do()
		if callErr != nil {
			return classify(callErr)
		}
		return core.RateInfo{}, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to create YouTube playlist: %w", err)
	}

	c.playlistID = created.Id
	c.logger.Info("Created YouTube playlist",
		zap.String("title", playlist.Snippet.Title),
		zap.String("playlistID", created.Id))

	return created.Id, nil
}

// PlaylistTitle is the title CreatePlaylist gives the copy of source.
func (c *Client) PlaylistTitle(source *core.Playlist) string {
	prefix := c.config.PlaylistPrefix
	if prefix == "" {
		prefix = DefaultPlaylistPrefix
	}
	return prefix + source.Name
}

// PlaylistID returns the playlist writes go to.
func (c *Client) PlaylistID() string {
	return c.playlistID
}

// CommitWrite inserts a video into the target playlist.
func (c *Client) CommitWrite(ctx context.Context, videoID string) (core.WriteResult, error) {
	if c.service == nil {
		return core.WriteResult{}, core.ErrNotAuthenticated
	}
	if c.playlistID == "" {
		return core.WriteResult{}, fmt.Errorf("no YouTube playlist to write to")
	}

	item := &youtube.PlaylistItem{
		Snippet: &youtube.PlaylistItemSnippet{
			PlaylistId: c.playlistID,
			ResourceId: &youtube.ResourceId{
				Kind:    videoResource,
				VideoId: videoID,
			},
		},
	}

	_, err := c.service.PlaylistItems.Insert([]string{"snippet"}, item).Context(ctx).Do()
	if err == nil {
		return core.WriteResult{Status: core.WriteCreated}, nil
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
		return core.WriteResult{Status: core.WriteDuplicate}, nil
	}

	info, err := classify(err)
	if err != nil {
		return core.WriteResult{RateInfo: info}, err
	}
	return core.WriteResult{Status: core.WriteRateLimited, RateInfo: info}, nil
}

// FetchExistingTargetIDs lists the videos already in the target playlist. A playlist that is
// about to be created has none.
func (c *Client) FetchExistingTargetIDs(ctx context.Context) ([]string, error) {
	if c.playlistID == "" {
		return nil, nil
	}
	if c.service == nil {
		return nil, core.ErrNotAuthenticated
	}

	var ids []string
	pageToken := ""
	for {
		var page *youtube.PlaylistItemListResponse
		err := c.paced(ctx, func(ctx context.Context) (core.RateInfo, error) {
			var callErr error
			page, callErr = c.service.PlaylistItems.List([]string{"contentDetails"}).
				PlaylistId(c.playlistID).
				MaxResults(PlaylistItemsPageSize).
				PageToken(pageToken).
				Context(ctx).
				Do()
			if callErr != nil {
				return classify(callErr)
			}
			return core.RateInfo{}, nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list playlist items: %w", err)
		}

		for _, item := range page.Items {
			if item.ContentDetails != nil && item.ContentDetails.VideoId != "" {
				ids = append(ids, item.ContentDetails.VideoId)
			}
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	c.logger.Info("Loaded YouTube playlist items", zap.Int("videos", len(ids)))
	return ids, nil
}

// paced runs op under the pacer. Every attempt gets its own deadline.
func (c *Client) paced(ctx context.Context, op func(ctx context.Context) (core.RateInfo, error)) error {
	timed := func(ctx context.Context) (core.RateInfo, error) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return op(ctx)
	}

	if c.pacer != nil {
		return c.pacer.Do(ctx, timed)
	}

	info, err := timed(ctx)
	if err == nil && info.Limited {
		return core.ErrRateLimited
	}
	return err
}

func (c *Client) startOAuthFlow(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	authURL := config.AuthCodeURL(authState, oauth2.AccessTypeOffline)
	code, err := oauth.PromptCode(os.Stdin, os.Stdout, "YouTube", authURL)
	if err != nil {
		return nil, err
	}

	token, err := config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code for token: %w", err)
	}

	if saveErr := oauth.SaveToken(c.config.TokenPath, token); saveErr != nil {
		c.logger.Warn("Failed to save token", zap.Error(saveErr))
	}

	c.logger.Info("OAuth flow completed successfully")
	return token, nil
}

// classify maps an API error onto the rate signal or a sentinel. Rate limiting is not an error.
func classify(err error) (core.RateInfo, error) {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return core.RateInfo{}, fmt.Errorf("%w: youtube: %w", core.ErrRemote, err)
	}

	for _, item := range apiErr.Errors {
		if quotaReasons[item.Reason] {
			return core.RateInfo{}, fmt.Errorf("%w: %s", core.ErrQuotaExceeded, apiErr.Message)
		}
		if rateLimitReasons[item.Reason] {
			return limitedInfo(apiErr), nil
		}
	}
	if apiErr.Code == http.StatusTooManyRequests {
		return limitedInfo(apiErr), nil
	}

	return core.RateInfo{}, fmt.Errorf("%w: youtube returned %d: %s", core.ErrRemote, apiErr.Code, apiErr.Message)
}

func limitedInfo(apiErr *googleapi.Error) core.RateInfo {
	info := core.RateInfo{Limited: true}
	if seconds, err := strconv.Atoi(apiErr.Header.Get("Retry-After")); err == nil && seconds > 0 {
		info.RetryAfter = time.Duration(seconds) * time.Second
	}
	return info
}

func toCandidate(item *youtube.SearchResult, mode string, query core.Query) core.Candidate {
	snippet := item.Snippet
	artists, title := splitVideoTitle(html.UnescapeString(snippet.Title))

	channel := strings.TrimSuffix(html.UnescapeString(snippet.ChannelTitle), topicSuffix)
	if channel != "" {
		artists = append(artists, channel)
	}

	var year string
	if len(snippet.PublishedAt) >= 4 {
		year = snippet.PublishedAt[:4]
	}

	return core.Candidate{
		ID:      item.Id.VideoId,
		Title:   title,
		Artists: artists,
		Year:    year,
		URL:     VideoURL(item.Id.VideoId),
		Mode:    mode,
		Query:   query,
	}
}

// splitVideoTitle splits "Artist - Title (Official Video)" into artist and bare title.
func splitVideoTitle(raw string) ([]string, string) {
	cleaned := strings.TrimSpace(bracketedNoise.ReplaceAllString(raw, ""))
	if cleaned == "" {
		cleaned = strings.TrimSpace(raw)
	}

	artist, title, found := strings.Cut(cleaned, " - ")
	if !found {
		return nil, cleaned
	}
	return []string{strings.TrimSpace(artist)}, strings.TrimSpace(title)
}

func VideoURL(videoID string) string {
	return watchURL + videoID
}

func PlaylistURL(playlistID string) string {
	return playlistURL + playlistID
}
