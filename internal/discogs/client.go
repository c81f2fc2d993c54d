// Package discogs searches the Discogs database and maintains a user's wantlist.
package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"cratedigger/internal/core"
)

const (
	// WebURL prefixes the relative URIs returned by the API
	WebURL = "https://www.discogs.com"
	// SearchResultsPerPage bounds each search attempt
	SearchResultsPerPage = 10
	// WantsPerPage is the page size used when seeding from the wantlist
	WantsPerPage = 100
	// ModeMaster searches master releases; their main release is added to the wantlist
	ModeMaster = "master"
	// ModeRelease searches individual releases
	ModeRelease = "release"

	masterIDPrefix  = "master/"
	maxErrorBodyLen = 512
)

var (
	// disambiguationSuffix matches Discogs artist suffixes like "Nirvana (2)"
	disambiguationSuffix = regexp.MustCompile(`\s*\(\d+\)$`)
)

// Pacer runs one remote call under the Discogs rate governor.
type Pacer interface {
	Do(ctx context.Context, op func(ctx context.Context) (core.RateInfo, error)) error
}

// Client implements core.CatalogSearcher, core.TargetWriter and core.IDResolver against the
// Discogs API.
type Client struct {
	config     *core.DiscogsConfig
	httpClient *http.Client
	pacer      Pacer
	logger     *zap.Logger
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	ID    int      `json:"id"`
	Type  string   `json:"type"`
	Title string   `json:"title"`
	Year  string   `json:"year"`
	Label []string `json:"label"`
	URI   string   `json:"uri"`
}

type wantsResponse struct {
	Pagination struct {
		Page  int `json:"page"`
		Pages int `json:"pages"`
	} `json:"pagination"`
	Wants []struct {
		ID int `json:"id"`
	} `json:"wants"`
}

type masterResponse struct {
	MainRelease int `json:"main_release"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// NewClient creates a Discogs client. pacer governs the extra calls the client makes on its
// own (wantlist paging, master resolution) and may be nil.
func NewClient(config *core.DiscogsConfig, timeout time.Duration, pacer Pacer, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = core.DefaultRequestTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
		pacer:      pacer,
		logger:     logger,
	}
}

// FetchCandidates runs one database search. mode is the Discogs result type (release or master).
// A 429 is reported through RateInfo.Limited, not as an error.
func (c *Client) FetchCandidates(ctx context.Context, query core.Query, mode string) (core.FetchResult, error) {
	params := url.Values{}
	params.Set("q", query.Title)
	if query.Artist != "" {
		params.Set("artist", query.Artist)
	}
	if c.config.Format != "" {
		params.Set("format", c.config.Format)
	}
	if mode != "" {
		params.Set("type", mode)
	}
	params.Set("per_page", strconv.Itoa(SearchResultsPerPage))

	resp, err := c.do(ctx, http.MethodGet, "/database/search?"+params.Encode())
	if err != nil {
		return core.FetchResult{}, err
	}
	defer resp.Body.Close()

	info := rateInfo(resp)
	if resp.StatusCode == http.StatusTooManyRequests {
		return core.FetchResult{RateInfo: info}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return core.FetchResult{RateInfo: info}, remoteError("search", resp)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return core.FetchResult{RateInfo: info}, fmt.Errorf("failed to decode discogs search: %w", err)
	}

	candidates := make([]core.Candidate, 0, len(body.Results))
	for _, result := range body.Results {
		candidates = append(candidates, toCandidate(result, mode, query))
	}

	c.logger.Debug("Discogs search",
		zap.String("query", query.String()),
		zap.String("mode", mode),
		zap.Int("results", len(candidates)))

	return core.FetchResult{Candidates: candidates, RateInfo: info}, nil
}

// CommitWrite adds a release to the wantlist. 201 is Created, 409 is Duplicate and 429 is
// RateLimited. Master candidates are resolved to their main release first.
func (c *Client) CommitWrite(ctx context.Context, id string) (core.WriteResult, error) {
	if c.config.Username == "" {
		return core.WriteResult{}, fmt.Errorf("discogs username is required to edit the wantlist")
	}

	releaseID, err := c.ResolveID(ctx, id)
	if err != nil {
		return core.WriteResult{}, err
	}

	path := fmt.Sprintf("/users/%s/wants/%s", url.PathEscape(c.config.Username), releaseID)
	resp, err := c.do(ctx, http.MethodPut, path)
	if err != nil {
		return core.WriteResult{}, err
	}
	defer resp.Body.Close()

	info := rateInfo(resp)
	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		return core.WriteResult{Status: core.WriteCreated, RateInfo: info}, nil
	case http.StatusConflict:
		return core.WriteResult{Status: core.WriteDuplicate, RateInfo: info}, nil
	case http.StatusTooManyRequests:
		return core.WriteResult{Status: core.WriteRateLimited, RateInfo: info}, nil
	default:
		return core.WriteResult{RateInfo: info}, remoteError("add want", resp)
	}
}

// FetchExistingTargetIDs pages through the user's wantlist and returns every release ID.
func (c *Client) FetchExistingTargetIDs(ctx context.Context) ([]string, error) {
	if c.config.Username == "" {
		return nil, fmt.Errorf("discogs username is required to read the wantlist")
	}

	var ids []string
	for page, pages := 1, 1; page <= pages; page++ {
		var body wantsResponse
		path := fmt.Sprintf("/users/%s/wants?page=%d&per_page=%d",
			url.PathEscape(c.config.Username), page, WantsPerPage)

		err := c.paced(ctx, func(ctx context.Context) (core.RateInfo, error) {
			return c.getJSON(ctx, path, "list wants", &body)
		})
		if err != nil {
			return nil, err
		}

		for _, want := range body.Wants {
			ids = append(ids, strconv.Itoa(want.ID))
		}
		pages = body.Pagination.Pages
	}

	c.logger.Info("Loaded Discogs wantlist", zap.Int("wants", len(ids)))
	return ids, nil
}

// ResolveID maps a candidate ID to the release ID stored in the wantlist. Master candidates
// resolve to their main release; release IDs are returned unchanged.
func (c *Client) ResolveID(ctx context.Context, id string) (string, error) {
	masterID, ok := strings.CutPrefix(id, masterIDPrefix)
	if !ok {
		return id, nil
	}

	var master masterResponse
	err := c.paced(ctx, func(ctx context.Context) (core.RateInfo, error) {
		return c.getJSON(ctx, "/masters/"+masterID, "resolve master", &master)
	})
	if err != nil {
		return "", err
	}
	if master.MainRelease == 0 {
		return "", fmt.Errorf("%w: master %s has no main release", core.ErrRemote, masterID)
	}

	return strconv.Itoa(master.MainRelease), nil
}

// getJSON performs a GET and decodes a 200 body into out. A 429 yields RateInfo.Limited.
func (c *Client) getJSON(ctx context.Context, path, action string, out any) (core.RateInfo, error) {
	resp, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return core.RateInfo{}, err
	}
	defer resp.Body.Close()

	info := rateInfo(resp)
	if resp.StatusCode == http.StatusTooManyRequests {
		return info, nil
	}
	if resp.StatusCode != http.StatusOK {
		return info, remoteError(action, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return info, fmt.Errorf("failed to decode discogs %s: %w", action, err)
	}
	return info, nil
}

func (c *Client) paced(ctx context.Context, op func(ctx context.Context) (core.RateInfo, error)) error {
	if c.pacer != nil {
		return c.pacer.Do(ctx, op)
	}

	info, err := op(ctx)
	if err == nil && info.Limited {
		return core.ErrRateLimited
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.config.BaseURL, "/")+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build discogs request: %w", err)
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/vnd.discogs.v2.discogs+json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Discogs token="+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: discogs %s %s: %w", core.ErrRemote, method, req.URL.Path, err)
	}
	return resp, nil
}

func rateInfo(resp *http.Response) core.RateInfo {
	info := core.RateInfo{Limited: resp.StatusCode == http.StatusTooManyRequests}

	if remaining, err := strconv.Atoi(resp.Header.Get("X-Discogs-Ratelimit-Remaining")); err == nil {
		info.Remaining = &remaining
	}
	if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
		info.RetryAfter = time.Duration(seconds) * time.Second
	}

	return info
}

func remoteError(action string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))

	message := strings.TrimSpace(string(raw))
	var body errorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		message = body.Message
	}

	return fmt.Errorf("%w: discogs %s returned %d: %s", core.ErrRemote, action, resp.StatusCode, message)
}

func toCandidate(result searchResult, mode string, query core.Query) core.Candidate {
	artists, title := splitTitle(result.Title)

	id := strconv.Itoa(result.ID)
	if result.Type == ModeMaster || (result.Type == "" && mode == ModeMaster) {
		id = masterIDPrefix + id
	}

	var label string
	if len(result.Label) > 0 {
		label = result.Label[0]
	}

	link := WebURL + result.URI
	if result.URI == "" {
		link = ReleaseURL(id)
	}

	return core.Candidate{
		ID:      id,
		Title:   title,
		Artists: artists,
		Year:    result.Year,
		Label:   label,
		URL:     link,
		Mode:    mode,
		Query:   query,
	}
}

// splitTitle splits "Artist - Title" search titles. Artist credits joined with " & " or ", "
// stay as one artist; Discogs disambiguation suffixes are dropped.
func splitTitle(raw string) ([]string, string) {
	artist, title, found := strings.Cut(raw, " - ")
	if !found {
		return nil, strings.TrimSpace(raw)
	}

	artist = disambiguationSuffix.ReplaceAllString(strings.TrimSpace(artist), "")
	artist = strings.TrimSuffix(artist, "*")
	return []string{artist}, strings.TrimSpace(title)
}

// ReleaseURL returns the public page of a candidate ID.
func ReleaseURL(id string) string {
	if masterID, ok := strings.CutPrefix(id, masterIDPrefix); ok {
		return WebURL + "/master/" + masterID
	}
	return WebURL + "/release/" + id
}
