package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"cratedigger/internal/core"
)

func newTestClient(t *testing.T, config *core.YouTubeConfig, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	service, err := youtube.NewService(context.Background(),
		option.WithHTTPClient(server.Client()),
		option.WithEndpoint(server.URL+"/"))
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	if config.MaxResults == 0 {
		config.MaxResults = 5
	}
	client := NewClient(config, 5*time.Second, nil, zap.NewNop())
	client.service = service
	return client
}

func writeAPIError(w http.ResponseWriter, code int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error": {"code": %d, "message": "%s happened", "errors": [{"reason": %q, "message": "x"}]}}`,
		code, reason, reason)
}

func TestClient_FetchCandidates(t *testing.T) {
	tests := []struct {
		name         string
		mode         string
		wantCategory string
	}{
		{"Music category", ModeMusic, MusicCategoryID},
		{"Any video", ModeVideo, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, &core.YouTubeConfig{}, func(w http.ResponseWriter, r *http.Request) {
				if !strings.HasSuffix(r.URL.Path, "/search") {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				query := r.URL.Query()
				if query.Get("q") != "Nirvana - Smells Like Teen Spirit" {
					t.Errorf("q = %q", query.Get("q"))
				}
				if query.Get("type") != "video" || query.Get("maxResults") != "5" {
					t.Errorf("unexpected query %v", query)
				}
				if query.Get("videoCategoryId") != tt.wantCategory {
					t.Errorf("videoCategoryId = %q, expected %q", query.Get("videoCategoryId"), tt.wantCategory)
				}

				fmt.Fprint(w, `{"items": [
					{"id": {"kind": "youtube#video", "videoId": "hTWKbfoikeg"},
					 "snippet": {"title": "Nirvana - Smells Like Teen Spirit (Official Music Video)",
					             "channelTitle": "NirvanaVEVO", "publishedAt": "2009-06-16T23:09:34Z"}},
					{"id": {"kind": "youtube#video", "videoId": "abc"},
					 "snippet": {"title": "Smells Like Teen Spirit", "channelTitle": "Nirvana - Topic"}},
					{"id": {"kind": "youtube#channel"}, "snippet": {"title": "ignored"}}
				]}`)
			})

			result, err := client.FetchCandidates(context.Background(),
				core.Query{Title: "Smells Like Teen Spirit", Artist: "Nirvana"}, tt.mode)
			if err != nil {
				t.Fatalf("FetchCandidates() error = %v", err)
			}
			if len(result.Candidates) != 2 {
				t.Fatalf("expected 2 candidates, got %d", len(result.Candidates))
			}

			first := result.Candidates[0]
			if first.ID != "hTWKbfoikeg" || first.Title != "Smells Like Teen Spirit" || first.Year != "2009" {
				t.Errorf("unexpected candidate %+v", first)
			}
			if strings.Join(first.Artists, "|") != "Nirvana|NirvanaVEVO" {
				t.Errorf("Artists = %v", first.Artists)
			}
			if first.URL != "https://www.youtube.com/watch?v=hTWKbfoikeg" {
				t.Errorf("URL = %s", first.URL)
			}

			second := result.Candidates[1]
			if len(second.Artists) != 1 || second.Artists[0] != "Nirvana" {
				t.Errorf("topic suffix should be stripped, got %v", second.Artists)
			}
		})
	}
}

func TestClient_FetchCandidates_Errors(t *testing.T) {
	tests := []struct {
		name        string
		code        int
		reason      string
		wantLimited bool
		wantErr     error
	}{
		{"Quota exceeded", http.StatusForbidden, "quotaExceeded", false, core.ErrQuotaExceeded},
		{"Rate limited", http.StatusForbidden, "rateLimitExceeded", true, nil},
		{"Too many requests", http.StatusTooManyRequests, "other", true, nil},
		{"Bad request", http.StatusBadRequest, "invalidSearchFilter", false, core.ErrRemote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, &core.YouTubeConfig{}, func(w http.ResponseWriter, _ *http.Request) {
				writeAPIError(w, tt.code, tt.reason)
			})

			result, err := client.FetchCandidates(context.Background(), core.Query{Title: "x"}, ModeVideo)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, expected %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("FetchCandidates() error = %v", err)
			}
			if result.RateInfo.Limited != tt.wantLimited {
				t.Errorf("Limited = %v, expected %v", result.RateInfo.Limited, tt.wantLimited)
			}
		})
	}
}

func TestClient_CreatePlaylist(t *testing.T) {
	var body youtube.Playlist
	client := newTestClient(t, &core.YouTubeConfig{}, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/playlists") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("bad body: %v", err)
		}
		fmt.Fprint(w, `{"id": "PL123"}`)
	})

	id, err := client.CreatePlaylist(context.Background(),
		&core.Playlist{Name: "Grunge", Description: "Seattle sound"})
	if err != nil {
		t.Fatalf("CreatePlaylist() error = %v", err)
	}

	if id != "PL123" || client.PlaylistID() != "PL123" {
		t.Errorf("id = %s, PlaylistID() = %s", id, client.PlaylistID())
	}
	if body.Snippet.Title != "Spotify: Grunge" {
		t.Errorf("Title = %q", body.Snippet.Title)
	}
	if body.Snippet.Description != "Converted from Spotify playlist: Grunge\n\nSeattle sound" {
		t.Errorf("Description = %q", body.Snippet.Description)
	}
	if body.Status.PrivacyStatus != "private" {
		t.Errorf("PrivacyStatus = %q", body.Status.PrivacyStatus)
	}
}

func TestClient_PlaylistTitle(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		expected string
	}{
		{"Default prefix", "", "Spotify: Grunge"},
		{"Custom prefix", "Vinyl - ", "Vinyl - Grunge"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(&core.YouTubeConfig{PlaylistPrefix: tt.prefix}, time.Second, nil, nil)
			if got := client.PlaylistTitle(&core.Playlist{Name: "Grunge"}); got != tt.expected {
				t.Errorf("PlaylistTitle() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestClient_HungServerTimesOut(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, &core.YouTubeConfig{PlaylistID: "PL123"}, func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	t.Cleanup(func() { close(release) })
	client.timeout = 50 * time.Millisecond

	calls := []struct {
		name string
		call func(ctx context.Context) error
	}{
		{"CreatePlaylist", func(ctx context.Context) error {
			_, err := client.CreatePlaylist(ctx, &core.Playlist{Name: "Grunge"})
			return err
		}},
		{"FetchExistingTargetIDs", func(ctx context.Context) error {
			_, err := client.FetchExistingTargetIDs(ctx)
			return err
		}},
	}

	for _, tt := range calls {
		t.Run(tt.name, func(t *testing.T) {
			done := make(chan error, 1)
			go func() { done <- tt.call(context.Background()) }()

			select {
			case err := <-done:
				if !errors.Is(err, context.DeadlineExceeded) {
					t.Errorf("%s() error = %v, expected a deadline", tt.name, err)
				}
			case <-time.After(5 * time.Second):
				t.Fatalf("%s() did not return after the request timeout", tt.name)
			}
		})
	}
}

func TestClient_CommitWrite(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		reason   string
		expected core.WriteStatus
		wantErr  error
	}{
		{"Created", http.StatusOK, "", core.WriteCreated, nil},
		{"Conflict", http.StatusConflict, "videoAlreadyInPlaylist", core.WriteDuplicate, nil},
		{"Rate limited", http.StatusTooManyRequests, "rateLimitExceeded", core.WriteRateLimited, nil},
		{"Quota exceeded", http.StatusForbidden, "quotaExceeded", 0, core.ErrQuotaExceeded},
		{"Not found", http.StatusNotFound, "videoNotFound", 0, core.ErrRemote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, &core.YouTubeConfig{PlaylistID: "PL123"}, func(w http.ResponseWriter, r *http.Request) {
				var item youtube.PlaylistItem
				raw, _ := io.ReadAll(r.Body)
				if err := json.Unmarshal(raw, &item); err != nil {
					t.Errorf("bad body: %v", err)
				}
				if item.Snippet.PlaylistId != "PL123" || item.Snippet.ResourceId.VideoId != "vid" {
					t.Errorf("unexpected item %+v", item.Snippet)
				}

				if tt.code == http.StatusOK {
					fmt.Fprint(w, `{"id": "item1"}`)
					return
				}
				writeAPIError(w, tt.code, tt.reason)
			})

			result, err := client.CommitWrite(context.Background(), "vid")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, expected %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CommitWrite() error = %v", err)
			}
			if result.Status != tt.expected {
				t.Errorf("Status = %s, expected %s", result.Status, tt.expected)
			}
		})
	}
}

func TestClient_CommitWrite_NoPlaylist(t *testing.T) {
	client := newTestClient(t, &core.YouTubeConfig{}, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	})

	if _, err := client.CommitWrite(context.Background(), "vid"); err == nil {
		t.Error("CommitWrite without a playlist should fail")
	}
}

func TestClient_FetchExistingTargetIDs(t *testing.T) {
	client := newTestClient(t, &core.YouTubeConfig{PlaylistID: "PL123"}, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("playlistId") != "PL123" {
			t.Errorf("playlistId = %q", r.URL.Query().Get("playlistId"))
		}
		switch r.URL.Query().Get("pageToken") {
		case "":
			fmt.Fprint(w, `{"nextPageToken": "p2", "items": [
				{"contentDetails": {"videoId": "a"}}, {"contentDetails": {"videoId": "b"}}]}`)
		case "p2":
			fmt.Fprint(w, `{"items": [{"contentDetails": {"videoId": "c"}}]}`)
		default:
			t.Errorf("unexpected page token %q", r.URL.Query().Get("pageToken"))
		}
	})

	ids, err := client.FetchExistingTargetIDs(context.Background())
	if err != nil {
		t.Fatalf("FetchExistingTargetIDs() error = %v", err)
	}
	if strings.Join(ids, ",") != "a,b,c" {
		t.Errorf("ids = %v, expected [a b c]", ids)
	}
}

func TestClient_FetchExistingTargetIDs_NewPlaylist(t *testing.T) {
	client := NewClient(&core.YouTubeConfig{}, time.Second, nil, nil)

	ids, err := client.FetchExistingTargetIDs(context.Background())
	if err != nil || len(ids) != 0 {
		t.Errorf("FetchExistingTargetIDs() = %v, %v; expected nothing", ids, err)
	}
}

func TestClient_NotAuthenticated(t *testing.T) {
	client := NewClient(&core.YouTubeConfig{PlaylistID: "PL"}, time.Second, nil, nil)
	ctx := context.Background()

	if _, err := client.FetchCandidates(ctx, core.Query{Title: "x"}, ModeMusic); !errors.Is(err, core.ErrNotAuthenticated) {
		t.Errorf("FetchCandidates() error = %v", err)
	}
	if _, err := client.CommitWrite(ctx, "vid"); !errors.Is(err, core.ErrNotAuthenticated) {
		t.Errorf("CommitWrite() error = %v", err)
	}
	if _, err := client.CreatePlaylist(ctx, &core.Playlist{Name: "x"}); !errors.Is(err, core.ErrNotAuthenticated) {
		t.Errorf("CreatePlaylist() error = %v", err)
	}
}

func TestSplitVideoTitle(t *testing.T) {
	tests := []struct {
		raw    string
		artist string
		title  string
	}{
		{"Nirvana - Smells Like Teen Spirit (Official Music Video)", "Nirvana", "Smells Like Teen Spirit"},
		{"Daft Punk - One More Time [HD]", "Daft Punk", "One More Time"},
		{"Lithium", "", "Lithium"},
		{"(Intro)", "", "(Intro)"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			artists, title := splitVideoTitle(tt.raw)
			if title != tt.title {
				t.Errorf("title = %q, expected %q", title, tt.title)
			}
			if tt.artist == "" {
				if len(artists) != 0 {
					t.Errorf("artists = %v, expected none", artists)
				}
				return
			}
			if len(artists) != 1 || artists[0] != tt.artist {
				t.Errorf("artists = %v, expected %q", artists, tt.artist)
			}
		})
	}
}

func TestPlaylistURL(t *testing.T) {
	if got := PlaylistURL("PL123"); got != "https://www.youtube.com/playlist?list=PL123" {
		t.Errorf("PlaylistURL() = %s", got)
	}
}
