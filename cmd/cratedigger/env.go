package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const separator = "# =============================================================================\n"

// envEntry describes one line of .env.example. An empty example falls back to the flag default.
type envEntry struct {
	flag    string
	example string
	comment string
}

type envSection struct {
	title   string
	entries []envEntry
}

var envSections = []envSection{
	{
		title: "Spotify",
		entries: []envEntry{
			{"spotify-client-id", "your_spotify_client_id", "From https://developer.spotify.com/dashboard"},
			{"spotify-client-secret", "your_spotify_client_secret", "From the same Spotify app"},
			{"spotify-redirect-url", "", "Must match the redirect URI registered in the Spotify app"},
			{"spotify-token-path", "", "Where the Spotify OAuth token is cached"},
			{"match-by", "", "Search by track or by album title"},
		},
	},
	{
		title: "Discogs",
		entries: []envEntry{
			{"discogs-token", "your_discogs_token", "Personal access token from https://www.discogs.com/settings/developers"},
			{"discogs-username", "your_discogs_username", "Owner of the wantlist"},
			{"discogs-user-agent", "", "Discogs rejects requests without a User-Agent"},
			{"discogs-base-url", "", "Discogs API base URL"},
			{"discogs-format", "", "Format filter, e.g. Vinyl (empty for any)"},
			{"discogs-modes", "", "Search attempts in order"},
		},
	},
	{
		title: "YouTube",
		entries: []envEntry{
			{"youtube-credentials-path", "", "OAuth client JSON from the Google Cloud console"},
			{"youtube-token-path", "", "Where the YouTube OAuth token is cached"},
			{"youtube-redirect-url", "", "Must match the redirect URI of the OAuth client"},
			{"youtube-playlist-id", "", "Existing playlist to fill (empty creates one)"},
			{"youtube-playlist-prefix", "", "Prefix of created playlist names"},
			{"youtube-privacy", "", "private, unlisted or public"},
			{"youtube-modes", "", "Search attempts in order"},
			{"youtube-max-results", "", "Videos requested per search"},
		},
	},
	{
		title: "LLM (optional, used by --semantic-confirm and --translate)",
		entries: []envEntry{
			{"llm-provider", "", "openai, anthropic, ollama or none"},
			{"llm-model", "", "Empty uses the provider default"},
			{"llm-api-key", "", "Not needed for ollama"},
			{"llm-base-url", "", "Custom endpoint, e.g. http://localhost:11434 for ollama"},
		},
	},
	{
		title: "Matching",
		entries: []envEntry{
			{"match-threshold", "", "Minimum similarity score (0-100)"},
			{"match-fold", "", "Strip diacritics and punctuation before scoring"},
			{"semantic-confirm", "", "Ask the LLM to confirm every match"},
			{"translate", "", "Translate non-Latin titles before scoring"},
			{"translation-cache-size", "", "Number of memoized translations"},
		},
	},
	{
		title: "Rate limits",
		entries: []envEntry{
			{"rate-discogs-per-minute", "", "Authenticated Discogs clients get 60"},
			{"rate-spotify-per-minute", "", ""},
			{"rate-youtube-per-minute", "", ""},
			{"rate-llm-per-minute", "", ""},
			{"rate-cooldown", "", "Pause after a 429 without Retry-After"},
			{"rate-low-water-cooldown", "", "Pause when the remaining quota runs low"},
			{"rate-low-water-mark", "", "Remaining quota that triggers the pause"},
			{"max-retries", "", "0 retries until the API recovers"},
		},
	},
	{
		title: "Application",
		entries: []envEntry{
			{"interactive", "", "Ask before every write"},
			{"max-tracks", "", "0 processes the whole playlist"},
			{"request-timeout", "", "Timeout of every remote call"},
			{"lock-file", "", "Prevents concurrent runs"},
			{"language", "", "Operator message language"},
		},
	},
	{
		title: "Metrics server",
		entries: []envEntry{
			{"metrics-host", "", ""},
			{"metrics-port", "", "0 disables the server"},
		},
	},
	{
		title: "Logging",
		entries: []envEntry{
			{"log-level", "", "debug, info, warn or error"},
			{"log-format", "", "console or json"},
			{"log-file", "", "empty logs to stderr only"},
		},
	},
}

func generateEnvExample(cmd *cobra.Command) error {
	fmt.Println("Generating .env.example file from current configuration...")

	content := generateEnvExampleContent(cmd)

	if err := os.WriteFile(".env.example", []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write .env.example: %w", err)
	}

	fmt.Println("✅ Successfully generated .env.example file")
	return nil
}

func generateEnvExampleContent(cmd *cobra.Command) string {
	var content strings.Builder

	content.WriteString(separator)
	content.WriteString("# CrateDigger Configuration\n")
	content.WriteString(separator)
	content.WriteString("#\n")
	content.WriteString("# Copy this file to .env and update with your values\n")
	content.WriteString("# All environment variables have CLI flag equivalents (use --help to see them)\n")
	content.WriteString("#\n")
	content.WriteString("# Format: " + envPrefix + "_<SECTION>_<SETTING>=value\n")
	content.WriteString("# CLI equivalent: --<section>-<setting>\n")
	content.WriteString("#\n")
	content.WriteString(separator + "\n")

	for _, section := range envSections {
		generateSection(&content, cmd, section)
	}
	generateQuickSetupGuide(&content)

	return content.String()
}

func generateSection(content *strings.Builder, cmd *cobra.Command, section envSection) {
	content.WriteString("# " + section.title + "\n")

	for _, entry := range section.entries {
		def := getDefaultValueString(cmd, entry.flag)
		value := entry.example
		if value == "" {
			value = def
		}

		line := flagToEnvVar(entry.flag) + "=" + value
		switch {
		case entry.comment != "" && def != "":
			line = fmt.Sprintf("%-45s # %s (default: %s)", line, entry.comment, def)
		case entry.comment != "":
			line = fmt.Sprintf("%-45s # %s", line, entry.comment)
		case def != "":
			line = fmt.Sprintf("%-45s # default: %s", line, def)
		}
		content.WriteString(line + "\n")
	}
	content.WriteString("\n")
}

func generateQuickSetupGuide(content *strings.Builder) {
	content.WriteString(separator)
	content.WriteString("# QUICK SETUP\n")
	content.WriteString(separator)
	content.WriteString("# 1. Create a Spotify app and fill in the Spotify section\n")
	content.WriteString("# 2. Wantlist: add your Discogs token and username, then run\n")
	content.WriteString("#      cratedigger wantlist <spotify-playlist-url>\n")
	content.WriteString("# 3. YouTube: download the OAuth client JSON, then run\n")
	content.WriteString("#      cratedigger youtube <spotify-playlist-url>\n")
	content.WriteString("# 4. While listening: cratedigger now-playing\n")
}

func flagToEnvVar(flagName string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

func getDefaultValueString(cmd *cobra.Command, flagName string) string {
	f := cmd.PersistentFlags().Lookup(flagName)
	if f == nil {
		f = cmd.Root().PersistentFlags().Lookup(flagName)
	}
	if f == nil {
		return ""
	}
	// Slice flags print as [a,b]
	return strings.Trim(f.DefValue, "[]")
}
