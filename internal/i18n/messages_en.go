package i18n

// englishMessages contains all English translations.
var englishMessages = map[string]string{
	// Error messages
	"error.nothing_playing":  "Nothing is playing on Spotify right now.",
	"error.quota_exceeded":   "The daily API quota is used up. Try again tomorrow.",
	"error.playlist_missing": "Couldn't read the Spotify playlist.",
	"error.generic":          "Something went wrong. Please try again.",

	// Questions and prompts
	"prompt.confirm_match": "🎵 %s\n   → %s (score %.0f)\n   🔗 %s\nAdd to %s?",
	"prompt.yes_no":        " [y/n]: ",
	"prompt.invalid":       "Please answer y or n.",

	// Now playing
	"nowplaying.track":    "▶ Now playing: %s",
	"nowplaying.link":     "🔗 %s",
	"nowplaying.no_match": "No match above the threshold for %s.",

	// Run summary
	"summary.title":           "Run summary",
	"summary.run_id":          "Run ID",
	"summary.total":           "Tracks",
	"summary.attempted":       "Attempted",
	"summary.matched":         "Matched",
	"summary.written":         "Added",
	"summary.duplicates":      "Already present",
	"summary.skipped":         "Skipped",
	"summary.not_found":       "Not found",
	"summary.rejected":        "Rejected",
	"summary.failed":          "Failed",
	"summary.duration":        "Duration",
	"summary.cancelled":       "⏹ Run cancelled before every track was processed.",
	"summary.aborted":         "⛔ Run stopped early: %s",
	"summary.unresolved":      "Unresolved tracks",
	"summary.col_track":       "Track",
	"summary.col_outcome":     "Outcome",
	"summary.col_stage":       "Stage",
	"summary.col_reason":      "Reason",
	"summary.playlist":        "📀 Playlist: %s",
	"summary.all_resolved":    "✅ Every track was resolved.",
	"summary.playlist_create": "Created playlist %s",
}
