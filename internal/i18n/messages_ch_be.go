package i18n

// berneseGermanMessages contains all Bernese Swiss German (Bärndütsch) translations
var berneseGermanMessages = map[string]string{
	// Error messages
	"error.nothing_playing":  "Uf Spotify louft grad nüt.",
	"error.quota_exceeded":   "S Tageskontingent vor API isch ufbrucht. Probier's morn nomau.",
	"error.playlist_missing": "Ha d Spotify-Playliste nid chönne läse.",
	"error.generic":          "Öppis isch schief gloffe. Probier's haut nomau, bitte.",

	// Questions and prompts
	"prompt.confirm_match": "🎵 %s\n   → %s (Punkt %.0f)\n   🔗 %s\nZu %s hinzuefüege?",
	"prompt.yes_no":        " [y/n]: ",
	"prompt.invalid":       "Bitte mit y oder n antworte.",

	// Now playing
	"nowplaying.track":    "▶ Grad am Loufe: %s",
	"nowplaying.link":     "🔗 %s",
	"nowplaying.no_match": "Für %s ha ni nüt Passends über dr Schwäue gfunde.",

	// Run summary
	"summary.title":           "Zämefassig",
	"summary.run_id":          "Lauf-ID",
	"summary.total":           "Lieder",
	"summary.attempted":       "Probiert",
	"summary.matched":         "Gfunde",
	"summary.written":         "Hinzuegfüegt",
	"summary.duplicates":      "Scho drin",
	"summary.skipped":         "Übersprunge",
	"summary.not_found":       "Nid gfunde",
	"summary.rejected":        "Abglehnt",
	"summary.failed":          "Fählgschlage",
	"summary.duration":        "Dauer",
	"summary.cancelled":       "⏹ Dr Lauf isch abbroche worde, bevor aui Lieder dra gsi si.",
	"summary.aborted":         "⛔ Dr Lauf het früech ufghört: %s",
	"summary.unresolved":      "Offeni Lieder",
	"summary.col_track":       "Lied",
	"summary.col_outcome":     "Resultat",
	"summary.col_stage":       "Schritt",
	"summary.col_reason":      "Grund",
	"summary.playlist":        "📀 Playliste: %s",
	"summary.all_resolved":    "✅ Aui Lieder sy erlediget.",
	"summary.playlist_create": "Playliste %s erstellt",
}
