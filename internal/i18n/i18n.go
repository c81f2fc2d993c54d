// Package i18n holds the operator-facing messages: prompts, the run summary and errors.
package i18n

import (
	"fmt"
	"strings"
)

const (
	// DefaultLanguage is used for unknown languages and missing keys
	DefaultLanguage = "en"
	// BerneseGerman is the ch_be message catalog
	BerneseGerman = "ch_be"
)

var catalogs = map[string]map[string]string{
	DefaultLanguage: englishMessages,
	BerneseGerman:   berneseGermanMessages,
}

// Localizer looks up messages in one catalog and falls back to English.
type Localizer struct {
	language string
	messages map[string]string
}

// NewLocalizer accepts "ch_be" as well as "ch-BE". Unknown languages get English.
func NewLocalizer(language string) *Localizer {
	language = normalize(language)
	if !Supported(language) {
		language = DefaultLanguage
	}
	return &Localizer{
		language: language,
		messages: getMessages(language),
	}
}

// Language returns the catalog in use.
func (l *Localizer) Language() string {
	return l.language
}

// T formats the message for key with args. A key missing everywhere is returned as is.
func (l *Localizer) T(key string, args ...interface{}) string {
	if message, ok := l.messages[key]; ok {
		return format(message, args)
	}
	if message, ok := englishMessages[key]; ok {
		return format(message, args)
	}
	return key
}

func format(message string, args []interface{}) string {
	if len(args) == 0 {
		return message
	}
	return fmt.Sprintf(message, args...)
}

// Supported reports whether language has a catalog.
func Supported(language string) bool {
	_, ok := catalogs[normalize(language)]
	return ok
}

func normalize(language string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(language), "-", "_"))
}

// GetSupportedLanguages lists the catalogs, default first.
func GetSupportedLanguages() []string {
	return []string{DefaultLanguage, BerneseGerman}
}

func getMessages(language string) map[string]string {
	if messages, ok := catalogs[language]; ok {
		return messages
	}
	return englishMessages
}
