// Package oauth persists OAuth tokens and runs the copy-paste authorization flow.
package oauth

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/oauth2"
)

// FilePermission is the permission for token files
const FilePermission = 0600

// TokenData is the on-disk token format.
type TokenData struct {
	Token *oauth2.Token `json:"token"`
}

// LoadToken reads a token saved by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tokenData TokenData
	if err := json.Unmarshal(data, &tokenData); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", path, err)
	}
	if tokenData.Token == nil {
		return nil, fmt.Errorf("token file %s holds no token", path)
	}

	return tokenData.Token, nil
}

// SaveToken writes token to path, readable only by the owner.
func SaveToken(path string, token *oauth2.Token) error {
	data, err := json.MarshalIndent(TokenData{Token: token}, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, FilePermission)
}

// PromptCode prints authURL and reads the authorization code the user pastes back.
// Pasting the whole redirect URL works too; the code parameter is extracted.
func PromptCode(in io.Reader, out io.Writer, service, authURL string) (string, error) {
	fmt.Fprintf(out, "Please visit the following URL to authorize %s:\n%s\n", service, authURL)
	fmt.Fprint(out, "Enter the authorization code: ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read authorization code: %w", err)
	}

	code := extractCode(strings.TrimSpace(line))
	if code == "" {
		return "", fmt.Errorf("empty authorization code")
	}
	return code, nil
}

func extractCode(input string) string {
	_, query, found := strings.Cut(input, "?")
	if !found {
		return input
	}

	for _, pair := range strings.Split(query, "&") {
		if value, ok := strings.CutPrefix(pair, "code="); ok {
			return value
		}
	}
	return input
}
