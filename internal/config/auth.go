package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/term"
)

// Credentials stores API keys outside the main config file.
type Credentials struct {
	OpenAIAPIKey string `json:"openai_api_key,omitempty"`
}

// CredentialsPath returns the path to the credentials file.
func CredentialsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".stylecopilot", "credentials.json"), nil
}

// LoadCredentials loads stored credentials. A missing file yields empty
// credentials, not an error.
func LoadCredentials() (*Credentials, error) {
	path, err := CredentialsPath()
	if err != nil {
		return &Credentials{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return &Credentials{}, nil
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return &creds, nil
}

// SaveCredentials persists credentials with user-only permissions.
func SaveCredentials(creds *Credentials) error {
	path, err := CredentialsPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// PromptAPIKey reads an API key from the terminal without echoing it.
func PromptAPIKey(label string) (string, error) {
	fmt.Printf("%s: ", label)
	bytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	return strings.TrimSpace(string(bytes)), nil
}

// ResolveOpenAIKey returns the OpenAI key from config, environment, or the
// credentials file, in that precedence.
func (c *Config) ResolveOpenAIKey() string {
	if c.OpenAIAPIKey != "" {
		return c.OpenAIAPIKey
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key
	}
	if creds, err := LoadCredentials(); err == nil && creds.OpenAIAPIKey != "" {
		return creds.OpenAIAPIKey
	}
	return ""
}
