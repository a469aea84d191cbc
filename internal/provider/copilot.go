package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/stylecopilot/stylecopilot/internal/conversation"
)

// CopilotClient implements Client for GitHub Copilot chat. It uses the GitHub
// OAuth token from the device flow directly against the individual Copilot
// endpoint.
type CopilotClient struct {
	authToken string
	baseURL   string
	client    *http.Client

	cachedModels []copilotModelEntry
	modelsMu     sync.Mutex
}

// copilotOAuthInfo stores the OAuth token from the device flow.
type copilotOAuthInfo struct {
	AccessToken string `json:"access_token"`
	CreatedAt   int64  `json:"created_at"`
}

const copilotClientID = "Iv1.b507a08c87ecfe98"

// NewCopilotClient creates a Copilot client using the stored OAuth token.
func NewCopilotClient() (*CopilotClient, error) {
	token, err := loadCopilotOAuthToken()
	if err != nil || token == "" {
		return nil, fmt.Errorf("no Copilot OAuth token found, run 'stylecopilot auth login' to authenticate")
	}
	return &CopilotClient{
		authToken: token,
		baseURL:   "https://api.individual.githubcopilot.com",
		client:    &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (c *CopilotClient) Vendor() string { return "copilot" }

// copilotModelEntry is the shape of each object in the /models response.
type copilotModelEntry struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	ModelPickerEnabled bool   `json:"model_picker_enabled"`
	Capabilities       *struct {
		Family string `json:"family"`
		Limits *struct {
			MaxPromptTokens int `json:"max_prompt_tokens"`
		} `json:"limits,omitempty"`
	} `json:"capabilities,omitempty"`
	Policy *struct {
		State string `json:"state"`
	} `json:"policy,omitempty"`
	SupportedEndpoints []string `json:"supported_endpoints,omitempty"`
}

func (e *copilotModelEntry) family() string {
	if e.Capabilities != nil && e.Capabilities.Family != "" {
		return e.Capabilities.Family
	}
	return e.ID
}

func (e *copilotModelEntry) maxInputTokens() int {
	if e.Capabilities != nil && e.Capabilities.Limits != nil {
		return e.Capabilities.Limits.MaxPromptTokens
	}
	return 0
}

// fetchModels calls the Copilot /models endpoint and returns the enabled
// chat-capable entries, retrying rate-limited attempts. Deduplicates by ID,
// the API returns duplicate entries for some models.
func (c *CopilotClient) fetchModels(ctx context.Context) ([]copilotModelEntry, error) {
	var body []byte
	err := withRetry(ctx, func() (http.Header, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req)

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch models: %w", err)
		}
		defer resp.Body.Close()

		body, _ = io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			return resp.Header, classifyHTTP(resp.StatusCode, string(body))
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		Data []copilotModelEntry `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse models response: %w", err)
	}

	seen := make(map[string]bool)
	var entries []copilotModelEntry
	for _, m := range result.Data {
		if seen[m.ID] {
			continue
		}
		if m.Policy != nil && m.Policy.State != "enabled" {
			continue
		}
		supportsChat := len(m.SupportedEndpoints) == 0 // legacy entries have no endpoints field
		for _, ep := range m.SupportedEndpoints {
			if ep == "/chat/completions" {
				supportsChat = true
				break
			}
		}
		if !supportsChat {
			continue
		}
		seen[m.ID] = true
		entries = append(entries, m)
	}
	return entries, nil
}

// SelectModels returns the account's enabled models matching the selector's
// family. The listing is fetched once and cached; a fetch failure falls back
// to gpt-4o, which is available on every plan.
func (c *CopilotClient) SelectModels(ctx context.Context, sel Selector) ([]Model, error) {
	if sel.Vendor != "" && sel.Vendor != c.Vendor() {
		return nil, nil
	}

	c.modelsMu.Lock()
	if len(c.cachedModels) == 0 {
		fetched, err := c.fetchModels(ctx)
		if err == nil && len(fetched) > 0 {
			c.cachedModels = fetched
		} else {
			c.cachedModels = []copilotModelEntry{{ID: "gpt-4o"}}
		}
	}
	entries := c.cachedModels
	c.modelsMu.Unlock()

	var out []Model
	for _, e := range entries {
		if sel.Family != "" && e.family() != sel.Family {
			continue
		}
		out = append(out, &copilotModel{entry: e, client: c})
	}
	return out, nil
}

// setHeaders adds the required headers to every Copilot API request.
func (c *CopilotClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.authToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "StyleCopilot/1.0")
	req.Header.Set("Openai-Intent", "conversation-edits")
	req.Header.Set("Editor-Version", "vscode/1.95.3")
	req.Header.Set("Editor-Plugin-Version", "copilot-chat/0.26.7")
	req.Header.Set("Copilot-Integration-Id", "vscode-chat")
}

type copilotModel struct {
	entry  copilotModelEntry
	client *CopilotClient
}

func (m *copilotModel) ID() string          { return m.entry.ID }
func (m *copilotModel) Family() string      { return m.entry.family() }
func (m *copilotModel) MaxInputTokens() int { return m.entry.maxInputTokens() }

// SendRequest streams a chat completion over SSE, forwarding text deltas.
func (m *copilotModel) SendRequest(ctx context.Context, turns []conversation.Turn, opts Options, onFragment func(string) error) error {
	messages := make([]map[string]interface{}, 0, len(turns))
	for _, p := range toRoleContent(turns) {
		messages = append(messages, map[string]interface{}{
			"role":    p.Role,
			"content": p.Content,
		})
	}

	reqBody := map[string]interface{}{
		"messages":    messages,
		"model":       m.entry.ID,
		"temperature": opts.Temperature,
		"top_p":       1,
		"n":           1,
		"stream":      true,
	}
	if opts.MaxTokens > 0 {
		reqBody["max_tokens"] = opts.MaxTokens
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	// Completion requests are single-shot: a failed request requires a
	// fresh user-initiated invocation.
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.client.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	m.client.setHeaders(httpReq)

	resp, err := m.client.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
				Code    string `json:"code"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			if apiErr.Error.Code == "off_topic" || IsRefusal(apiErr.Error.Message) {
				return &ClassifiedError{
					Type:       ErrorTypeRefusal,
					Message:    apiErr.Error.Message,
					StatusCode: resp.StatusCode,
				}
			}
			return classifyHTTP(resp.StatusCode, apiErr.Error.Message)
		}
		return classifyHTTP(resp.StatusCode, string(body))
	}

	return parseSSEStream(ctx, resp.Body, onFragment)
}

// parseSSEStream parses the Server-Sent Events stream from Copilot, invoking
// the callback once per text delta.
func parseSSEStream(ctx context.Context, body io.Reader, onFragment func(string) error) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
				FinishReason *string `json:"finish_reason"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			if err := onFragment(choice.Delta.Content); err != nil {
				return err
			}
		}
		if choice.FinishReason != nil && *choice.FinishReason == "content_filter" {
			return &ClassifiedError{
				Type:    ErrorTypeRefusal,
				Message: "response filtered by content policy",
			}
		}
	}
	return scanner.Err()
}

// ── OAuth / Token storage ─────────────────────────────────────────────────────

func copilotTokenPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "stylecopilot", "copilot_oauth.json"), nil
}

func loadCopilotOAuthToken() (string, error) {
	path, err := copilotTokenPath()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var info copilotOAuthInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return "", err
	}
	return info.AccessToken, nil
}

func saveCopilotOAuthToken(token string) error {
	path, err := copilotTokenPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	info := copilotOAuthInfo{AccessToken: token, CreatedAt: time.Now().Unix()}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// RemoveCopilotToken deletes the stored OAuth token.
func RemoveCopilotToken() error {
	path, err := copilotTokenPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// HasCopilotToken reports whether a stored OAuth token exists.
func HasCopilotToken() bool {
	token, err := loadCopilotOAuthToken()
	return err == nil && token != ""
}

// ── Device Flow OAuth ─────────────────────────────────────────────────────────

// CopilotLogin performs the GitHub OAuth device flow and stores the resulting
// token. Only device-flow tokens work against the Copilot chat endpoint; PATs
// do not.
func CopilotLogin(out io.Writer) error {
	client := &http.Client{Timeout: 30 * time.Second}

	deviceBody, _ := json.Marshal(map[string]string{
		"client_id": copilotClientID,
		"scope":     "read:user",
	})
	deviceReq, _ := http.NewRequest(http.MethodPost, "https://github.com/login/device/code",
		bytes.NewReader(deviceBody))
	deviceReq.Header.Set("Content-Type", "application/json")
	deviceReq.Header.Set("Accept", "application/json")

	resp, err := client.Do(deviceReq)
	if err != nil {
		return fmt.Errorf("failed to request device code: %w", err)
	}
	defer resp.Body.Close()

	var deviceResp struct {
		DeviceCode      string `json:"device_code"`
		UserCode        string `json:"user_code"`
		VerificationURI string `json:"verification_uri"`
		Interval        int    `json:"interval"`
		ExpiresIn       int    `json:"expires_in"`
	}
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &deviceResp); err != nil {
		return fmt.Errorf("failed to parse device code response: %w", err)
	}

	fmt.Fprintf(out, "\n  1. Open: %s\n", deviceResp.VerificationURI)
	fmt.Fprintf(out, "  2. Enter code: %s\n\n", deviceResp.UserCode)
	fmt.Fprintf(out, "  Waiting for authorization...\n")

	interval := time.Duration(deviceResp.Interval+1) * time.Second
	deadline := time.Now().Add(time.Duration(deviceResp.ExpiresIn) * time.Second)

	for time.Now().Before(deadline) {
		time.Sleep(interval)

		tokenBody, _ := json.Marshal(map[string]string{
			"client_id":   copilotClientID,
			"device_code": deviceResp.DeviceCode,
			"grant_type":  "urn:ietf:params:oauth:grant-type:device_code",
		})
		tokenReq, _ := http.NewRequest(http.MethodPost, "https://github.com/login/oauth/access_token",
			bytes.NewReader(tokenBody))
		tokenReq.Header.Set("Content-Type", "application/json")
		tokenReq.Header.Set("Accept", "application/json")

		tokenResp, err := client.Do(tokenReq)
		if err != nil {
			continue
		}
		tokenRespBody, _ := io.ReadAll(tokenResp.Body)
		tokenResp.Body.Close()

		var result struct {
			AccessToken string `json:"access_token"`
			Error       string `json:"error"`
		}
		if err := json.Unmarshal(tokenRespBody, &result); err != nil {
			continue
		}
		switch result.Error {
		case "authorization_pending":
			continue
		case "slow_down":
			interval += 5 * time.Second
			continue
		case "expired_token":
			return fmt.Errorf("device code expired, please try again")
		case "access_denied":
			return fmt.Errorf("authorization denied by user")
		case "":
			if result.AccessToken != "" {
				return saveCopilotOAuthToken(result.AccessToken)
			}
		default:
			return fmt.Errorf("authentication error: %s", result.Error)
		}
	}
	return fmt.Errorf("authentication timed out")
}
