package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/kotonebot/go-kotone/internal/httpc"
)

// Client talks to an OpenAI-compatible chat completion API and keeps the
// running conversation history. It is safe for concurrent use, though the
// pipeline processes turns one at a time.
type Client struct {
	baseURL string
	apiKey  string
	config  *Config
	http    *http.Client
	logger  *slog.Logger

	mu           sync.Mutex
	systemPrompt string
	history      []Message
}

// NewClient creates a new chat client with a fresh conversation.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		config:       cfg,
		http:         httpc.NewClient(cfg.Timeout),
		logger:       cfg.Logger.With("component", "chat.client"),
		systemPrompt: cfg.SystemPrompt,
	}
	c.history = []Message{NewSystemMessage(c.systemPrompt)}
	return c, nil
}

// Reply sends the user message with the full history and returns the
// assistant's answer. On failure the user message is removed from the
// history so a failed turn leaves no trace.
func (c *Client) Reply(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, NewUserMessage(text))

	start := time.Now()

	answer, err := c.complete(ctx, c.history)
	if err != nil {
		// Drop the failed turn's user message
		if n := len(c.history); n > 0 && c.history[n-1].Role == RoleUser {
			c.history = c.history[:n-1]
		}
		return "", err
	}

	c.history = append(c.history, NewAssistantMessage(answer))

	c.logger.Debug("generated reply",
		"chars", len(answer),
		"turns", (len(c.history)-1)/2,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return answer, nil
}

// complete performs one chat completion call. Caller holds c.mu.
func (c *Client) complete(ctx context.Context, messages []Message) (string, error) {
	payload := map[string]interface{}{
		"model":    c.config.Model,
		"messages": messages,
	}
	if c.config.MaxTokens > 0 {
		payload["max_tokens"] = c.config.MaxTokens
	}
	if c.config.Temperature > 0 {
		payload["temperature"] = c.config.Temperature
	}

	resp, err := c.post(ctx, "/chat/completions", payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.parseError(resp)
	}

	var result chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("chat: decode response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", ErrNoChoices
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

// Reset clears the transcript back to the system prompt.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = []Message{NewSystemMessage(c.systemPrompt)}
	c.logger.Info("Conversation reset")
}

// SetSystemPrompt replaces the system prompt, updating the transcript's
// leading system message in place.
func (c *Client) SetSystemPrompt(prompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.systemPrompt = prompt
	if len(c.history) > 0 && c.history[0].Role == RoleSystem {
		c.history[0].Content = prompt
	} else {
		c.history = append([]Message{NewSystemMessage(prompt)}, c.history...)
	}
}

// History returns a copy of the conversation transcript.
func (c *Client) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}

// conversationFile is the on-disk format for saved conversations.
type conversationFile struct {
	Timestamp    time.Time `json:"timestamp"`
	Model        string    `json:"model"`
	SystemPrompt string    `json:"system_prompt"`
	Conversation []Message `json:"conversation"`
}

// Save writes the conversation transcript to a JSON file.
func (c *Client) Save(path string) error {
	c.mu.Lock()
	data := conversationFile{
		Timestamp:    time.Now(),
		Model:        c.config.Model,
		SystemPrompt: c.systemPrompt,
		Conversation: append([]Message(nil), c.history...),
	}
	c.mu.Unlock()

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("chat: encode conversation: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("chat: save conversation: %w", err)
	}

	c.logger.Info("Conversation saved", "path", path, "messages", len(data.Conversation))
	return nil
}

// Load replaces the transcript with one read from a JSON file.
func (c *Client) Load(path string) error {
	encoded, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("chat: load conversation: %w", err)
	}

	var data conversationFile
	if err := json.Unmarshal(encoded, &data); err != nil {
		return fmt.Errorf("chat: decode conversation: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = data.Conversation
	if data.SystemPrompt != "" {
		c.systemPrompt = data.SystemPrompt
	}

	c.logger.Info("Conversation loaded", "path", path, "messages", len(c.history))
	return nil
}

// Health checks API connectivity and key validity.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("chat: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("chat: health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}
	return nil
}

// Close releases resources.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// post makes a POST request with retry.
func (c *Client) post(ctx context.Context, path string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("chat: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("chat: create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.doWithRetry(ctx, req, body)
}

// doWithRetry performs the request with retry logic.
func (c *Client) doWithRetry(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
			// Reset body for retry
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("chat: %w", err)
			c.logger.Warn("request failed, retrying",
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		// Check if retryable
		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = c.parseError(resp)
			c.logger.Warn("retrying request",
				"attempt", attempt+1,
				"status", resp.StatusCode,
			)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// parseError reads and parses an error response.
func (c *Client) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	message := string(body)
	code := ""
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		code = errResp.Error.Code
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
	}
}

// API response types
type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens     int `json:"total_tokens"`
	} `json:"usage"`
}

// Verify Client implements Replier at compile time.
var _ Replier = (*Client)(nil)
